package uploads

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "uploads")
	cfg.MaxBytes = 1024
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// formFile builds a multipart request and returns the parsed "image" part.
func formFile(t *testing.T, filename, contentType string, body []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write(body)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	f, fh, err := req.FormFile("image")
	if err != nil {
		t.Fatalf("FormFile: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f, fh
}

func TestSaveAndRemove(t *testing.T) {
	s := setupStore(t)
	f, fh := formFile(t, "Photo.PNG", "image/png", []byte("png-bytes"))

	url, err := s.Save(f, fh)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/service-") || !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q", url)
	}

	path := filepath.Join(s.Dir(), filepath.Base(url))
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("stored file = %q, %v", data, err)
	}

	s.Remove(url)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file removed, stat err = %v", err)
	}
	// Removing twice is fine.
	s.Remove(url)
}

func TestSaveRejects(t *testing.T) {
	s := setupStore(t)

	tests := []struct {
		name, filename, contentType string
		body                        []byte
		want                        error
	}{
		{"bad extension", "script.exe", "image/png", []byte("x"), ErrUnsupportedType},
		{"bad mime", "photo.jpg", "text/html", []byte("x"), ErrUnsupportedType},
		{"svg", "icon.svg", "image/svg+xml", []byte("<svg/>"), ErrUnsupportedType},
		{"too large", "big.jpg", "image/jpeg", bytes.Repeat([]byte("a"), 2048), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, fh := formFile(t, tt.filename, tt.contentType, tt.body)
			_, err := s.Save(f, fh)
			if !errors.Is(err, tt.want) {
				t.Errorf("Save err = %v, want %v", err, tt.want)
			}
		})
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Errorf("expected no files left behind, got %d", len(entries))
	}
}

func TestRemoveIgnoresForeignURLs(t *testing.T) {
	s := setupStore(t)
	keep := filepath.Join(s.Dir(), "keep.txt")
	os.WriteFile(keep, []byte("x"), 0o644)

	s.Remove("https://images.unsplash.com/photo.jpg")
	s.Remove("/uploads/")
	s.Remove("/uploads/../uploads")
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("unrelated file touched: %v", err)
	}
	if s.Owns("https://example.com/a.png") {
		t.Error("Owns should be false for external URL")
	}
	if !s.Owns("/uploads/service-1-2.png") {
		t.Error("Owns should be true for prefixed URL")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	cfg.MaxBytes = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected error for zero limit")
	}
	cfg.MaxBytes = 10
	cfg.Allowed = []string{"[unterminated"}
	if _, err := New(cfg); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestHandlerServesFiles(t *testing.T) {
	s := setupStore(t)
	f, fh := formFile(t, "a.gif", "image/gif", []byte("GIF89a"))
	url, err := s.Save(f, fh)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.Prefix(), s.Handler())
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "GIF89a" {
		t.Errorf("GET %s = %d %q", url, w.Code, w.Body.String())
	}
}

type staticRefs map[string]bool

func (r staticRefs) ImageRefs(context.Context) (map[string]bool, error) { return r, nil }

func TestSweepRemovesOrphans(t *testing.T) {
	s := setupStore(t)
	old := time.Now().Add(-2 * time.Hour)

	write := func(name string, mod time.Time) {
		p := filepath.Join(s.Dir(), name)
		os.WriteFile(p, []byte("x"), 0o644)
		os.Chtimes(p, mod, mod)
	}
	write("service-1-1.png", old)        // orphan, old
	write("service-2-2.png", old)        // referenced
	write("service-3-3.png", time.Now()) // orphan, fresh
	write("readme.txt", old)             // not ours

	removed, err := s.Sweep(context.Background(), staticRefs{"/uploads/service-2-2.png": true}, time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	for name, want := range map[string]bool{
		"service-1-1.png": false,
		"service-2-2.png": true,
		"service-3-3.png": true,
		"readme.txt":      true,
	} {
		_, err := os.Stat(filepath.Join(s.Dir(), name))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", name, exists, want)
		}
	}
}
