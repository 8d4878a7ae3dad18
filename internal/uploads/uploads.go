// Package uploads stores service images on local disk and serves them back
// under a URL prefix.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

var (
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrUnsupportedType is returned for anything but an allowed image.
	ErrUnsupportedType = errors.New("only image files are allowed (jpeg, jpg, png, gif, webp)")
)

// contentTypeByExt lists the image types accepted for each extension.
var contentTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Config controls where images land and which files are accepted.
type Config struct {
	Dir       string
	URLPrefix string
	MaxBytes  int64
	// Allowed holds doublestar patterns matched against the lowercased
	// file name, e.g. "*.{jpg,jpeg,png,gif,webp}".
	Allowed []string
}

// DefaultConfig returns the limits used by the admin API.
func DefaultConfig() Config {
	return Config{
		Dir:       "uploads",
		URLPrefix: "/uploads/",
		MaxBytes:  5 << 20,
		Allowed:   []string{"*.{jpg,jpeg,png,gif,webp}"},
	}
}

// Store saves and removes image files.
type Store struct {
	cfg Config
	now func() time.Time
}

// New validates cfg and creates the upload directory.
func New(cfg Config) (*Store, error) {
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/uploads/"
	}
	if !strings.HasSuffix(cfg.URLPrefix, "/") {
		cfg.URLPrefix += "/"
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("upload limit must be positive, got %d", cfg.MaxBytes)
	}
	for _, p := range cfg.Allowed {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid upload pattern %q", p)
		}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{cfg: cfg, now: time.Now}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.cfg.Dir }

// MaxBytes returns the per-file size limit.
func (s *Store) MaxBytes() int64 { return s.cfg.MaxBytes }

// Save writes an uploaded image and returns its public URL.
func (s *Store) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > s.cfg.MaxBytes {
		return "", ErrTooLarge
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.allowed(header.Filename) {
		return "", ErrUnsupportedType
	}
	if !mimeAllowed(header.Header.Get("Content-Type")) {
		return "", ErrUnsupportedType
	}

	name := fmt.Sprintf("service-%d-%d%s", s.now().UnixMilli(), rand.Int64N(1_000_000_000), ext)
	dst := filepath.Join(s.cfg.Dir, name)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", name, err)
	}
	n, err := io.Copy(out, io.LimitReader(file, s.cfg.MaxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if n > s.cfg.MaxBytes {
		os.Remove(dst)
		return "", ErrTooLarge
	}

	return s.cfg.URLPrefix + name, nil
}

// Remove deletes the file behind a URL produced by Save. URLs outside the
// prefix are ignored and a missing file is not an error.
func (s *Store) Remove(url string) {
	name, ok := s.fileName(url)
	if !ok {
		return
	}
	err := os.Remove(filepath.Join(s.cfg.Dir, name))
	if err != nil && !os.IsNotExist(err) {
		zap.L().Warn("removing image", zap.String("url", url), zap.Error(err))
	}
}

// Owns reports whether url points into this store.
func (s *Store) Owns(url string) bool {
	_, ok := s.fileName(url)
	return ok
}

// Handler serves stored files; mount it at the URL prefix.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(s.cfg.URLPrefix, http.FileServer(http.Dir(s.cfg.Dir)))
}

// Prefix returns the URL prefix, with trailing slash.
func (s *Store) Prefix() string { return s.cfg.URLPrefix }

func (s *Store) fileName(url string) (string, bool) {
	if !strings.HasPrefix(url, s.cfg.URLPrefix) {
		return "", false
	}
	name := path.Base(strings.TrimPrefix(url, s.cfg.URLPrefix))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", false
	}
	return name, true
}

func (s *Store) allowed(filename string) bool {
	base := strings.ToLower(filepath.Base(filename))
	if _, ok := contentTypeByExt[filepath.Ext(base)]; !ok {
		return false
	}
	for _, p := range s.cfg.Allowed {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

func mimeAllowed(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, v := range contentTypeByExt {
		if ct == v {
			return true
		}
	}
	return false
}
