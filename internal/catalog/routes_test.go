package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/catalogd/internal/uploads"
)

type recordingObserver struct {
	changes []Change
}

func (o *recordingObserver) ServiceChanged(_ context.Context, c Change) {
	o.changes = append(o.changes, c)
}

type routeEnv struct {
	router   chi.Router
	store    *Store
	images   *uploads.Store
	observed *recordingObserver
}

func setupRouter(t *testing.T) *routeEnv {
	t.Helper()
	store := setupTestStore(t)
	cfg := uploads.DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "uploads")
	images, err := uploads.New(cfg)
	if err != nil {
		t.Fatalf("uploads.New: %v", err)
	}
	obs := &recordingObserver{}
	r := chi.NewRouter()
	RegisterRoutes(r, store, images, nil, obs)
	return &routeEnv{router: r, store: store, images: images, observed: obs}
}

type envelope struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Service  *Service  `json:"service"`
	Services []Service `json:"services"`
	Count    int       `json:"count"`
	Stats    *Stats    `json:"stats"`
}

func (e *routeEnv) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	var body envelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
	}
	return rec.Code, body
}

// multipartRequest builds a form body; a non-empty imageName attaches a file.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, imageName, imageType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if imageName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+imageName+`"`)
		h.Set("Content-Type", imageType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write([]byte("image-bytes"))
	}
	w.Close()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, path string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (e *routeEnv) imageExists(url string) bool {
	_, err := os.Stat(filepath.Join(e.images.Dir(), filepath.Base(url)))
	return err == nil
}

func TestHTTPCreateMultipart(t *testing.T) {
	env := setupRouter(t)

	req := multipartRequest(t, http.MethodPost, "/api/services", map[string]string{
		"name":         "Fan Repair",
		"category":     "Fan Repair",
		"description":  "Ceiling fan fixes",
		"features":     `["Same day"]`,
		"productTypes": `[{"name":"Basic","price":"₹200","description":""}]`,
	}, "fan.png", "image/png")

	code, body := env.do(t, req)
	if code != http.StatusCreated {
		t.Fatalf("status = %d, message = %q", code, body.Message)
	}
	if !body.Success || body.Message != "Service created successfully" {
		t.Errorf("envelope = %+v", body)
	}
	svc := body.Service
	if svc == nil || svc.ID == "" {
		t.Fatal("expected created service with id")
	}
	if svc.Price != DefaultPrice || svc.Status != StatusAvailable {
		t.Errorf("defaults not applied: %+v", svc)
	}
	if len(svc.Features) != 1 || len(svc.ProductTypes) != 1 {
		t.Errorf("lists = %v / %v", svc.Features, svc.ProductTypes)
	}
	if !strings.HasPrefix(svc.Image, "/uploads/service-") || !env.imageExists(svc.Image) {
		t.Errorf("image %q not stored", svc.Image)
	}
	if len(env.observed.changes) != 1 || env.observed.changes[0].Action != ChangeCreated {
		t.Errorf("observer saw %+v", env.observed.changes)
	}
}

func TestHTTPCreateValidation(t *testing.T) {
	env := setupRouter(t)

	req := multipartRequest(t, http.MethodPost, "/api/services", map[string]string{
		"name": "Missing description", "category": "Other",
	}, "a.png", "image/png")
	code, body := env.do(t, req)
	if code != http.StatusBadRequest || body.Success {
		t.Fatalf("status = %d, body = %+v", code, body)
	}
	if body.Message != "Please provide name, description, and category" {
		t.Errorf("message = %q", body.Message)
	}

	entries, _ := os.ReadDir(env.images.Dir())
	if len(entries) != 0 {
		t.Errorf("rejected create left %d files behind", len(entries))
	}
	if len(env.observed.changes) != 0 {
		t.Error("observer notified for failed create")
	}
}

func TestHTTPCreateRejects(t *testing.T) {
	env := setupRouter(t)
	base := map[string]string{"name": "x", "category": "Other", "description": "d"}

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
	}{
		{"unknown category", jsonRequest(http.MethodPost, "/api/services", map[string]any{"name": "x", "category": "Plumbing", "description": "d"}), http.StatusBadRequest},
		{"bad features json", jsonRequest(http.MethodPost, "/api/services", map[string]any{"name": "x", "category": "Other", "description": "d", "features": "not json"}), http.StatusBadRequest},
		{"non-image upload", multipartRequest(t, http.MethodPost, "/api/services", base, "evil.exe", "application/octet-stream"), http.StatusBadRequest},
		{"malformed json", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/api/services", strings.NewReader("{"))
			r.Header.Set("Content-Type", "application/json")
			return r
		}(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, tt.req)
			if code != tt.wantCode || body.Success || body.Message == "" {
				t.Errorf("status = %d, body = %+v", code, body)
			}
		})
	}
}

func TestHTTPCreateJSONAcceptsArrays(t *testing.T) {
	env := setupRouter(t)
	code, body := env.do(t, jsonRequest(http.MethodPost, "/api/services", map[string]any{
		"name":        "Wiring",
		"category":    "Wiring",
		"description": "House wiring",
		"features":    []string{"Concealed", "Open"},
		"productTypes": []ProductType{
			{Name: "Per point", Price: "₹150"},
		},
	}))
	if code != http.StatusCreated {
		t.Fatalf("status = %d, message = %q", code, body.Message)
	}
	if len(body.Service.Features) != 2 || body.Service.ProductTypes[0].Name != "Per point" {
		t.Errorf("service = %+v", body.Service)
	}
}

// A record created through the API reads back with the same fields and a
// PUT of one field leaves the rest untouched.
func TestHTTPCrudRoundTrip(t *testing.T) {
	env := setupRouter(t)

	_, created := env.do(t, multipartRequest(t, http.MethodPost, "/api/services", map[string]string{
		"name": "Inverter", "category": "Inverter Service", "description": "Battery checks",
		"price": "₹500", "keywords": "battery ups",
	}, "inv.jpg", "image/jpeg"))
	id := created.Service.ID

	code, got := env.do(t, httptest.NewRequest(http.MethodGet, "/api/services/"+id, nil))
	if code != http.StatusOK {
		t.Fatalf("GET status = %d", code)
	}
	if got.Service.Name != "Inverter" || got.Service.Price != "₹500" || got.Service.Keywords != "battery ups" {
		t.Errorf("read back %+v", got.Service)
	}

	code, upd := env.do(t, multipartRequest(t, http.MethodPut, "/api/services/"+id, map[string]string{
		"price": "₹650", "name": "",
	}, "", ""))
	if code != http.StatusOK || upd.Message != "Service updated successfully" {
		t.Fatalf("PUT status = %d, body = %+v", code, upd)
	}
	if upd.Service.Name != "Inverter" || upd.Service.Price != "₹650" || upd.Service.Description != "Battery checks" {
		t.Errorf("partial update = %+v", upd.Service)
	}
	if upd.Service.Image != created.Service.Image {
		t.Error("image changed without a new upload")
	}

	code, del := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/services/"+id, nil))
	if code != http.StatusOK || del.Message != "Service deleted successfully" {
		t.Fatalf("DELETE status = %d, body = %+v", code, del)
	}
	if env.imageExists(created.Service.Image) {
		t.Error("image not released on delete")
	}

	code, missing := env.do(t, httptest.NewRequest(http.MethodGet, "/api/services/"+id, nil))
	if code != http.StatusNotFound || missing.Message != "Service not found" {
		t.Errorf("after delete: %d %+v", code, missing)
	}

	var actions []ChangeAction
	for _, c := range env.observed.changes {
		actions = append(actions, c.Action)
	}
	if len(actions) != 3 || actions[0] != ChangeCreated || actions[1] != ChangeUpdated || actions[2] != ChangeDeleted {
		t.Errorf("observed actions = %v", actions)
	}
}

func TestHTTPUpdateReplacesImage(t *testing.T) {
	env := setupRouter(t)
	_, created := env.do(t, multipartRequest(t, http.MethodPost, "/api/services", map[string]string{
		"name": "AC", "category": "AC Repair", "description": "d",
	}, "old.png", "image/png"))
	oldImage := created.Service.Image

	_, upd := env.do(t, multipartRequest(t, http.MethodPut, "/api/services/"+created.Service.ID, nil, "new.webp", "image/webp"))
	if upd.Service.Image == oldImage || !strings.HasSuffix(upd.Service.Image, ".webp") {
		t.Fatalf("image = %q", upd.Service.Image)
	}
	if env.imageExists(oldImage) {
		t.Error("old image not removed")
	}
	if !env.imageExists(upd.Service.Image) {
		t.Error("new image missing")
	}

	_, cleared := env.do(t, jsonRequest(http.MethodPut, "/api/services/"+created.Service.ID, map[string]any{"image": ""}))
	if cleared.Service.Image != "" {
		t.Errorf("image not cleared: %q", cleared.Service.Image)
	}
	if env.imageExists(upd.Service.Image) {
		t.Error("cleared image not removed")
	}
}

func TestHTTPUpdateNotFoundReleasesUpload(t *testing.T) {
	env := setupRouter(t)
	code, body := env.do(t, multipartRequest(t, http.MethodPut, "/api/services/nope", map[string]string{"name": "x"}, "a.png", "image/png"))
	if code != http.StatusNotFound || body.Message != "Service not found" {
		t.Errorf("status = %d, body = %+v", code, body)
	}
	entries, _ := os.ReadDir(env.images.Dir())
	if len(entries) != 0 {
		t.Errorf("expected upload released, %d files remain", len(entries))
	}
}

func TestHTTPImageTextFieldCannotClaimForeignUpload(t *testing.T) {
	env := setupRouter(t)
	_, a := env.do(t, multipartRequest(t, http.MethodPost, "/api/services", map[string]string{
		"name": "A", "category": "Wiring", "description": "d",
	}, "a.png", "image/png"))
	owned := a.Service.Image

	_, b := env.do(t, multipartRequest(t, http.MethodPost, "/api/services", map[string]string{
		"name": "B", "category": "Wiring", "description": "d", "image": owned,
	}, "", ""))
	if b.Service.Image != "" {
		t.Fatalf("create took image %q from a text field", b.Service.Image)
	}
	env.do(t, httptest.NewRequest(http.MethodDelete, "/api/services/"+b.Service.ID, nil))
	if !env.imageExists(owned) {
		t.Fatal("deleting B removed A's image")
	}

	_, c := env.do(t, multipartRequest(t, http.MethodPost, "/api/services", map[string]string{
		"name": "C", "category": "Wiring", "description": "d",
	}, "c.png", "image/png"))
	_, upd := env.do(t, multipartRequest(t, http.MethodPut, "/api/services/"+c.Service.ID, map[string]string{"image": owned}, "", ""))
	if upd.Service.Image != c.Service.Image {
		t.Errorf("update repointed image to %q", upd.Service.Image)
	}
	if !env.imageExists(c.Service.Image) {
		t.Error("update with a text image field deleted C's own upload")
	}
	if !env.imageExists(owned) {
		t.Error("A's image removed")
	}
}

func TestHTTPUpdateEmptyListsKeepPrior(t *testing.T) {
	env := setupRouter(t)
	_, created := env.do(t, jsonRequest(http.MethodPost, "/api/services", map[string]any{
		"name": "Wiring", "category": "Wiring", "description": "d",
		"features":     []string{"Concealed"},
		"productTypes": []ProductType{{Name: "Basic", Price: "Rs. 500"}},
	}))

	_, upd := env.do(t, multipartRequest(t, http.MethodPut, "/api/services/"+created.Service.ID, map[string]string{
		"features": "", "productTypes": "", "price": "Rs. 700",
	}, "", ""))
	if len(upd.Service.Features) != 1 || len(upd.Service.ProductTypes) != 1 {
		t.Errorf("empty fields cleared lists: features=%v tiers=%v", upd.Service.Features, upd.Service.ProductTypes)
	}
	if upd.Service.Price != "Rs. 700" {
		t.Errorf("price = %q", upd.Service.Price)
	}

	_, cleared := env.do(t, jsonRequest(http.MethodPut, "/api/services/"+created.Service.ID, map[string]any{
		"features": []string{},
	}))
	if len(cleared.Service.Features) != 0 {
		t.Errorf("explicit empty array should clear features, got %v", cleared.Service.Features)
	}
}

func TestHTTPDeleteNotFound(t *testing.T) {
	env := setupRouter(t)
	code, body := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/services/nope", nil))
	if code != http.StatusNotFound || body.Success {
		t.Errorf("status = %d, body = %+v", code, body)
	}
}

func TestHTTPListSearchAndStats(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()
	for _, s := range []Service{
		{Name: "Split AC Service", Category: CategoryACMaintenance, Description: "Deep clean", Keywords: "split"},
		{Name: "Window AC", Category: CategoryACRepair, Description: "Split-free units", Status: StatusUnavailable},
		{Name: "Wiring", Category: CategoryWiring, Description: "House wiring"},
	} {
		if _, err := env.store.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	_, all := env.do(t, httptest.NewRequest(http.MethodGet, "/api/services", nil))
	if all.Count != 3 || all.Services[0].Name != "Wiring" {
		t.Errorf("list = %v", names(all.Services))
	}

	_, found := env.do(t, httptest.NewRequest(http.MethodGet, "/api/services?search=SPLIT", nil))
	if found.Count != 2 {
		t.Errorf("search matched %v", names(found.Services))
	}

	_, filtered := env.do(t, httptest.NewRequest(http.MethodGet, "/api/services?status=unavailable", nil))
	if filtered.Count != 1 || filtered.Services[0].Name != "Window AC" {
		t.Errorf("status filter = %v", names(filtered.Services))
	}

	_, st := env.do(t, httptest.NewRequest(http.MethodGet, "/api/services/stats", nil))
	if st.Stats == nil || *st.Stats != (Stats{Total: 3, Available: 2, Unavailable: 1, Categories: 3}) {
		t.Errorf("stats = %+v", st.Stats)
	}

	_, public := env.do(t, httptest.NewRequest(http.MethodGet, "/api/public/services", nil))
	if public.Count != 2 {
		t.Errorf("public listing = %v", names(public.Services))
	}
	for _, s := range public.Services {
		if s.Status != StatusAvailable {
			t.Errorf("public listing leaked %q", s.Name)
		}
	}
}

func TestHTTPRequireAdminGuardsAPI(t *testing.T) {
	store := setupTestStore(t)
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "denied"})
		})
	}
	r := chi.NewRouter()
	RegisterRoutes(r, store, nil, deny)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/services", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("admin list status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public/services", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("public list status = %d", rec.Code)
	}
}
