package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/catalogd/internal/uploads"
	"go.uber.org/zap"
)

// maxFormMemory bounds the in-memory part of a multipart body; larger files
// spill to disk and are rejected later by the image store's own limit.
const maxFormMemory = 32 << 20

// ImageStore persists uploaded images and releases them again.
type ImageStore interface {
	Save(file multipart.File, header *multipart.FileHeader) (string, error)
	Remove(url string)
}

// ChangeAction names a committed mutation.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
)

// Change describes one committed mutation. Before is nil for creates and
// After is nil for deletes.
type Change struct {
	Action ChangeAction
	Before *Service
	After  *Service
}

// Observer is told about every successful mutation made through the API.
type Observer interface {
	ServiceChanged(ctx context.Context, c Change)
}

type handlers struct {
	store     *Store
	images    ImageStore
	observers []Observer
}

// RegisterRoutes mounts the admin service API under /api/services, guarded by
// requireAdmin, and the public listing under /api/public/services.
func RegisterRoutes(r chi.Router, store *Store, images ImageStore, requireAdmin func(http.Handler) http.Handler, observers ...Observer) {
	h := &handlers{store: store, images: images, observers: observers}

	r.Get("/api/public/services", h.publicList)

	r.Route("/api/services", func(r chi.Router) {
		if requireAdmin != nil {
			r.Use(requireAdmin)
		}
		r.Get("/", h.list)
		r.Get("/stats", h.stats)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

func (h *handlers) publicList(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.List(r.Context(), ListFilter{Status: StatusAvailable})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"services": services,
		"count":    len(services),
	})
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search:   q.Get("search"),
		Category: Category(q.Get("category")),
		Status:   Status(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	services, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"services": services,
		"count":    len(services),
	})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	svc, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "service": svc})
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	in, err := readForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer in.close()

	svc := Service{
		Name:        in.values["name"],
		Category:    Category(in.values["category"]),
		Description: in.values["description"],
		Price:       in.values["price"],
		Keywords:    in.values["keywords"],
		Status:      Status(in.values["status"]),
	}
	if err := in.lists(&svc.Features, &svc.ProductTypes); err != nil {
		writeError(w, err)
		return
	}

	var saved string
	if in.file != nil {
		if saved, err = h.images.Save(in.file, in.header); err != nil {
			writeError(w, err)
			return
		}
		svc.Image = saved
	}

	created, err := h.store.Create(r.Context(), svc)
	if err != nil {
		if saved != "" {
			h.images.Remove(saved)
		}
		writeError(w, err)
		return
	}

	h.notify(r.Context(), Change{Action: ChangeCreated, After: created})
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Service created successfully",
		"service": created,
	})
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	in, err := readForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer in.close()

	var patch Patch
	if v, ok := in.values["name"]; ok {
		patch.Name = &v
	}
	if v, ok := in.values["category"]; ok {
		c := Category(strings.TrimSpace(v))
		patch.Category = &c
	}
	if v, ok := in.values["description"]; ok {
		patch.Description = &v
	}
	if v, ok := in.values["price"]; ok {
		patch.Price = &v
	}
	if v, ok := in.values["keywords"]; ok {
		patch.Keywords = &v
	}
	if v, ok := in.values["status"]; ok {
		s := Status(strings.TrimSpace(v))
		patch.Status = &s
	}
	// Only an explicit clear is taken from the body; a new image comes from
	// the upload alone.
	if v, ok := in.values["image"]; ok && strings.TrimSpace(v) == "" {
		empty := ""
		patch.Image = &empty
	}
	if in.present("features") {
		var features []string
		if err := in.list("features", &features); err != nil {
			writeError(w, err)
			return
		}
		patch.Features = &features
	}
	if in.present("productTypes") {
		var tiers []ProductType
		if err := in.list("productTypes", &tiers); err != nil {
			writeError(w, err)
			return
		}
		patch.ProductTypes = &tiers
	}

	var saved string
	if in.file != nil {
		if saved, err = h.images.Save(in.file, in.header); err != nil {
			writeError(w, err)
			return
		}
		patch.Image = &saved
	}

	updated, previous, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		if saved != "" {
			h.images.Remove(saved)
		}
		writeError(w, err)
		return
	}
	if previous.Image != "" && previous.Image != updated.Image {
		h.images.Remove(previous.Image)
	}

	h.notify(r.Context(), Change{Action: ChangeUpdated, Before: previous, After: updated})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Service updated successfully",
		"service": updated,
	})
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if deleted.Image != "" {
		h.images.Remove(deleted.Image)
	}

	h.notify(r.Context(), Change{Action: ChangeDeleted, Before: deleted})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Service deleted successfully",
	})
}

func (h *handlers) notify(ctx context.Context, c Change) {
	for _, o := range h.observers {
		o.ServiceChanged(ctx, c)
	}
}

// formInput is the parsed body of a create or update request. Multipart,
// urlencoded and JSON bodies all land here.
type formInput struct {
	values map[string]string
	raw    map[string]json.RawMessage
	file   multipart.File
	header *multipart.FileHeader
}

func readForm(r *http.Request) (*formInput, error) {
	in := &formInput{values: map[string]string{}, raw: map[string]json.RawMessage{}}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, invalidf("request body must be a JSON object")
		}
		for k, v := range body {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				in.values[k] = s
			}
			in.raw[k] = v
		}
		return in, nil
	}

	err := r.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, invalidf("malformed form body")
	}
	for k, vs := range r.PostForm {
		if len(vs) == 0 {
			continue
		}
		in.values[k] = vs[0]
		quoted, _ := json.Marshal(vs[0])
		in.raw[k] = quoted
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		in.file, in.header = file, header
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return nil, invalidf("malformed image upload")
	}
	return in, nil
}

func (in *formInput) close() {
	if in.file != nil {
		in.file.Close()
	}
}

func (in *formInput) has(key string) bool {
	_, ok := in.raw[key]
	return ok
}

// present reports whether key carries a value. An empty string counts as
// omitted.
func (in *formInput) present(key string) bool {
	if !in.has(key) {
		return false
	}
	if v, ok := in.values[key]; ok && strings.TrimSpace(v) == "" {
		return false
	}
	return true
}

// lists decodes features and productTypes when present.
func (in *formInput) lists(features *[]string, tiers *[]ProductType) error {
	if in.has("features") {
		if err := in.list("features", features); err != nil {
			return err
		}
	}
	if in.has("productTypes") {
		if err := in.list("productTypes", tiers); err != nil {
			return err
		}
	}
	return nil
}

// list decodes a list field sent either as a JSON array or as a string
// holding one, which is how multipart forms carry it. An empty string is an
// empty list.
func (in *formInput) list(key string, dst any) error {
	raw := in.raw[key]
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			raw = json.RawMessage("[]")
		} else {
			raw = json.RawMessage(s)
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidf("%s must be a JSON array", key)
	}
	return nil
}

// writeError maps an error onto the {success:false,message} envelope.
func writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "Server error"
	switch {
	case errors.Is(err, ErrNotFound):
		status, msg = http.StatusNotFound, "Service not found"
	case errors.Is(err, ErrInvalid):
		status, msg = http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrInvalid.Error()+": ")
	case errors.Is(err, uploads.ErrTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "Image is too large"
	case errors.Is(err, uploads.ErrUnsupportedType):
		status, msg = http.StatusBadRequest, "Only image files are allowed (jpeg, jpg, png, gif, webp)"
	default:
		zap.L().Error("catalog request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
