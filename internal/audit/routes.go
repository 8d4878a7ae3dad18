package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultLimit caps a query that names no limit.
const DefaultLimit = 100

// RegisterRoutes mounts the audit endpoints under /api/admin/audit. Every
// route sits behind requireAdmin when it is non-nil.
func RegisterRoutes(r chi.Router, store *Store, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/api/admin/audit", func(r chi.Router) {
		if requireAdmin != nil {
			r.Use(requireAdmin)
		}
		r.Get("/", handleQuery(store))
		r.Get("/{id}", handleGetByID(store))
	})
}

func handleQuery(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := QueryFilter{
			ActorID:   q.Get("actor"),
			ServiceID: q.Get("service"),
			Action:    Action(q.Get("action")),
			ActorType: ActorType(q.Get("actor_type")),
			Limit:     DefaultLimit,
		}
		if v := q.Get("since"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				filter.Since = &t
			}
		}
		if v := q.Get("until"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				filter.Until = &t
			}
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				filter.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		entries, err := store.Query(r.Context(), filter)
		if err != nil {
			zap.L().Error("querying audit trail", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Server error"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"entries": entries,
			"count":   len(entries),
		})
	}
}

func handleGetByID(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Audit entry not found"})
			return
		}
		if err != nil {
			zap.L().Error("reading audit entry", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Server error"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "entry": entry})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
