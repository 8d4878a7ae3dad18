package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/catalogd/internal/auth"
	"github.com/ziadkadry99/catalogd/internal/catalog"
	"github.com/ziadkadry99/catalogd/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:            "test-1",
		ActorType:     ActorAdmin,
		ActorID:       "admin@example.com",
		Action:        ActionServiceUpdated,
		ServiceID:     "svc-1",
		Summary:       `Updated service "AC Repair"`,
		PreviousValue: `{"price":"Rs. 500"}`,
		NewValue:      `{"price":"Rs. 600"}`,
	}
	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ActorID != "admin@example.com" {
		t.Errorf("ActorID = %q", got.ActorID)
	}
	if got.Action != ActionServiceUpdated {
		t.Errorf("Action = %q", got.Action)
	}
	if got.ServiceID != "svc-1" {
		t.Errorf("ServiceID = %q", got.ServiceID)
	}
	if got.PreviousValue != `{"price":"Rs. 500"}` || got.NewValue != `{"price":"Rs. 600"}` {
		t.Errorf("values = %q -> %q", got.PreviousValue, got.NewValue)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Errorf("Timestamp = %v, want now", got.Timestamp)
	}
}

func TestLogFillsDefaults(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Log(ctx, Entry{ActorID: "cron", Action: ActionServiceDeleted}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := store.Query(ctx, QueryFilter{ActorID: "cron"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected generated ID")
	}
	if entries[0].ActorType != ActorSystem {
		t.Errorf("ActorType = %q, want system", entries[0].ActorType)
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seed := []Entry{
		{ActorType: ActorAdmin, ActorID: "alice", Action: ActionServiceCreated, ServiceID: "s1"},
		{ActorType: ActorAdmin, ActorID: "bob", Action: ActionServiceUpdated, ServiceID: "s1"},
		{ActorType: ActorAdmin, ActorID: "alice", Action: ActionAdminLogin},
		{ActorType: ActorSystem, ActorID: "system", Action: ActionServiceDeleted, ServiceID: "s2"},
	}
	for _, e := range seed {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 4},
		{"actor", QueryFilter{ActorID: "alice"}, 2},
		{"action", QueryFilter{Action: ActionServiceUpdated}, 1},
		{"service", QueryFilter{ServiceID: "s1"}, 2},
		{"actor type", QueryFilter{ActorType: ActorSystem}, 1},
		{"limit", QueryFilter{Limit: 3}, 3},
		{"limit offset", QueryFilter{Limit: 3, Offset: 2}, 2},
		{"offset only", QueryFilter{Offset: 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestQueryNewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := store.Log(ctx, Entry{ID: id, ActorID: "x", Action: ActionServiceUpdated, Timestamp: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if entries[0].ID != "new" || entries[2].ID != "old" {
		t.Errorf("order = %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}

	since := base.Add(30 * time.Minute)
	entries, err = store.Query(ctx, QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("since filter returned %d entries", len(entries))
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	for i := 0; i < 3; i++ {
		if err := store.Log(ctx, Entry{ActorID: "system", Action: ActionServiceUpdated, Timestamp: old}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := store.Log(ctx, Entry{ActorID: "system", Action: ActionServiceUpdated}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	deleted, err := store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}

	entries, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 remaining entry, got %d", len(entries))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)
	if _, err := store.GetByID(context.Background(), "nonexistent"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecorderServiceChanged(t *testing.T) {
	store := setupStore(t)
	rec := NewRecorder(store)

	admin := auth.WithSession(context.Background(), &auth.Session{ID: "sess-1", Email: "admin@example.com"})
	before := &catalog.Service{ID: "s1", Name: "Wiring", Price: "Rs. 100"}
	after := &catalog.Service{ID: "s1", Name: "Wiring", Price: "Rs. 150"}

	rec.ServiceChanged(admin, catalog.Change{Action: catalog.ChangeCreated, After: before})
	rec.ServiceChanged(admin, catalog.Change{Action: catalog.ChangeUpdated, Before: before, After: after})
	rec.ServiceChanged(context.Background(), catalog.Change{Action: catalog.ChangeDeleted, Before: after})

	entries, err := store.Query(context.Background(), QueryFilter{ServiceID: "s1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	byAction := map[Action]Entry{}
	for _, e := range entries {
		byAction[e.Action] = e
	}

	updated := byAction[ActionServiceUpdated]
	if updated.ActorType != ActorAdmin || updated.ActorID != "admin@example.com" {
		t.Errorf("update actor = %s/%s", updated.ActorType, updated.ActorID)
	}
	if !strings.Contains(updated.PreviousValue, "Rs. 100") || !strings.Contains(updated.NewValue, "Rs. 150") {
		t.Errorf("update values = %q -> %q", updated.PreviousValue, updated.NewValue)
	}
	if updated.Summary != `Updated service "Wiring"` {
		t.Errorf("Summary = %q", updated.Summary)
	}

	deleted := byAction[ActionServiceDeleted]
	if deleted.ActorType != ActorSystem {
		t.Errorf("delete without session actor = %s", deleted.ActorType)
	}
	if deleted.NewValue != "" {
		t.Errorf("delete NewValue = %q, want empty", deleted.NewValue)
	}
}

func TestRecorderAdminEvents(t *testing.T) {
	store := setupStore(t)
	rec := NewRecorder(store)
	ctx := context.Background()
	sess := auth.Session{ID: "sess-9", Email: "admin@example.com"}

	rec.AdminEvent(ctx, auth.EventLogin, sess)
	rec.AdminEvent(ctx, auth.EventLogout, sess)

	for _, action := range []Action{ActionAdminLogin, ActionAdminLogout} {
		entries, err := store.Query(ctx, QueryFilter{Action: action})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(entries) != 1 || entries[0].ActorID != "admin@example.com" {
			t.Errorf("%s entries = %+v", action, entries)
		}
	}
}

// --- HTTP handler tests ---

type queryResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
	Entry   *Entry  `json:"entry"`
}

func setupRouter(t *testing.T, guard func(http.Handler) http.Handler) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store, guard)
	return r, store
}

func serve(t *testing.T, r http.Handler, path string) (int, queryResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body queryResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, body
}

func TestHTTPQuery(t *testing.T) {
	r, store := setupRouter(t, nil)
	ctx := context.Background()

	for _, a := range []Action{ActionServiceCreated, ActionServiceCreated, ActionAdminLogin} {
		if err := store.Log(ctx, Entry{ActorID: "alice", Action: a, ServiceID: "s1"}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	code, body := serve(t, r, "/api/admin/audit?action=service_created")
	if code != http.StatusOK || !body.Success {
		t.Fatalf("status = %d, body = %+v", code, body)
	}
	if body.Count != 2 || len(body.Entries) != 2 {
		t.Errorf("count = %d", body.Count)
	}

	_, body = serve(t, r, "/api/admin/audit?limit=1")
	if body.Count != 1 {
		t.Errorf("limit=1 count = %d", body.Count)
	}

	_, body = serve(t, r, "/api/admin/audit?actor=nobody")
	if body.Count != 0 || body.Entries == nil {
		t.Errorf("empty query = %+v, want empty list", body)
	}
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t, nil)
	if err := store.Log(context.Background(), Entry{ID: "http-1", ActorID: "alice", Action: ActionServiceDeleted}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	code, body := serve(t, r, "/api/admin/audit/http-1")
	if code != http.StatusOK || body.Entry == nil || body.Entry.ID != "http-1" {
		t.Errorf("status = %d, body = %+v", code, body)
	}

	code, body = serve(t, r, "/api/admin/audit/missing")
	if code != http.StatusNotFound || body.Success || body.Message != "Audit entry not found" {
		t.Errorf("status = %d, body = %+v", code, body)
	}
}

func TestHTTPRequiresGuard(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "denied"})
		})
	}
	r, _ := setupRouter(t, deny)

	code, body := serve(t, r, "/api/admin/audit")
	if code != http.StatusUnauthorized || body.Success {
		t.Errorf("status = %d, body = %+v", code, body)
	}
}
