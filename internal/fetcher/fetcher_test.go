package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ziadkadry99/catalogd/internal/catalog"
)

type staticReader []catalog.Service

func (r staticReader) Read(context.Context) []catalog.Service { return r }

func listingServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func serveServices(services []catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PublicPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "services": services})
	}
}

func TestFetchRemote(t *testing.T) {
	remote := []catalog.Service{{ID: "r1", Name: "Remote"}}
	srv := listingServer(t, serveServices(remote))

	f := New(Config{RemoteURL: srv.URL + "/"}, staticReader{{Name: "Local"}})
	res := f.Fetch(context.Background())
	if res.Source != SourceRemote || len(res.Services) != 1 || res.Services[0].Name != "Remote" {
		t.Errorf("Fetch = %+v", res)
	}
	if cached := f.Cached(); len(cached) != 1 {
		t.Errorf("expected result cached, got %d", len(cached))
	}
}

func TestFetchEmptyRemoteFallsBackToLocal(t *testing.T) {
	srv := listingServer(t, serveServices(nil))

	f := New(Config{RemoteURL: srv.URL}, staticReader{{Name: "Local"}})
	if got := f.Remote(context.Background()); got == nil || len(got) != 0 {
		t.Errorf("Remote = %v, want empty non-nil", got)
	}
	res := f.Fetch(context.Background())
	if res.Source != SourceLocal || res.Services[0].Name != "Local" {
		t.Errorf("Fetch = %+v", res)
	}
}

func TestFetchUsesCacheWhenRemoteDown(t *testing.T) {
	var down atomic.Bool
	remote := []catalog.Service{{ID: "r1", Name: "Remote"}}
	srv := listingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		serveServices(remote)(w, r)
	})

	f := New(Config{RemoteURL: srv.URL}, nil)
	ctx := context.Background()
	if res := f.Fetch(ctx); res.Source != SourceRemote {
		t.Fatalf("first fetch source = %s", res.Source)
	}

	down.Store(true)
	if res := f.Fetch(ctx); res.Source != SourceCache || res.Services[0].ID != "r1" {
		t.Errorf("fetch while down = %+v", res)
	}
}

func TestFetchNeverFails(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "x", http.StatusInternalServerError) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
		{"success false", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"success":false}`)) }},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := listingServer(t, tt.handler)
			f := New(Config{RemoteURL: srv.URL, Timeout: 100 * time.Millisecond}, nil)
			res := f.Fetch(context.Background())
			if res.Source != SourceDefaults || len(res.Services) != catalog.DefaultCount {
				t.Errorf("Fetch = %s with %d services", res.Source, len(res.Services))
			}
		})
	}
}

func TestFetchUnreachableRemote(t *testing.T) {
	srv := httptest.NewServer(serveServices(nil))
	url := srv.URL
	srv.Close()

	f := New(Config{RemoteURL: url, Timeout: 200 * time.Millisecond}, staticReader{})
	res := f.Fetch(context.Background())
	if res.Source != SourceDefaults {
		t.Errorf("source = %s", res.Source)
	}
}

func TestFetchWithoutRemote(t *testing.T) {
	local := catalog.NewLocalStore(catalog.NewMemoryKV(), catalog.SeedPolicy{OnEmpty: true}, nil)
	f := New(Config{}, local)
	res := f.Fetch(context.Background())
	if res.Source != SourceLocal || len(res.Services) != catalog.DefaultCount {
		t.Errorf("Fetch = %s with %d services", res.Source, len(res.Services))
	}
}
