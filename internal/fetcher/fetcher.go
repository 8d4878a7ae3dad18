// Package fetcher answers "what is the catalog right now" from the best
// source available: the public API of a catalogd server, then a local store,
// then the built-in defaults. It never returns an error.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/catalogd/internal/catalog"
	"go.uber.org/zap"
)

// PublicPath is the listing endpoint queried on the remote server.
const PublicPath = "/api/public/services"

// Source names where a result came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceLocal    Source = "local"
	SourceDefaults Source = "defaults"
)

// Result is the outcome of a fetch.
type Result struct {
	Services []catalog.Service
	Source   Source
}

// Reader is a local catalog source, such as catalog.LocalStore.
type Reader interface {
	Read(ctx context.Context) []catalog.Service
}

// Config controls the remote lookup. An empty RemoteURL skips it.
type Config struct {
	RemoteURL string
	Timeout   time.Duration
}

// Fetcher resolves the current catalog.
type Fetcher struct {
	remote string
	client *http.Client
	local  Reader

	mu     sync.RWMutex
	cached []catalog.Service
}

// New creates a Fetcher. local may be nil.
func New(cfg Config, local Reader) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fetcher{
		remote: strings.TrimRight(cfg.RemoteURL, "/"),
		client: &http.Client{Timeout: timeout},
		local:  local,
	}
}

// Fetch returns the remote catalog when it is reachable and non-empty. When
// the remote is unreachable the last good remote result is used. After that
// come the local reader and finally the defaults.
func (f *Fetcher) Fetch(ctx context.Context) Result {
	if f.remote != "" {
		services, err := f.fetchRemote(ctx)
		if err != nil {
			zap.L().Warn("fetching remote catalog", zap.String("url", f.remote), zap.Error(err))
			if cached := f.Cached(); len(cached) > 0 {
				return Result{Services: cached, Source: SourceCache}
			}
		} else if len(services) > 0 {
			return Result{Services: services, Source: SourceRemote}
		}
	}

	if f.local != nil {
		if services := f.local.Read(ctx); len(services) > 0 {
			return Result{Services: services, Source: SourceLocal}
		}
	}
	return Result{Services: catalog.Defaults(), Source: SourceDefaults}
}

// Remote queries the remote listing. An empty result or a transport failure
// yields an empty slice; a non-empty result is cached.
func (f *Fetcher) Remote(ctx context.Context) []catalog.Service {
	services, err := f.fetchRemote(ctx)
	if err != nil {
		zap.L().Warn("fetching remote catalog", zap.String("url", f.remote), zap.Error(err))
		return []catalog.Service{}
	}
	return services
}

// Cached returns the last non-empty remote result.
func (f *Fetcher) Cached() []catalog.Service {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]catalog.Service(nil), f.cached...)
}

type listing struct {
	Success  bool              `json:"success"`
	Services []catalog.Service `json:"services"`
}

func (f *Fetcher) fetchRemote(ctx context.Context) ([]catalog.Service, error) {
	if f.remote == "" {
		return nil, fmt.Errorf("no remote configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.remote+PublicPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body listing
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}
	if !body.Success || len(body.Services) == 0 {
		return []catalog.Service{}, nil
	}

	f.mu.Lock()
	f.cached = body.Services
	f.mu.Unlock()
	return body.Services, nil
}
