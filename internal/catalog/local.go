package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Keys used by the local catalog.
const (
	ServicesKey = "catalog.services"
	UpdatedKey  = ServicesKey + "_updated"
)

// Announcer broadcasts a freshly written catalog to whoever is listening.
type Announcer interface {
	Announce(ctx context.Context, services []Service, at time.Time) error
}

// SeedPolicy decides when the local catalog is replaced by the defaults.
type SeedPolicy struct {
	// OnEmpty seeds when the stored list is absent, empty or unreadable.
	OnEmpty bool
	// Floor seeds when fewer than Floor services are stored. Zero disables it.
	Floor int
}

// LocalStore keeps the whole catalog as one serialized blob in a KV. Every
// write is a full replace, last writer wins.
type LocalStore struct {
	kv       KV
	policy   SeedPolicy
	announce Announcer
}

// NewLocalStore creates a LocalStore. announcer may be nil.
func NewLocalStore(kv KV, policy SeedPolicy, announcer Announcer) *LocalStore {
	return &LocalStore{kv: kv, policy: policy, announce: announcer}
}

// Read returns the stored catalog. Corrupt or missing data, and catalogs
// below the seed floor, are replaced by the defaults. Read never fails.
func (l *LocalStore) Read(ctx context.Context) []Service {
	services, ok := l.load()
	if ok && !NeedsSeed(len(services), l.policy.OnEmpty, l.policy.Floor) {
		return services
	}
	if !ok && !l.policy.OnEmpty {
		return []Service{}
	}

	defaults := Defaults()
	if err := l.Write(ctx, defaults); err != nil {
		zap.L().Warn("seeding local catalog", zap.Error(err))
	}
	return defaults
}

// Write persists services, stamps the update marker, then announces the
// change. Entries without an id get one.
func (l *LocalStore) Write(ctx context.Context, services []Service) error {
	if services == nil {
		services = []Service{}
	}
	for i := range services {
		if services[i].ID == "" {
			services[i].ID = uuid.New().String()
		}
	}

	blob, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("marshalling catalog: %w", err)
	}
	if err := l.kv.Set(ServicesKey, string(blob)); err != nil {
		return fmt.Errorf("storing catalog: %w", err)
	}

	now := time.Now()
	if err := l.kv.Set(UpdatedKey, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		zap.L().Warn("stamping catalog update marker", zap.Error(err))
	}

	if l.announce != nil {
		if err := l.announce.Announce(ctx, services, now); err != nil {
			zap.L().Warn("announcing catalog write", zap.Error(err))
		}
	}
	return nil
}

// Put replaces the service with the same id, or appends it.
func (l *LocalStore) Put(ctx context.Context, svc Service) (Service, error) {
	services, _ := l.load()
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	replaced := false
	for i := range services {
		if services[i].ID == svc.ID {
			services[i] = svc
			replaced = true
			break
		}
	}
	if !replaced {
		services = append(services, svc)
	}
	return svc, l.Write(ctx, services)
}

// Remove deletes the service with the given id.
func (l *LocalStore) Remove(ctx context.Context, id string) error {
	services, _ := l.load()
	kept := make([]Service, 0, len(services))
	for _, s := range services {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(services) {
		return ErrNotFound
	}
	return l.Write(ctx, kept)
}

// LastUpdated returns the raw update marker, or "" when none is stored.
func (l *LocalStore) LastUpdated() string {
	v, _, err := l.kv.Get(UpdatedKey)
	if err != nil {
		return ""
	}
	return v
}

// Snapshot returns the catalog together with its update marker without
// triggering any seeding.
func (l *LocalStore) Snapshot(ctx context.Context) ([]Service, string, error) {
	services, _ := l.load()
	return services, l.LastUpdated(), nil
}

// load reports false when the blob is absent or unreadable.
func (l *LocalStore) load() ([]Service, bool) {
	raw, ok, err := l.kv.Get(ServicesKey)
	if err != nil {
		zap.L().Warn("reading local catalog", zap.Error(err))
		return []Service{}, false
	}
	if !ok || raw == "" {
		return []Service{}, false
	}
	var services []Service
	if err := json.Unmarshal([]byte(raw), &services); err != nil {
		zap.L().Warn("local catalog is corrupt, treating as absent", zap.Error(err))
		return []Service{}, false
	}
	if services == nil {
		services = []Service{}
	}
	return services, true
}
