// Package reconciler is the polling backstop for missed change signals. On
// every tick it fingerprints the catalog and calls back when the fingerprint
// moved since the previous tick.
package reconciler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/ziadkadry99/catalogd/internal/catalog"
	"go.uber.org/zap"
)

const (
	// MinInterval is the shortest accepted tick interval.
	MinInterval = 250 * time.Millisecond
	// DefaultInterval is used when no interval is configured.
	DefaultInterval = 5 * time.Second
)

// Source is anything that can report the whole catalog and its update marker.
type Source interface {
	Snapshot(ctx context.Context) ([]catalog.Service, string, error)
}

// ChangeFunc receives the catalog after a detected change.
type ChangeFunc func(ctx context.Context, services []catalog.Service)

// Reconciler polls a Source until stopped.
type Reconciler struct {
	source   Source
	onChange ChangeFunc
	interval time.Duration

	mu   sync.Mutex
	last string

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	runOnce  sync.Once
}

// New creates a Reconciler. A zero interval selects DefaultInterval and
// anything below MinInterval is raised to it.
func New(source Source, onChange ChangeFunc, interval time.Duration) *Reconciler {
	switch {
	case interval == 0:
		interval = DefaultInterval
	case interval < MinInterval:
		interval = MinInterval
	}
	return &Reconciler{
		source:   source,
		onChange: onChange,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Interval returns the effective tick interval.
func (r *Reconciler) Interval() time.Duration { return r.interval }

// Run records the current fingerprint as the baseline and then checks once
// per interval. It returns when ctx is cancelled or Stop is called. Only the
// first call runs; later calls return immediately.
func (r *Reconciler) Run(ctx context.Context) error {
	r.runOnce.Do(func() {
		defer close(r.done)

		if _, err := r.observe(ctx); err != nil {
			zap.L().Warn("reconciler baseline", zap.Error(err))
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		zap.L().Info("reconciler started", zap.Duration("interval", r.interval))
		for {
			select {
			case <-ticker.C:
				if _, err := r.Check(ctx); err != nil && ctx.Err() == nil {
					zap.L().Warn("reconciler check", zap.Error(err))
				}
			case <-r.stop:
				zap.L().Info("reconciler stopped")
				return
			case <-ctx.Done():
				zap.L().Info("reconciler stopped", zap.Error(ctx.Err()))
				return
			}
		}
	})
	return nil
}

// Check fingerprints the source once and calls the change callback when the
// fingerprint differs from the last one seen. It reports whether it fired.
func (r *Reconciler) Check(ctx context.Context) (bool, error) {
	services, changed, err := r.compare(ctx)
	if err != nil || !changed {
		return false, err
	}
	if r.onChange != nil {
		r.onChange(ctx, services)
	}
	return true, nil
}

// Stop ends Run. It is safe to call more than once and before Run.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed when Run has returned.
func (r *Reconciler) Done() <-chan struct{} { return r.done }

func (r *Reconciler) observe(ctx context.Context) (string, error) {
	services, marker, err := r.source.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	fp := Fingerprint(services, marker)
	r.mu.Lock()
	r.last = fp
	r.mu.Unlock()
	return fp, nil
}

func (r *Reconciler) compare(ctx context.Context) ([]catalog.Service, bool, error) {
	services, marker, err := r.source.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	fp := Fingerprint(services, marker)

	r.mu.Lock()
	defer r.mu.Unlock()
	if fp == r.last {
		return services, false, nil
	}
	r.last = fp
	return services, true, nil
}

// Fingerprint hashes the JSON form of services together with marker.
func Fingerprint(services []catalog.Service, marker string) string {
	if services == nil {
		services = []catalog.Service{}
	}
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(services)
	h.Write([]byte{0})
	h.Write([]byte(marker))
	return hex.EncodeToString(h.Sum(nil))
}
