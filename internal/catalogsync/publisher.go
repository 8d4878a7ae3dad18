package catalogsync

import (
	"context"
	"time"

	"github.com/ziadkadry99/catalogd/internal/catalog"
	"go.uber.org/zap"
)

// Snapshotter returns the whole catalog plus a change marker.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]catalog.Service, string, error)
}

// Publisher turns catalog writes into signals on a Broker. It serves as the
// catalog.Announcer of the key-value store and as a catalog.Observer of the
// admin API.
type Publisher struct {
	broker Broker
	source Snapshotter
	origin string
	now    func() time.Time
}

// NewPublisher creates a Publisher. source may be nil when only Announce is
// used.
func NewPublisher(broker Broker, source Snapshotter, origin string) *Publisher {
	return &Publisher{broker: broker, source: source, origin: origin, now: time.Now}
}

// Announce publishes services as written at at.
func (p *Publisher) Announce(ctx context.Context, services []catalog.Service, at time.Time) error {
	return p.broker.Publish(ctx, NewSignal(services, at, p.origin))
}

// ServiceChanged publishes the catalog after an admin mutation.
func (p *Publisher) ServiceChanged(ctx context.Context, c catalog.Change) {
	if err := p.Refresh(ctx); err != nil {
		zap.L().Warn("publishing catalog change",
			zap.String("action", string(c.Action)), zap.Error(err))
	}
}

// Current reads the source and returns it as a signal carrying the source's
// change marker.
func (p *Publisher) Current(ctx context.Context) (Signal, error) {
	services, marker, err := p.source.Snapshot(ctx)
	if err != nil {
		return Signal{}, err
	}
	s := NewSignal(services, p.now(), p.origin)
	s.Marker = marker
	return s, nil
}

// Refresh publishes the current catalog as read from the source.
func (p *Publisher) Refresh(ctx context.Context) error {
	s, err := p.Current(ctx)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, s)
}
