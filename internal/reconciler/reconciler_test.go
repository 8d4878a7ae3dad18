package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ziadkadry99/catalogd/internal/catalog"
)

type fakeSource struct {
	mu       sync.Mutex
	services []catalog.Service
	marker   string
	err      error
	calls    int
}

func (f *fakeSource) Snapshot(context.Context) ([]catalog.Service, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]catalog.Service(nil), f.services...), f.marker, f.err
}

func (f *fakeSource) set(services []catalog.Service, marker string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services = services
	f.marker = marker
}

func TestNewClampsInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(&fakeSource{}, nil, 0).Interval())
	assert.Equal(t, MinInterval, New(&fakeSource{}, nil, time.Millisecond).Interval())
	assert.Equal(t, MinInterval, New(&fakeSource{}, nil, -time.Second).Interval())
	assert.Equal(t, 2*time.Second, New(&fakeSource{}, nil, 2*time.Second).Interval())
}

func TestFingerprint(t *testing.T) {
	a := []catalog.Service{{ID: "1", Name: "A"}}
	assert.Equal(t, Fingerprint(a, "m"), Fingerprint([]catalog.Service{{ID: "1", Name: "A"}}, "m"))
	assert.NotEqual(t, Fingerprint(a, "m"), Fingerprint(a, "n"), "marker change")
	assert.NotEqual(t, Fingerprint(a, "m"), Fingerprint([]catalog.Service{{ID: "1", Name: "B"}}, "m"), "content change")
	assert.Equal(t, Fingerprint(nil, ""), Fingerprint([]catalog.Service{}, ""))
}

func TestCheckFiresOnlyOnChange(t *testing.T) {
	src := &fakeSource{services: []catalog.Service{{ID: "1", Name: "A"}}, marker: "1"}
	var got [][]catalog.Service
	r := New(src, func(_ context.Context, s []catalog.Service) { got = append(got, s) }, time.Second)
	ctx := context.Background()

	_, err := r.observe(ctx)
	require.NoError(t, err)

	fired, err := r.Check(ctx)
	require.NoError(t, err)
	assert.False(t, fired)

	src.set([]catalog.Service{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}, "2")
	fired, err = r.Check(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
	require.Len(t, got, 1)
	assert.Len(t, got[0], 2)

	fired, _ = r.Check(ctx)
	assert.False(t, fired, "same fingerprint twice")

	src.set(src.services, "3")
	fired, _ = r.Check(ctx)
	assert.True(t, fired, "marker alone moved")
}

func TestCheckSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db closed")}
	calls := 0
	r := New(src, func(context.Context, []catalog.Service) { calls++ }, time.Second)

	fired, err := r.Check(context.Background())
	assert.Error(t, err)
	assert.False(t, fired)
	assert.Zero(t, calls)
}

func TestRunDetectsChangesUntilStopped(t *testing.T) {
	src := &fakeSource{services: []catalog.Service{{ID: "1", Name: "A"}}, marker: "1"}
	var fired atomic.Int32
	r := New(src, func(context.Context, []catalog.Service) { fired.Add(1) }, MinInterval)

	go r.Run(context.Background())

	// Give Run time to take its baseline before changing the source.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls > 0
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, fired.Load(), "baseline must not fire")

	src.set([]catalog.Service{{ID: "1", Name: "A2"}}, "2")
	require.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 20*time.Millisecond)

	r.Stop()
	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunExitsOnContextCancel(t *testing.T) {
	r := New(&fakeSource{}, nil, MinInterval)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-r.Done()

	// A second Run is a no-op.
	assert.NoError(t, r.Run(context.Background()))
}

func TestStopBeforeRun(t *testing.T) {
	r := New(&fakeSource{}, nil, MinInterval)
	r.Stop()

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored an earlier Stop")
	}
}

func TestRunAgainstLocalStore(t *testing.T) {
	local := catalog.NewLocalStore(catalog.NewMemoryKV(), catalog.SeedPolicy{OnEmpty: true}, nil)
	ctx := context.Background()
	local.Read(ctx)

	var names []string
	r := New(local, func(_ context.Context, s []catalog.Service) {
		names = names[:0]
		for _, svc := range s {
			names = append(names, svc.Name)
		}
	}, MinInterval)
	_, err := r.observe(ctx)
	require.NoError(t, err)

	require.NoError(t, local.Write(ctx, []catalog.Service{{Name: "Only"}}))
	fired, err := r.Check(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, []string{"Only"}, names)
}
