package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudit struct {
	before time.Time
	n      int64
	err    error
}

func (f *fakeAudit) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.n, f.err
}

type fakeSessions struct{ n int64 }

func (f fakeSessions) PruneSessions(context.Context) (int64, error) { return f.n, nil }

func TestRunOnce(t *testing.T) {
	audit := &fakeAudit{n: 4}
	var gotAge time.Duration
	sweep := func(_ context.Context, minAge time.Duration) (int, error) {
		gotAge = minAge
		return 2, nil
	}
	j := New(Config{AuditRetention: 24 * time.Hour, OrphanMinAge: time.Hour}, audit, fakeSessions{n: 3}, sweep)
	now := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	rep, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{AuditEntries: 4, Sessions: 3, Images: 2}, rep)
	assert.Equal(t, now.Add(-24*time.Hour), audit.before)
	assert.Equal(t, time.Hour, gotAge)
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	audit := &fakeAudit{err: errors.New("db locked")}
	swept := false
	sweep := func(context.Context, time.Duration) (int, error) {
		swept = true
		return 1, nil
	}
	j := New(Config{AuditRetention: time.Hour}, audit, nil, sweep)

	rep, err := j.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit retention")
	assert.True(t, swept)
	assert.Equal(t, 1, rep.Images)
}

func TestRunOnceSkipsDisabledRetention(t *testing.T) {
	audit := &fakeAudit{}
	j := New(Config{}, audit, nil, nil)

	_, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, audit.before.IsZero())
}

func TestRunRejectsBadSchedule(t *testing.T) {
	j := New(Config{Schedule: "not a schedule"}, nil, nil, nil)
	err := j.Run(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	j := New(Config{Schedule: "@every 1h"}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
