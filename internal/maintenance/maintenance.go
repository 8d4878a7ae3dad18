// Package maintenance schedules the housekeeping jobs of the server: audit
// retention, orphan image cleanup and expired session removal.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AuditPruner deletes audit entries older than a cutoff.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SessionPruner deletes expired admin sessions.
type SessionPruner interface {
	PruneSessions(ctx context.Context) (int64, error)
}

// ImageSweeper removes uploaded images no service references.
type ImageSweeper func(ctx context.Context, minAge time.Duration) (int, error)

// Config selects when the jobs run and how much they keep.
type Config struct {
	// Schedule is a standard cron expression or descriptor such as "@daily".
	Schedule       string
	AuditRetention time.Duration
	OrphanMinAge   time.Duration
}

// Jobs runs every configured job on a cron schedule. Nil jobs are skipped.
type Jobs struct {
	cfg      Config
	audit    AuditPruner
	sessions SessionPruner
	sweep    ImageSweeper
	now      func() time.Time
}

// Report counts what one run removed.
type Report struct {
	AuditEntries int64
	Sessions     int64
	Images       int
}

// New creates the job set.
func New(cfg Config, audit AuditPruner, sessions SessionPruner, sweep ImageSweeper) *Jobs {
	return &Jobs{cfg: cfg, audit: audit, sessions: sessions, sweep: sweep, now: time.Now}
}

// RunOnce runs every job immediately. A failing job is logged and does not
// stop the others; the first error is returned.
func (j *Jobs) RunOnce(ctx context.Context) (Report, error) {
	var (
		rep   Report
		first error
	)
	fail := func(job string, err error) {
		zap.L().Warn("maintenance job failed", zap.String("job", job), zap.Error(err))
		if first == nil {
			first = fmt.Errorf("%s: %w", job, err)
		}
	}

	if j.audit != nil && j.cfg.AuditRetention > 0 {
		n, err := j.audit.DeleteBefore(ctx, j.now().Add(-j.cfg.AuditRetention))
		if err != nil {
			fail("audit retention", err)
		}
		rep.AuditEntries = n
	}
	if j.sessions != nil {
		n, err := j.sessions.PruneSessions(ctx)
		if err != nil {
			fail("session cleanup", err)
		}
		rep.Sessions = n
	}
	if j.sweep != nil {
		n, err := j.sweep(ctx, j.cfg.OrphanMinAge)
		if err != nil {
			fail("orphan image sweep", err)
		}
		rep.Images = n
	}

	zap.L().Info("maintenance finished",
		zap.Int64("audit_entries", rep.AuditEntries),
		zap.Int64("sessions", rep.Sessions),
		zap.Int("images", rep.Images))
	return rep, first
}

// Run schedules RunOnce and blocks until ctx ends. Running jobs are allowed
// to finish before Run returns.
func (j *Jobs) Run(ctx context.Context) error {
	sched := cron.New()
	_, err := sched.AddFunc(j.cfg.Schedule, func() {
		_, _ = j.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling maintenance %q: %w", j.cfg.Schedule, err)
	}
	sched.Start()
	zap.L().Info("maintenance scheduled", zap.String("schedule", j.cfg.Schedule))

	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}
