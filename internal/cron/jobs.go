package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/policychat/internal/health"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/internal/telemetry"
)

// SessionCounter is the subset of session.Manager needed by cron jobs.
type SessionCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthChecker is the subset of health.Checker needed by cron jobs.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// HealthProbeJob refreshes the health report and the component gauges.
type HealthProbeJob struct {
	Checker      HealthChecker
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "* * * * *"

	last health.Status
}

// Compile-time interface check.
var _ Job = (*HealthProbeJob)(nil)

// Name implements Job.
func (j *HealthProbeJob) Name() string { return "health_probe" }

// Schedule implements Job.
func (j *HealthProbeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run checks every component and logs status transitions. The scheduler
// never runs the same job twice at once, so last needs no lock.
func (j *HealthProbeJob) Run(ctx context.Context) error {
	report := j.Checker.Check(ctx)
	if report.Status != j.last {
		level := slog.LevelInfo
		if report.Status != health.StatusOK {
			level = slog.LevelWarn
		}
		j.Logger.Log(ctx, level, "cron: health status changed", "from", j.last, "to", report.Status)
		j.last = report.Status
	}
	return nil
}

// ActiveSessionsJob publishes the number of live sessions.
type ActiveSessionsJob struct {
	Sessions     SessionCounter
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "* * * * *"
}

// Compile-time interface check.
var _ Job = (*ActiveSessionsJob)(nil)

// Name implements Job.
func (j *ActiveSessionsJob) Name() string { return "active_sessions" }

// Schedule implements Job.
func (j *ActiveSessionsJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run counts live sessions and sets the gauge.
func (j *ActiveSessionsJob) Run(ctx context.Context) error {
	n, err := j.Sessions.Count(ctx)
	if err != nil {
		return fmt.Errorf("cron: active sessions: %w", err)
	}
	j.Metrics.SetActiveSessions(n)
	return nil
}

// OrphanSweepJob deletes history, counter and cache keys whose session
// metadata is gone. Such keys are left behind when a termination fails
// halfway and would otherwise linger until their TTL.
type OrphanSweepJob struct {
	Store        store.Store
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*OrphanSweepJob)(nil)

// Name implements Job.
func (j *OrphanSweepJob) Name() string { return "orphan_sweep" }

// Schedule implements Job.
func (j *OrphanSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run removes orphaned keys.
func (j *OrphanSweepJob) Run(ctx context.Context) error {
	sessionKeys, err := j.Store.Keys(ctx, store.SessionKeyPrefix)
	if err != nil {
		return fmt.Errorf("cron: orphan sweep: %w", err)
	}
	cacheKeys, err := j.Store.Keys(ctx, store.CachePrefix(""))
	if err != nil {
		return fmt.Errorf("cron: orphan sweep: %w", err)
	}

	live := make(map[string]struct{})
	for _, k := range sessionKeys {
		if id, ok := store.SessionIDFromKey(k); ok {
			live[id] = struct{}{}
		}
	}

	byOwner := make(map[string][]string)
	for _, k := range append(sessionKeys, cacheKeys...) {
		id, ok := store.OwnerFromKey(k)
		if !ok {
			continue
		}
		if _, alive := live[id]; !alive {
			byOwner[id] = append(byOwner[id], k)
		}
	}

	// A session being created writes its metadata last; re-check each
	// owner so its first keys are not swept.
	var orphans []string
	for id, keys := range byOwner {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: orphan sweep cancelled: %w", ctx.Err())
		}
		_, err := j.Store.Get(ctx, store.SessionKey(id))
		switch {
		case err == nil:
			continue
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("cron: orphan sweep: %w", err)
		}
		orphans = append(orphans, keys...)
	}
	if len(orphans) == 0 {
		return nil
	}
	if err := j.Store.Delete(ctx, orphans...); err != nil {
		return fmt.Errorf("cron: orphan sweep: %w", err)
	}
	j.Logger.Info("cron: removed orphaned keys", "count", len(orphans))
	return nil
}
