package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/ebay-connector/internal/metrics"
)

const staleJobAge = 2 * time.Hour

// Job run statuses.
const (
	runSucceeded = "succeeded"
	runFailed    = "failed"
)

// JobStore records job runs and holds the cross-replica scheduler locks.
type JobStore interface {
	InsertJobRun(ctx context.Context, jobName string) (string, error)
	CompleteJobRun(ctx context.Context, id string, status string, errText string, rowsAffected int) error
	RecoverStaleJobRuns(ctx context.Context, olderThan time.Duration) (int, error)
	AcquireSchedulerLock(ctx context.Context, jobName string, holder string, ttl time.Duration) (bool, error)
	ReleaseSchedulerLock(ctx context.Context, jobName string, holder string) error
}

// Scheduler runs every sync job on its own interval. Only one replica runs
// a given job at a time.
type Scheduler struct {
	cron      *cron.Cron
	engine    *Engine
	store     JobStore
	log       *slog.Logger
	holder    string
	intervals map[string]time.Duration
	entryIDs  map[string]cron.EntryID
}

// NewScheduler creates a Scheduler with one cron entry per job in
// intervals. Jobs with a zero interval are not scheduled.
func NewScheduler(
	eng *Engine,
	st JobStore,
	intervals map[string]time.Duration,
	log *slog.Logger,
) (*Scheduler, error) {
	host, _ := os.Hostname()
	s := &Scheduler{
		cron:      cron.New(),
		engine:    eng,
		store:     st,
		log:       log,
		holder:    fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		intervals: make(map[string]time.Duration),
		entryIDs:  make(map[string]cron.EntryID),
	}

	for _, job := range Jobs {
		interval := intervals[job]
		if interval <= 0 {
			continue
		}
		id, err := s.cron.AddFunc("@every "+interval.String(), func() {
			s.runScheduled(job)
		})
		if err != nil {
			return nil, fmt.Errorf("scheduling %s: %w", job, err)
		}
		s.intervals[job] = interval
		s.entryIDs[job] = id
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "holder", s.holder)
	s.cron.Start()
	s.SyncNextRunTimestamps()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// SyncNextRunTimestamps publishes the next run of every job as a gauge.
func (s *Scheduler) SyncNextRunTimestamps() {
	for job, id := range s.entryIDs {
		next := s.cron.Entry(id).Next
		if next.IsZero() {
			continue
		}
		metrics.SchedulerNextRunTimestamp.WithLabelValues(job).Set(float64(next.Unix()))
	}
}

// RecoverStaleJobRuns fails runs left open by a crashed replica.
func (s *Scheduler) RecoverStaleJobRuns(ctx context.Context) {
	n, err := s.store.RecoverStaleJobRuns(ctx, staleJobAge)
	if err != nil {
		s.log.Error("recovering stale job runs", "error", err)
		return
	}
	if n > 0 {
		s.log.Warn("recovered stale job runs", "count", n)
	}
}

// Trigger runs a job now, outside its schedule, under the same lock.
func (s *Scheduler) Trigger(ctx context.Context, job string) error {
	if !slices.Contains(Jobs, job) {
		return fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	return s.runJob(ctx, job, s.lockTTL(job), func(ctx context.Context) error {
		return s.engine.Run(ctx, job)
	})
}

func (s *Scheduler) runScheduled(job string) {
	ctx := context.Background()
	s.log.Info("scheduled sync starting", "job", job)
	err := s.runJob(ctx, job, s.lockTTL(job), func(ctx context.Context) error {
		return s.engine.Run(ctx, job)
	})
	if err != nil {
		s.log.Error("scheduled sync failed", "job", job, "error", err)
	}
	s.SyncNextRunTimestamps()
}

// runJob runs fn under the scheduler lock and records the run. A lock held
// by another replica skips the run without error.
func (s *Scheduler) runJob(
	ctx context.Context,
	name string,
	ttl time.Duration,
	fn func(ctx context.Context) error,
) error {
	ok, err := s.store.AcquireSchedulerLock(ctx, name, s.holder, ttl)
	if err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", name, err)
	}
	if !ok {
		s.log.Info("job already running elsewhere", "job", name)
		return nil
	}
	defer func() {
		if err := s.store.ReleaseSchedulerLock(context.WithoutCancel(ctx), name, s.holder); err != nil {
			s.log.Error("releasing scheduler lock", "job", name, "error", err)
		}
	}()

	runID, err := s.store.InsertJobRun(ctx, name)
	if err != nil {
		return fmt.Errorf("recording run of %s: %w", name, err)
	}

	jobErr := fn(ctx)

	status, errText := runSucceeded, ""
	if jobErr != nil {
		status, errText = runFailed, jobErr.Error()
	}
	if err := s.store.CompleteJobRun(context.WithoutCancel(ctx), runID, status, errText, 0); err != nil {
		s.log.Error("completing job run", "job", name, "run_id", runID, "error", err)
	}
	return jobErr
}

// lockTTL keeps the lock for at most one interval so a crashed holder does
// not block the next run.
func (s *Scheduler) lockTTL(job string) time.Duration {
	if d, ok := s.intervals[job]; ok {
		return d
	}
	return staleJobAge
}
