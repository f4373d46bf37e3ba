// Package scheduler enqueues the daily global totals tasks on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
)

const runTimeout = 2 * time.Minute

// Planner lists the global totals tasks for a date; nil means today.
type Planner interface {
	Plan(ctx context.Context, date *domain.Date) ([]domain.Task, error)
}

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, tasks []domain.Task) ([]domain.Task, error)
}

// Config holds the cron expression and the zone it is evaluated in.
type Config struct {
	// Schedule is a standard five-field cron expression.
	Schedule string
	Timezone string
}

// Scheduler runs the totals plan on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	entry    cron.EntryID
	planner  Planner
	enqueuer Enqueuer
	logger   infralogger.Logger
}

// New creates a scheduler. The schedule and timezone are validated here.
func New(cfg Config, planner Planner, enqueuer Enqueuer, log infralogger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	cronParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, planner: planner, enqueuer: enqueuer, logger: log}

	entry, err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, runErr := s.RunOnce(ctx); runErr != nil {
			s.logger.Error("Scheduled global totals run failed", infralogger.Error(runErr))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	s.entry = entry

	return s, nil
}

// RunOnce plans today's global totals tasks and enqueues them. It returns
// the number of tasks enqueued.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	tasks, err := s.planner.Plan(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("plan global totals: %w", err)
	}

	enqueued, err := s.enqueuer.EnqueueBatch(ctx, tasks)
	if err != nil {
		return len(enqueued), fmt.Errorf("enqueue global totals after %d of %d tasks: %w", len(enqueued), len(tasks), err)
	}

	s.logger.Info("Global totals tasks enqueued", infralogger.Int("count", len(enqueued)))
	return len(enqueued), nil
}

// Start starts the cron in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", infralogger.Time("next_run", s.Next()))
}

// Stop stops the cron and waits for a running plan to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log infralogger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, infralogger.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, infralogger.Error(err), infralogger.Any("details", keysAndValues))
}
