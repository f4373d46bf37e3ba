package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/telemetry"
)

// IndexRunner runs statistics indexing tasks.
type IndexRunner interface {
	Run(ctx context.Context, task domain.Task) error
}

// TotalsRunner runs global totals tasks.
type TotalsRunner interface {
	RunTask(ctx context.Context, task domain.Task) error
}

// Executor routes a task to the job of its kind.
type Executor struct {
	indexer IndexRunner
	totals  TotalsRunner
	metrics *telemetry.Metrics
	logger  infralogger.Logger
}

// NewExecutor creates an executor. metrics may be nil.
func NewExecutor(indexer IndexRunner, totals TotalsRunner, metrics *telemetry.Metrics, log infralogger.Logger) *Executor {
	return &Executor{indexer: indexer, totals: totals, metrics: metrics, logger: log}
}

// Handle runs task. Indexing failures have already been rescheduled by the
// indexer when they reach here; global totals failures are not retried.
func (e *Executor) Handle(ctx context.Context, task domain.Task) error {
	start := time.Now()
	log := e.logger.With(
		infralogger.String("task_id", task.ID),
		infralogger.String("kind", string(task.Kind)),
		infralogger.Int("attempt", task.Attempt),
	)

	var err error
	switch task.Kind {
	case domain.KindUpdateCounts, domain.KindDownloadCounts, domain.KindCollectionCounts, domain.KindThemeUserCounts:
		err = e.indexer.Run(ctx, task)
	case domain.KindGlobalTotals:
		err = e.totals.RunTask(ctx, task)
	default:
		err = fmt.Errorf("no handler for task kind %q", task.Kind)
	}

	elapsed := time.Since(start)
	outcome := outcomeOf(err)
	if e.metrics != nil {
		e.metrics.TasksProcessed.WithLabelValues(string(task.Kind), outcome).Inc()
		e.metrics.TaskDuration.WithLabelValues(string(task.Kind)).Observe(elapsed.Seconds())
	}

	if err != nil {
		log.Error("Task failed",
			infralogger.String("outcome", outcome),
			infralogger.Duration("duration", elapsed),
			infralogger.Error(err),
		)
		return err
	}

	log.Debug("Task completed", infralogger.Duration("duration", elapsed))
	return nil
}

func outcomeOf(err error) string {
	var transient *domain.TransientIndexError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &transient):
		return "retried"
	default:
		return "failed"
	}
}
