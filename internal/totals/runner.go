package totals

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/database"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/telemetry"
)

// DefaultCollectorAddonID is the add-on whose update pings are reported
// as collector_updatepings.
const DefaultCollectorAddonID = 11950

// StatsStore runs statistic queries and stores global totals.
type StatsStore interface {
	Scalar(ctx context.Context, q database.StatQuery) (sql.NullInt64, error)
	UpsertGlobalStat(ctx context.Context, total domain.GlobalTotal) error
	LatestUpdateCountDate(ctx context.Context) (domain.Date, bool, error)
}

// SecondaryStore records marketplace totals in the secondary metrics store.
type SecondaryStore interface {
	Record(ctx context.Context, job string, date domain.Date, count int64) error
}

// PrimaryResult is the stored global total.
type PrimaryResult struct {
	Total domain.GlobalTotal
}

// SecondaryResult describes the best-effort secondary write.
type SecondaryResult struct {
	Attempted bool
	Err       error
}

// Result is the outcome of one global totals job.
type Result struct {
	Primary   PrimaryResult
	Secondary SecondaryResult
}

// Config holds the runner settings.
type Config struct {
	CollectorAddonID int64
	Now              func() time.Time
}

// Runner computes one global total per call.
type Runner struct {
	store     StatsStore
	secondary SecondaryStore
	config    Config
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	logger    infralogger.Logger
}

// NewRunner creates a runner. secondary, metrics and tracer may be nil.
func NewRunner(
	store StatsStore,
	secondary SecondaryStore,
	cfg Config,
	metrics *telemetry.Metrics,
	tracer trace.Tracer,
	log infralogger.Logger,
) *Runner {
	if cfg.CollectorAddonID == 0 {
		cfg.CollectorAddonID = DefaultCollectorAddonID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		store:     store,
		secondary: secondary,
		config:    cfg,
		metrics:   metrics,
		tracer:    tracer,
		logger:    log,
	}
}

// RunTask runs a queued global totals task.
func (r *Runner) RunTask(ctx context.Context, task domain.Task) error {
	_, err := r.Run(ctx, task.Job, task.Date)
	return err
}

// Run computes job for date and upserts it. A nil date means today for
// daily jobs and the latest update count date for metrics jobs. Compute
// and upsert failures are returned; a secondary failure is only logged and
// reported in the result.
func (r *Runner) Run(ctx context.Context, job string, date *domain.Date) (result *Result, err error) {
	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "totals."+job)
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}

	result, err = r.run(ctx, job, date)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		r.logger.Error("Failed to update global stats",
			infralogger.String("job", job),
			infralogger.Error(err),
		)
	}
	if r.metrics != nil {
		r.metrics.TotalsComputed.WithLabelValues(job, outcome).Inc()
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, rawJob string, date *domain.Date) (*Result, error) {
	job, err := ParseJobName(rawJob)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, rawJob)
	}

	day, err := r.resolveDate(ctx, job, date)
	if err != nil {
		return nil, err
	}
	if job.TodayOnly() && !day.Equal(domain.Today(r.config.Now())) {
		return nil, fmt.Errorf("%w: %s only exists for today, not %s", domain.ErrUnknownJob, job, day)
	}

	r.logger.Info("Updating global statistics totals",
		infralogger.String("job", string(job)),
		infralogger.String("date", day.String()),
	)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.String("date", day.String()))
	}

	q, err := Query(job, day, r.config.CollectorAddonID)
	if err != nil {
		return nil, err
	}
	value, err := r.store.Scalar(ctx, q)
	if err != nil {
		return nil, &domain.ComputeError{Job: string(job), Date: day, Cause: err}
	}

	total := domain.GlobalTotal{Name: string(job), Date: day}
	if value.Valid {
		total.Count = value.Int64
	}

	if err = r.store.UpsertGlobalStat(ctx, total); err != nil {
		return nil, &domain.PrimaryUpsertError{Job: string(job), Date: day, Cause: err}
	}

	result := &Result{Primary: PrimaryResult{Total: total}}
	if job.Secondary() && r.secondary != nil {
		result.Secondary = r.writeSecondary(ctx, total)
	}

	r.logger.Debug("Committed global stats details",
		infralogger.String("job", total.Name),
		infralogger.Int64("count", total.Count),
		infralogger.String("date", day.String()),
	)
	return result, nil
}

func (r *Runner) resolveDate(ctx context.Context, job JobName, date *domain.Date) (domain.Date, error) {
	if date != nil && !date.IsZero() {
		return *date, nil
	}
	if !job.IsMetrics() {
		return domain.Today(r.config.Now()), nil
	}

	latest, ok, err := r.store.LatestUpdateCountDate(ctx)
	if err != nil {
		return domain.Date{}, &domain.ComputeError{Job: string(job), Cause: err}
	}
	if !ok {
		return domain.Date{}, domain.ErrNoMetricsDate
	}
	return latest, nil
}

func (r *Runner) writeSecondary(ctx context.Context, total domain.GlobalTotal) SecondaryResult {
	err := r.secondary.Record(ctx, total.Name, total.Date, total.Count)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		err = &domain.SecondaryWriteError{Job: total.Name, Date: total.Date, Cause: err}
		r.logger.Error("Update of secondary metrics store failed",
			infralogger.String("job", total.Name),
			infralogger.Error(err),
		)
	}
	if r.metrics != nil {
		r.metrics.SecondaryWrites.WithLabelValues(outcome).Inc()
	}
	return SecondaryResult{Attempted: true, Err: err}
}
