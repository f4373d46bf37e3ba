package totals

import (
	"context"
	"time"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
)

// LatestDater reports the most recent update count date.
type LatestDater interface {
	LatestUpdateCountDate(ctx context.Context) (domain.Date, bool, error)
}

// Planner expands a date into the global totals tasks to run.
type Planner struct {
	store  LatestDater
	now    func() time.Time
	logger infralogger.Logger
}

// NewPlanner creates a planner. A nil now uses time.Now.
func NewPlanner(store LatestDater, now func() time.Time, log infralogger.Logger) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{store: store, now: now, logger: log}
}

// Plan returns one task per daily job and one per metrics job at date.
// Without a date, daily jobs run for today and metrics jobs for the latest
// update count date; metrics jobs are skipped when no update counts exist yet.
func (p *Planner) Plan(ctx context.Context, date *domain.Date) ([]domain.Task, error) {
	today := domain.Today(p.now())
	explicit := date != nil && !date.IsZero()
	day := today
	if explicit {
		day = *date
	}

	var tasks []domain.Task
	for _, job := range DailyJobs(day, today) {
		tasks = append(tasks, newTask(job, day))
	}

	metricsDay := day
	if !explicit {
		latest, ok, err := p.store.LatestUpdateCountDate(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.logger.Warn("No update counts yet, skipping metrics jobs")
			return tasks, nil
		}
		metricsDay = latest
	}
	for _, job := range MetricsJobs() {
		tasks = append(tasks, newTask(job, metricsDay))
	}
	return tasks, nil
}

func newTask(job JobName, date domain.Date) domain.Task {
	d := date
	return domain.Task{Kind: domain.KindGlobalTotals, Job: string(job), Date: &d}
}
