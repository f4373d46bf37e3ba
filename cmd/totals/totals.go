// Package totals computes the global marketplace totals from the command line.
package totals

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/marketplace/cmd/common"
	"github.com/jonesrussell/marketplace/internal/config"
	"github.com/jonesrussell/marketplace/internal/domain"
	internaltotals "github.com/jonesrussell/marketplace/internal/totals"
)

type options struct {
	job     string
	date    string
	enqueue bool
}

// Command returns the totals command.
func Command(load func() (*config.Config, error)) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Compute the global marketplace totals",
		Long: `Totals computes one global statistic with --job, or every daily and
metrics job when no job is given. The date defaults to today for daily jobs
and to the latest update count date for metrics jobs.`,
		Example: "  marketplace totals\n" +
			"  marketplace totals --job addon_total_downloads --date 2013-03-04\n" +
			"  marketplace totals --enqueue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), load, opts)
		},
	}

	cmd.Flags().StringVar(&opts.job, "job", "", "job name, all jobs when empty")
	cmd.Flags().StringVar(&opts.date, "date", "", "statistics date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.enqueue, "enqueue", false, "submit the jobs to the queue instead of running them")

	return cmd
}

func (o options) parseDate() (*domain.Date, error) {
	if o.date == "" {
		return nil, nil //nolint:nilnil // no date means the job default
	}
	date, err := domain.ParseDate(o.date)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func run(ctx context.Context, out io.Writer, load common.ConfigLoader, opts options) error {
	date, err := opts.parseDate()
	if err != nil {
		return err
	}

	cfg, err := load()
	if err != nil {
		return err
	}
	log, err := common.NewLogger(cfg)
	if err != nil {
		return err
	}
	needs := common.Needs{Database: true, Redis: opts.enqueue || cfg.Secondary.Enabled}
	d, err := common.Open(ctx, cfg, log, needs)
	if err != nil {
		return err
	}
	defer d.Close()

	tasks, err := plan(ctx, d, opts.job, date)
	if err != nil {
		return err
	}

	if opts.enqueue {
		queued, enqueueErr := d.Producer().EnqueueBatch(ctx, tasks)
		if enqueueErr != nil {
			return enqueueErr
		}
		fmt.Fprintf(out, "queued %d global totals tasks\n", len(queued))
		return nil
	}

	runner := d.Runner()
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Job", "Date", "Count", "Secondary"})

	var failed []error
	for _, task := range tasks {
		result, runErr := runner.Run(ctx, task.Job, task.Date)
		if runErr != nil {
			failed = append(failed, fmt.Errorf("%s: %w", task.Job, runErr))
			t.AppendRow(table.Row{task.Job, dateString(task.Date), "-", "failed"})
			continue
		}
		t.AppendRow(table.Row{
			result.Primary.Total.Name,
			result.Primary.Total.Date.String(),
			result.Primary.Total.Count,
			secondaryStatus(result.Secondary),
		})
	}
	t.Render()

	return errors.Join(failed...)
}

// plan returns the single requested job, or every planned job.
func plan(ctx context.Context, d *common.Deps, job string, date *domain.Date) ([]domain.Task, error) {
	if job == "" {
		return d.Planner().Plan(ctx, date)
	}
	name, err := internaltotals.ParseJobName(job)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, job)
	}
	return []domain.Task{{Kind: domain.KindGlobalTotals, Job: string(name), Date: date}}, nil
}

func dateString(date *domain.Date) string {
	if date == nil {
		return "default"
	}
	return date.String()
}

func secondaryStatus(s internaltotals.SecondaryResult) string {
	switch {
	case !s.Attempted:
		return "skipped"
	case s.Err != nil:
		return "failed"
	default:
		return "ok"
	}
}
