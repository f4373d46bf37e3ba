// Package index indexes statistics records from the command line.
package index

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/marketplace/cmd/common"
	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/config"
	"github.com/jonesrussell/marketplace/internal/domain"
)

type options struct {
	kind    string
	ids     []int64
	index   string
	enqueue bool
}

// Command returns the index command.
func Command(load func() (*config.Config, error)) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index statistics records into Elasticsearch",
		Long: `Index reads the aggregate rows for the given ids and writes them to the
statistics index of the chosen kind. Failed batches are scheduled for retry
on the task queue. With --enqueue the work is handed to the workers instead.`,
		Example: "  marketplace index --kind update_counts --ids 1,2,3\n" +
			"  marketplace index --kind collection_counts --ids 42 --enqueue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			task, err := opts.task()
			if err != nil {
				return err
			}
			return run(cmd, load, task, opts.enqueue)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "", "statistics kind (update_counts, download_counts, collection_counts, theme_user_counts)")
	cmd.Flags().Int64SliceVar(&opts.ids, "ids", nil, "record ids, or collection ids for collection_counts")
	cmd.Flags().StringVar(&opts.index, "index", "", "target index instead of the kind's alias")
	cmd.Flags().BoolVar(&opts.enqueue, "enqueue", false, "submit the task to the queue instead of running it")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("ids")

	return cmd
}

func (o options) task() (domain.Task, error) {
	kind := domain.TaskKind(o.kind)
	if !kind.Valid() || kind == domain.KindGlobalTotals {
		return domain.Task{}, &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown statistics kind %q", o.kind)}
	}
	if len(o.ids) == 0 {
		return domain.Task{}, &domain.ValidationError{Field: "ids", Message: "at least one id is required"}
	}
	return domain.Task{Kind: kind, IDs: o.ids, Index: o.index}, nil
}

func run(cmd *cobra.Command, load common.ConfigLoader, task domain.Task, enqueue bool) error {
	ctx := cmd.Context()
	needs := common.Needs{Redis: true}
	if !enqueue {
		needs.Database = true
		needs.Elasticsearch = true
	}

	d, err := common.Bootstrap(ctx, load, needs)
	if err != nil {
		return err
	}
	defer d.Close()

	if enqueue {
		return submit(ctx, d, task, cmd)
	}

	indexer := d.Indexer(d.RetryScheduler())
	if runErr := indexer.Run(ctx, task); runErr != nil {
		return fmt.Errorf("index %s: %w", task.Kind, runErr)
	}

	d.Logger.Info("Indexed statistics",
		infralogger.String("kind", string(task.Kind)),
		infralogger.Int("ids", len(task.IDs)),
	)
	return nil
}

func submit(ctx context.Context, d *common.Deps, task domain.Task, cmd *cobra.Command) error {
	queued, err := d.Producer().Enqueue(ctx, task)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s task %s\n", queued.Kind, queued.ID)
	return nil
}
