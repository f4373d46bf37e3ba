// Package indices manages the Elasticsearch indices behind the search and
// statistics aliases.
package indices

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/marketplace/cmd/common"
	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/config"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/elasticsearch"
)

// target is one alias with the mapping of its indices.
type target struct {
	alias   string
	mapping map[string]any
}

// Command returns the indices command.
func Command(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indices",
		Short: "Manage the search and statistics indices",
	}

	var (
		kinds    []string
		force    bool
		skipApps bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create versioned indices for aliases that have none",
		Long: `Create adds a timestamped index behind each alias. Aliases that already
point at an index are left alone unless --force is given, in which case a
new index is added next to the existing ones so writes go to both.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), load, func(d *common.Deps, m *elasticsearch.IndexManager) error {
				targets, err := selectTargets(d.Config, m, kinds, !skipApps)
				if err != nil {
					return err
				}
				return createIndices(cmd.Context(), cmd.OutOrStdout(), d.Logger, m, targets, force, time.Now())
			})
		},
	}
	create.Flags().StringSliceVar(&kinds, "kind", nil, "statistics kinds to create, all when empty")
	create.Flags().BoolVar(&force, "force", false, "create a new index even when the alias exists")
	create.Flags().BoolVar(&skipApps, "skip-apps", false, "do not create the apps index")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the indices behind each alias",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd.Context(), load, func(d *common.Deps, m *elasticsearch.IndexManager) error {
				targets, err := selectTargets(d.Config, m, nil, true)
				if err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.SetStyle(table.StyleLight)
				tw.AppendHeader(table.Row{"Alias", "Indices"})
				for _, t := range targets {
					names, aliasErr := m.AliasIndices(cmd.Context(), t.alias)
					if aliasErr != nil {
						return aliasErr
					}
					tw.AppendRow(table.Row{t.alias, strings.Join(names, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func withManager(
	ctx context.Context,
	load common.ConfigLoader,
	fn func(*common.Deps, *elasticsearch.IndexManager) error,
) error {
	d, err := common.Bootstrap(ctx, load, common.Needs{Elasticsearch: true})
	if err != nil {
		return err
	}
	defer d.Close()

	return fn(d, elasticsearch.NewIndexManager(d.ES, d.Config.Elasticsearch.StatsIndexPrefix))
}

// selectTargets returns the statistics aliases for kinds (all indexing kinds
// when empty), followed by the apps alias when withApps is set.
func selectTargets(cfg *config.Config, m *elasticsearch.IndexManager, kinds []string, withApps bool) ([]target, error) {
	selected := domain.IndexingKinds
	if len(kinds) > 0 {
		selected = make([]domain.TaskKind, 0, len(kinds))
		for _, k := range kinds {
			kind := domain.TaskKind(k)
			if elasticsearch.StatsMapping(kind) == nil {
				return nil, &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("no statistics index for %q", k)}
			}
			selected = append(selected, kind)
		}
	}

	targets := make([]target, 0, len(selected)+1)
	for _, kind := range selected {
		targets = append(targets, target{alias: m.StatsAlias(kind), mapping: elasticsearch.StatsMapping(kind)})
	}
	if withApps {
		targets = append(targets, target{alias: cfg.Elasticsearch.AppsAlias, mapping: elasticsearch.AppsMapping()})
	}
	return targets, nil
}

func createIndices(
	ctx context.Context,
	out io.Writer,
	log infralogger.Logger,
	m *elasticsearch.IndexManager,
	targets []target,
	force bool,
	now time.Time,
) error {
	for _, t := range targets {
		existing, err := m.AliasIndices(ctx, t.alias)
		if err != nil {
			return err
		}
		if len(existing) > 0 && !force {
			fmt.Fprintf(out, "%s: exists (%s)\n", t.alias, strings.Join(existing, ", "))
			continue
		}

		index, err := m.CreateVersioned(ctx, t.alias, t.mapping, now)
		if err != nil {
			return fmt.Errorf("create index for %s: %w", t.alias, err)
		}
		log.Info("Created index",
			infralogger.String("alias", t.alias),
			infralogger.String("index", index),
		)
		fmt.Fprintf(out, "%s: created %s\n", t.alias, index)
	}
	return nil
}
