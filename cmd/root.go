// Package cmd implements the marketplace command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cmdhttpd "github.com/jonesrussell/marketplace/cmd/httpd"
	cmdindex "github.com/jonesrussell/marketplace/cmd/index"
	cmdindices "github.com/jonesrussell/marketplace/cmd/indices"
	cmdmigrate "github.com/jonesrussell/marketplace/cmd/migrate"
	cmdtotals "github.com/jonesrussell/marketplace/cmd/totals"
	cmdworker "github.com/jonesrussell/marketplace/cmd/worker"
	infraconfig "github.com/jonesrussell/marketplace/infrastructure/config"
	"github.com/jonesrussell/marketplace/internal/config"
)

const defaultConfigPath = "config.yml"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           "marketplace",
		Short:         "Marketplace search and statistics indexing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is $CONFIG_PATH or ./config.yml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", cfg.Service.Name, cfg.Service.Version)
			return nil
		},
	})

	rootCmd.AddCommand(
		cmdhttpd.Command(loadConfig),
		cmdworker.Command(loadConfig),
		cmdindex.Command(loadConfig),
		cmdtotals.Command(loadConfig),
		cmdmigrate.Command(loadConfig),
		cmdindices.Command(loadConfig),
	)
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = infraconfig.GetConfigPath(defaultConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
