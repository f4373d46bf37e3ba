// Package httpd serves the marketplace search and statistics API.
package httpd

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/marketplace/cmd/common"
	infragin "github.com/jonesrussell/marketplace/infrastructure/gin"
	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/infrastructure/profiling"
	"github.com/jonesrussell/marketplace/internal/api"
	"github.com/jonesrussell/marketplace/internal/config"
	"github.com/jonesrussell/marketplace/internal/elasticsearch"
	"github.com/jonesrussell/marketplace/internal/search"
)

// Command returns the httpd command.
func Command(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the search and statistics API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), load)
		},
	}
}

func run(ctx context.Context, load common.ConfigLoader) error {
	d, err := common.Bootstrap(ctx, load, common.Needs{Database: true, Elasticsearch: true, Redis: true})
	if err != nil {
		return err
	}
	defer d.Close()

	cfg := d.Config
	log := d.Logger

	profiler, err := profiling.Start(cfg.Profiling, cfg.Service.Name, cfg.Service.Version, log)
	if err != nil {
		log.Warn("Profiling failed to start", infralogger.Error(err))
	} else {
		defer func() { _ = profiler.Stop() }()
	}

	log.Info("Starting marketplace API",
		infralogger.String("version", cfg.Service.Version),
		infralogger.Int("port", cfg.Service.Port),
		infralogger.Bool("debug", cfg.Service.Debug),
		infralogger.String("apps_alias", cfg.Elasticsearch.AppsAlias),
	)

	esClient := elasticsearch.NewClient(d.ES, cfg.Service.SearchTimeout, log)
	searchService := search.NewService(esClient, search.Config{
		Index:         cfg.Elasticsearch.AppsAlias,
		DefaultLimit:  cfg.Service.DefaultPageSize,
		MaxLimit:      cfg.Service.MaxPageSize,
		FeaturedLimit: cfg.Service.FeaturedLimit,
	}, log)

	handler := api.NewHandler(
		searchService,
		d.Producer(),
		d.Planner(),
		cfg.Service.SearchTimeout,
		d.Telemetry.Metrics,
		log,
	)

	server := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORS(cfg.CORS).
		WithHealthCheck("elasticsearch", infragin.PingChecker("elasticsearch", infragin.HealthStatusUnhealthy, esClient.Ping)).
		WithHealthCheck("database", infragin.PingChecker("database", infragin.HealthStatusDegraded, d.DB.PingContext)).
		WithHealthCheck("redis", infragin.PingChecker("redis", infragin.HealthStatusDegraded, func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		})).
		WithMetrics(d.Telemetry.Registry).
		WithRequestMetrics(d.Telemetry.Registry).
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, handler, cfg.Auth.JWTSecret, api.NewRateLimiter(cfg.Service.SearchRateLimit, cfg.Service.SearchRateBurst))
		}).
		Build()

	if runErr := server.RunWithGracefulShutdown(ctx); runErr != nil {
		return fmt.Errorf("server: %w", runErr)
	}

	log.Info("Marketplace API exited cleanly")
	return nil
}
