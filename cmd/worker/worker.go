// Package worker runs the background task workers.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/marketplace/cmd/common"
	infragin "github.com/jonesrussell/marketplace/infrastructure/gin"
	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/infrastructure/profiling"
	"github.com/jonesrussell/marketplace/internal/config"
	"github.com/jonesrussell/marketplace/internal/queue"
	"github.com/jonesrussell/marketplace/internal/scheduler"
	internalworker "github.com/jonesrussell/marketplace/internal/worker"
)

const schedulerStopTimeout = 30 * time.Second

// Command returns the worker command.
func Command(load func() (*config.Config, error)) *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process indexing and global totals tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), load, withScheduler)
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "scheduler", false, "also run the global totals schedule (overrides scheduler.enabled)")
	return cmd
}

func run(ctx context.Context, load common.ConfigLoader, withScheduler bool) error {
	d, err := common.Bootstrap(ctx, load, common.Needs{Database: true, Elasticsearch: true, Redis: true})
	if err != nil {
		return err
	}
	defer d.Close()

	cfg := d.Config
	log := d.Logger.With(infralogger.String("consumer", cfg.Queue.Consumer))

	profiler, err := profiling.Start(cfg.Profiling, cfg.Service.Name+"-worker", cfg.Service.Version, log)
	if err != nil {
		log.Warn("Profiling failed to start", infralogger.Error(err))
	} else {
		defer func() { _ = profiler.Stop() }()
	}

	consumer, err := queue.NewConsumer(d.Redis, d.QueueConfig(), log)
	if err != nil {
		return err
	}
	if initErr := consumer.Initialize(ctx); initErr != nil {
		return fmt.Errorf("initialize consumer group: %w", initErr)
	}

	retries := d.RetryScheduler()
	executor := internalworker.NewExecutor(d.Indexer(retries), d.Runner(), d.Telemetry.Metrics, log)

	pool, err := internalworker.NewPool(internalworker.Config{
		Concurrency:  cfg.Queue.Concurrency,
		TaskTimeout:  cfg.Queue.TaskTimeout,
		DrainTimeout: cfg.Queue.ShutdownTimeout,
	}, consumer, executor, d.Telemetry.Metrics, log)
	if err != nil {
		return err
	}

	if withScheduler || cfg.Scheduler.Enabled {
		sched, schedErr := scheduler.New(scheduler.Config{
			Schedule: cfg.Scheduler.TotalsSchedule,
			Timezone: cfg.Scheduler.Timezone,
		}, d.Planner(), d.Producer(), log)
		if schedErr != nil {
			return schedErr
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schedulerStopTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
		log.Info("Global totals schedule enabled",
			infralogger.String("schedule", cfg.Scheduler.TotalsSchedule),
			infralogger.Time("next_run", sched.Next()),
		)
	}

	server := infragin.NewServerBuilder(cfg.Service.Name+"-worker", cfg.Service.WorkerPort).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithHealthCheck("redis", infragin.PingChecker("redis", infragin.HealthStatusUnhealthy, func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		})).
		WithHealthCheck("database", infragin.PingChecker("database", infragin.HealthStatusUnhealthy, d.DB.PingContext)).
		WithHealthCheck("pool", func(context.Context) infragin.CheckResult {
			total, failed := pool.Processed()
			return infragin.CheckResult{
				Status:  infragin.HealthStatusHealthy,
				Message: fmt.Sprintf("%s, %d processed, %d failed", pool.State(), total, failed),
			}
		}).
		WithMetrics(d.Telemetry.Registry).
		WithRoutes(func(router *gin.Engine) {
			router.GET("/queue", queueStatus(consumer, retries, d.Producer()))
		}).
		Build()

	log.Info("Starting marketplace worker",
		infralogger.String("stream", cfg.Queue.Stream),
		infralogger.Int("concurrency", cfg.Queue.Concurrency),
		infralogger.Int("port", cfg.Service.WorkerPort),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		retries.RunPromoter(runCtx, cfg.Queue.PromoteInterval)
	}()
	go func() {
		defer wg.Done()
		if serveErr := server.RunWithGracefulShutdown(runCtx); serveErr != nil {
			log.Error("Worker HTTP server stopped", infralogger.Error(serveErr))
		}
	}()

	poolErr := pool.Run(runCtx)
	cancel()
	wg.Wait()

	if poolErr != nil {
		return fmt.Errorf("worker pool: %w", poolErr)
	}

	log.Info("Marketplace worker exited cleanly")
	return nil
}
