// Package common wires the dependencies shared by the marketplace commands.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/marketplace/infrastructure/circuitbreaker"
	infraelasticsearch "github.com/jonesrussell/marketplace/infrastructure/elasticsearch"
	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	infraredis "github.com/jonesrussell/marketplace/infrastructure/redis"
	"github.com/jonesrussell/marketplace/infrastructure/retry"
	"github.com/jonesrussell/marketplace/internal/config"
	"github.com/jonesrussell/marketplace/internal/database"
	"github.com/jonesrussell/marketplace/internal/elasticsearch"
	"github.com/jonesrussell/marketplace/internal/indexing"
	"github.com/jonesrussell/marketplace/internal/monolith"
	"github.com/jonesrussell/marketplace/internal/queue"
	"github.com/jonesrussell/marketplace/internal/telemetry"
	"github.com/jonesrussell/marketplace/internal/totals"
)

// ErrConfigRequired is returned when a command runs without configuration.
var ErrConfigRequired = errors.New("configuration is required")

// Deps holds the connections a command opened. Unused connections stay nil.
type Deps struct {
	Config    *config.Config
	Logger    infralogger.Logger
	Telemetry *telemetry.Provider
	DB        *sqlx.DB
	ES        *es.Client
	Redis     *redis.Client
}

// Needs selects which backends Open connects to.
type Needs struct {
	Database      bool
	Elasticsearch bool
	Redis         bool
}

// NewLogger builds the service logger from the logging section.
func NewLogger(cfg *config.Config) (infralogger.Logger, error) {
	log, err := infralogger.New(infralogger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(infralogger.String("service", cfg.Service.Name)), nil
}

// Open connects to the requested backends. On failure everything opened so
// far is closed.
func Open(ctx context.Context, cfg *config.Config, log infralogger.Logger, needs Needs) (*Deps, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	d := &Deps{Config: cfg, Logger: log, Telemetry: telemetry.NewProvider()}

	if needs.Database {
		db, err := database.NewPostgresConnection(ctx, cfg.Database)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		d.DB = db
		log.Info("Connected to PostgreSQL", infralogger.String("host", cfg.Database.Host))
	}

	if needs.Elasticsearch {
		esCfg := infraelasticsearch.FromSettings(cfg.Elasticsearch.ElasticsearchConfig)
		esCfg.CAFile = cfg.Elasticsearch.CAFile
		client, err := infraelasticsearch.NewClient(ctx, esCfg, log)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect to elasticsearch: %w", err)
		}
		d.ES = client
	}

	if needs.Redis {
		client, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		d.Redis = client
		log.Info("Connected to Redis", infralogger.String("address", cfg.Redis.Address))
	}

	return d, nil
}

// Close releases every open connection.
func (d *Deps) Close() {
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Warn("Failed to close database", infralogger.Error(err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn("Failed to close redis", infralogger.Error(err))
		}
	}
	_ = d.Logger.Sync()
}

// QueueConfig maps the queue section onto the queue package settings.
func (d *Deps) QueueConfig() queue.Config {
	q := d.Config.Queue
	return queue.Config{
		Stream:           q.Stream,
		Group:            q.Group,
		Consumer:         q.Consumer,
		DeadLetterStream: q.DeadLetterStream,
		DelayedSet:       q.DelayedSet,
		BlockTimeout:     q.BlockTimeout,
		ReclaimIdle:      q.ReclaimIdle,
		Retry: retry.Config{
			MaxAttempts:  q.MaxAttempts,
			InitialDelay: q.InitialBackoff,
			MaxDelay:     q.MaxBackoff,
			Multiplier:   2,
		},
	}
}

// Producer returns a task producer over the Redis connection.
func (d *Deps) Producer() *queue.Producer {
	return queue.NewProducer(d.Redis, d.QueueConfig(), time.Now)
}

// RetryScheduler returns the delayed-retry scheduler.
func (d *Deps) RetryScheduler() *queue.RetryScheduler {
	return queue.NewRetryScheduler(d.Redis, d.QueueConfig(), time.Now, d.Telemetry.Metrics, d.Logger)
}

// Indexer builds the statistics indexer. Failed batches are rescheduled
// through retrier.
func (d *Deps) Indexer(retrier indexing.Retrier) *indexing.Indexer {
	return indexing.NewIndexer(
		database.NewAggregateRepository(d.DB),
		indexing.NewBulkWriters(d.ES, elasticsearch.DefaultFlushThreshold, d.Logger),
		elasticsearch.NewIndexManager(d.ES, d.Config.Elasticsearch.StatsIndexPrefix),
		retrier,
		d.Telemetry.Metrics,
		d.Telemetry.Tracer,
		d.Logger.With(infralogger.String("component", "indexing")),
	)
}

// Runner builds the global totals runner. The secondary store is only
// wired when enabled and Redis is connected.
func (d *Deps) Runner() *totals.Runner {
	var secondary totals.SecondaryStore
	if d.Config.Secondary.Enabled && d.Redis != nil {
		breaker := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: d.Config.Secondary.FailureThreshold,
			Timeout:          d.Config.Secondary.OpenTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				d.Logger.Warn("Secondary metrics circuit changed state",
					infralogger.String("from", from.String()),
					infralogger.String("to", to.String()),
				)
			},
		})
		secondary = monolith.NewStore(d.Redis, breaker, d.Config.Secondary.KeyPrefix, d.Logger)
	}

	return totals.NewRunner(
		database.NewStatsRepository(d.DB),
		secondary,
		totals.Config{CollectorAddonID: d.Config.Totals.CollectorAddonID, Now: d.Now},
		d.Telemetry.Metrics,
		d.Telemetry.Tracer,
		d.Logger.With(infralogger.String("component", "totals")),
	)
}

// Planner builds the global totals planner.
func (d *Deps) Planner() *totals.Planner {
	return totals.NewPlanner(database.NewStatsRepository(d.DB), d.Now, d.Logger)
}

// Now returns the current time in the scheduler's timezone, which defines
// what "today" means for the daily statistics.
func (d *Deps) Now() time.Time {
	loc, err := time.LoadLocation(d.Config.Scheduler.Timezone)
	if err != nil {
		return time.Now()
	}
	return time.Now().In(loc)
}

// ConfigLoader loads the configuration selected by the root command flags.
type ConfigLoader func() (*config.Config, error)

// Bootstrap loads the configuration, builds the logger and opens the
// requested backends.
func Bootstrap(ctx context.Context, load ConfigLoader, needs Needs) (*Deps, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	log, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, log, needs)
}
