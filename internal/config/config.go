// Package config defines the marketplace service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	infraconfig "github.com/jonesrussell/marketplace/infrastructure/config"
	infragin "github.com/jonesrussell/marketplace/infrastructure/gin"
	"github.com/jonesrussell/marketplace/infrastructure/profiling"
)

// Config holds all configuration for the marketplace commands.
type Config struct {
	Service       ServiceConfig              `yaml:"service"`
	Elasticsearch ElasticsearchConfig        `yaml:"elasticsearch"`
	Database      infraconfig.DatabaseConfig `yaml:"database"`
	Redis         infraconfig.RedisConfig    `yaml:"redis"`
	Queue         QueueConfig                `yaml:"queue"`
	Scheduler     SchedulerConfig            `yaml:"scheduler"`
	Totals        TotalsConfig               `yaml:"totals"`
	Secondary     SecondaryConfig            `yaml:"secondary"`
	Auth          AuthConfig                 `yaml:"auth"`
	Logging       infraconfig.LoggingConfig  `yaml:"logging"`
	CORS          infragin.CORSConfig        `yaml:"cors"`
	Profiling     profiling.Config           `yaml:"profiling"`
}

// ServiceConfig holds service-level configuration. SearchRateLimit caps
// search requests per second; 0 disables the limit.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `env:"APP_VERSION"                     yaml:"version"`
	Port            int           `env:"MARKETPLACE_PORT"                yaml:"port"`
	WorkerPort      int           `env:"MARKETPLACE_WORKER_PORT"         yaml:"worker_port"`
	Debug           bool          `env:"MARKETPLACE_DEBUG"               yaml:"debug"`
	MaxPageSize     int           `env:"MARKETPLACE_MAX_PAGE_SIZE"       yaml:"max_page_size"`
	DefaultPageSize int           `env:"MARKETPLACE_DEFAULT_PAGE_SIZE"   yaml:"default_page_size"`
	FeaturedLimit   int           `yaml:"featured_limit"`
	SearchTimeout   time.Duration `yaml:"search_timeout"`
	SearchRateLimit int           `env:"MARKETPLACE_SEARCH_RATE_LIMIT"   yaml:"search_rate_limit"`
	SearchRateBurst int           `yaml:"search_rate_burst"`
}

// ElasticsearchConfig extends the shared connection settings with index names.
type ElasticsearchConfig struct {
	infraconfig.ElasticsearchConfig `yaml:",inline"`

	CAFile string `env:"ELASTICSEARCH_CA_FILE" yaml:"ca_file"`
	// AppsAlias is the alias searched for app documents.
	AppsAlias string `env:"ELASTICSEARCH_APPS_ALIAS" yaml:"apps_alias"`
	// StatsIndexPrefix prefixes the per-kind statistics aliases, e.g. "stats_update_counts".
	StatsIndexPrefix string `env:"ELASTICSEARCH_STATS_PREFIX" yaml:"stats_index_prefix"`
}

// QueueConfig configures the Redis Streams task queue and worker pool.
type QueueConfig struct {
	Stream           string        `env:"QUEUE_STREAM"      yaml:"stream"`
	Group            string        `env:"QUEUE_GROUP"       yaml:"group"`
	Consumer         string        `env:"QUEUE_CONSUMER"    yaml:"consumer"`
	DeadLetterStream string        `yaml:"dead_letter_stream"`
	DelayedSet       string        `yaml:"delayed_set"`
	Concurrency      int           `env:"QUEUE_CONCURRENCY" yaml:"concurrency"`
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	BlockTimeout     time.Duration `yaml:"block_timeout"`
	PromoteInterval  time.Duration `yaml:"promote_interval"`
	ReclaimIdle      time.Duration `yaml:"reclaim_idle"`
	TaskTimeout      time.Duration `yaml:"task_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

// SchedulerConfig configures the global totals cron.
type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" yaml:"enabled"`
	// TotalsSchedule is a five-field cron expression.
	TotalsSchedule string `env:"SCHEDULER_TOTALS_SCHEDULE" yaml:"totals_schedule"`
	Timezone       string `yaml:"timezone"`
}

// TotalsConfig configures the global totals statistics.
type TotalsConfig struct {
	// CollectorAddonID is the add-on whose update pings feed collector_updatepings.
	CollectorAddonID int64 `yaml:"collector_addon_id"`
}

// SecondaryConfig configures the best-effort secondary metrics store.
type SecondaryConfig struct {
	Enabled          bool          `env:"SECONDARY_METRICS_ENABLED" yaml:"enabled"`
	KeyPrefix        string        `yaml:"key_prefix"`
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// AuthConfig configures bearer token validation. An empty secret disables
// capability tokens, leaving every caller anonymous.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// Load loads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "marketplace"
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = "dev"
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 8090
	}
	if cfg.Service.WorkerPort == 0 {
		cfg.Service.WorkerPort = 8091
	}
	if cfg.Service.MaxPageSize == 0 {
		cfg.Service.MaxPageSize = 100
	}
	if cfg.Service.DefaultPageSize == 0 {
		cfg.Service.DefaultPageSize = 25
	}
	if cfg.Service.FeaturedLimit == 0 {
		cfg.Service.FeaturedLimit = 9
	}
	if cfg.Service.SearchTimeout == 0 {
		cfg.Service.SearchTimeout = 5 * time.Second
	}

	cfg.Elasticsearch.SetDefaults()
	if cfg.Elasticsearch.AppsAlias == "" {
		cfg.Elasticsearch.AppsAlias = "apps"
	}
	if cfg.Elasticsearch.StatsIndexPrefix == "" {
		cfg.Elasticsearch.StatsIndexPrefix = "stats"
	}

	cfg.Database.SetDefaults()
	cfg.Redis.SetDefaults()
	setQueueDefaults(&cfg.Queue)

	if cfg.Scheduler.TotalsSchedule == "" {
		cfg.Scheduler.TotalsSchedule = "30 2 * * *"
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}

	if cfg.Totals.CollectorAddonID == 0 {
		cfg.Totals.CollectorAddonID = 11950
	}

	if cfg.Secondary.KeyPrefix == "" {
		cfg.Secondary.KeyPrefix = "monolith"
	}
	if cfg.Secondary.FailureThreshold == 0 {
		cfg.Secondary.FailureThreshold = 5
	}
	if cfg.Secondary.OpenTimeout == 0 {
		cfg.Secondary.OpenTimeout = time.Minute
	}

	cfg.Logging.SetDefaults()
	cfg.CORS.SetDefaults()
	cfg.Profiling.SetDefaults()
}

func setQueueDefaults(q *QueueConfig) {
	if q.Stream == "" {
		q.Stream = "marketplace:tasks"
	}
	if q.Group == "" {
		q.Group = "marketplace-workers"
	}
	if q.Consumer == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		q.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if q.DeadLetterStream == "" {
		q.DeadLetterStream = q.Stream + ":dead"
	}
	if q.DelayedSet == "" {
		q.DelayedSet = q.Stream + ":delayed"
	}
	if q.Concurrency == 0 {
		q.Concurrency = 4
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = 5
	}
	if q.InitialBackoff == 0 {
		q.InitialBackoff = time.Second
	}
	if q.MaxBackoff == 0 {
		q.MaxBackoff = 5 * time.Minute
	}
	if q.BlockTimeout == 0 {
		q.BlockTimeout = 5 * time.Second
	}
	if q.PromoteInterval == 0 {
		q.PromoteInterval = time.Second
	}
	if q.ReclaimIdle == 0 {
		q.ReclaimIdle = 10 * time.Minute
	}
	if q.TaskTimeout == 0 {
		q.TaskTimeout = 10 * time.Minute
	}
	if q.ShutdownTimeout == 0 {
		q.ShutdownTimeout = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidatePort("service.worker_port", c.Service.WorkerPort); err != nil {
		return err
	}
	if c.Service.MaxPageSize < 1 {
		return &infraconfig.ValidationError{Field: "service.max_page_size", Message: "must be greater than 0"}
	}
	if c.Service.DefaultPageSize < 1 || c.Service.DefaultPageSize > c.Service.MaxPageSize {
		return &infraconfig.ValidationError{
			Field:   "service.default_page_size",
			Message: fmt.Sprintf("must be between 1 and %d", c.Service.MaxPageSize),
		}
	}
	if err := c.Elasticsearch.Validate(); err != nil {
		return err
	}
	if c.Queue.Concurrency < 1 {
		return &infraconfig.ValidationError{Field: "queue.concurrency", Message: "must be greater than 0"}
	}
	if c.Queue.MaxAttempts < 1 {
		return &infraconfig.ValidationError{Field: "queue.max_attempts", Message: "must be greater than 0"}
	}
	if c.Scheduler.Enabled {
		parser := robfigcron.NewParser(robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow)
		if _, err := parser.Parse(c.Scheduler.TotalsSchedule); err != nil {
			return &infraconfig.ValidationError{Field: "scheduler.totals_schedule", Message: err.Error()}
		}
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return &infraconfig.ValidationError{Field: "scheduler.timezone", Message: err.Error()}
		}
	}
	return c.Logging.Validate()
}
