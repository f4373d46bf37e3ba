// Package elasticsearch builds go-elasticsearch clients with a verified
// connection.
package elasticsearch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	infraconfig "github.com/jonesrussell/marketplace/infrastructure/config"
	"github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/infrastructure/retry"
)

const defaultURL = "http://localhost:9200"

// Config holds Elasticsearch client configuration.
type Config struct {
	URL      string
	Username string
	Password string
	APIKey   string
	// CAFile enables TLS verification against a private CA when set.
	CAFile      string
	MaxRetries  int
	PingTimeout time.Duration
	// RetryConfig governs the startup ping; nil means 5 attempts from 2s.
	RetryConfig *retry.Config
}

// FromSettings maps the shared YAML section onto a client Config.
func FromSettings(s infraconfig.ElasticsearchConfig) Config {
	return Config{
		URL:         s.URL,
		Username:    s.Username,
		Password:    s.Password,
		APIKey:      s.APIKey,
		MaxRetries:  s.MaxRetries,
		PingTimeout: s.Timeout,
	}
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.RetryConfig == nil {
		c.RetryConfig = &retry.Config{
			MaxAttempts:  5,
			InitialDelay: 2 * time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		}
	}
}

// NewClient creates a client and pings the cluster with exponential backoff
// until it answers or the retry budget runs out.
func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*es.Client, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	url := normalizeURL(cfg.URL)
	transport, err := createTransport(cfg.CAFile)
	if err != nil {
		return nil, err
	}

	clientConfig := es.Config{
		Addresses:  []string{url},
		Transport:  transport,
		MaxRetries: cfg.MaxRetries,
	}
	switch {
	case cfg.APIKey != "":
		clientConfig.APIKey = cfg.APIKey
	case cfg.Username != "" && cfg.Password != "":
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	esClient, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	log.Info("Verifying Elasticsearch connection", logger.String("url", url))
	if err = retry.Retry(ctx, *cfg.RetryConfig, func() error {
		return ping(ctx, esClient, cfg.PingTimeout)
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch after retries: %w", err)
	}
	log.Info("Elasticsearch connection established", logger.String("url", url))

	return esClient, nil
}

func normalizeURL(url string) string {
	if url == "" {
		return defaultURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func createTransport(caFile string) (*http.Transport, error) {
	transport := &http.Transport{}
	if caFile == "" {
		return transport, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read elasticsearch CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return transport, nil
}

func ping(ctx context.Context, client *es.Client, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("ping returned error [%s]: %s", res.Status(), string(body))
	}
	return nil
}
