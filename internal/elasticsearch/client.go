// Package elasticsearch reads and writes the marketplace document indices.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
)

// Client runs searches against the document index.
type Client struct {
	esClient *es.Client
	timeout  time.Duration
	log      infralogger.Logger
}

// NewClient wraps an Elasticsearch client. timeout bounds every search.
func NewClient(esClient *es.Client, timeout time.Duration, log infralogger.Logger) *Client {
	return &Client{esClient: esClient, timeout: timeout, log: log}
}

// ES returns the underlying Elasticsearch client.
func (c *Client) ES() *es.Client {
	return c.esClient
}

// Ping verifies the Elasticsearch connection.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.esClient.Ping(c.esClient.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch ping failed: %s", string(body))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  *float64       `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes query against index and decodes the hits in rank order.
func (c *Client) Search(ctx context.Context, index string, query map[string]any) (*domain.SearchResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		c.esClient.Search.WithContext(ctx),
		c.esClient.Search.WithIndex(index),
		c.esClient.Search.WithBody(bytes.NewReader(body)),
		c.esClient.Search.WithTrackTotalHits(true),
	}
	if c.timeout > 0 {
		opts = append(opts, c.esClient.Search.WithTimeout(c.timeout))
	}

	res, err := c.esClient.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search returned error [%d]: %s", res.StatusCode, string(raw))
	}

	var decoded searchResponse
	if err = json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &domain.SearchResult{
		Total: decoded.Hits.Total.Value,
		Hits:  make([]domain.SearchHit, 0, len(decoded.Hits.Hits)),
	}
	for _, h := range decoded.Hits.Hits {
		id, convErr := strconv.ParseInt(h.ID, 10, 64)
		if convErr != nil {
			c.log.Error("Search hit has a non-numeric id",
				infralogger.String("index", index),
				infralogger.String("id", h.ID),
			)
			return nil, fmt.Errorf("search hit %q in index %s: id is not numeric: %w", h.ID, index, convErr)
		}
		hit := domain.SearchHit{ID: id, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}
