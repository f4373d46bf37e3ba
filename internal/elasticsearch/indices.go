package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// IndexManager resolves aliases and creates the marketplace indices.
type IndexManager struct {
	esClient *es.Client
	prefix   string
}

// NewIndexManager creates a manager for stats indices named after prefix.
func NewIndexManager(esClient *es.Client, statsPrefix string) *IndexManager {
	return &IndexManager{esClient: esClient, prefix: statsPrefix}
}

// StatsAlias returns the alias of the statistics index family for kind.
func (m *IndexManager) StatsAlias(kind domain.TaskKind) string {
	return m.prefix + "_" + string(kind)
}

// ResolveTargets returns the indices an indexing job writes to. An
// override wins; otherwise every index behind the kind's alias receives
// the documents, and a missing alias resolves to the alias name itself.
func (m *IndexManager) ResolveTargets(ctx context.Context, kind domain.TaskKind, override string) ([]string, error) {
	if override != "" {
		return []string{override}, nil
	}
	alias := m.StatsAlias(kind)

	indices, err := m.AliasIndices(ctx, alias)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return []string{alias}, nil
	}
	return indices, nil
}

// AliasIndices lists the indices currently behind alias, sorted by name.
func (m *IndexManager) AliasIndices(ctx context.Context, alias string) ([]string, error) {
	res, err := m.esClient.Indices.GetAlias(
		m.esClient.Indices.GetAlias.WithName(alias),
		m.esClient.Indices.GetAlias.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get alias %s: %w", alias, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("error getting alias %s: %s", alias, string(body))
	}

	var decoded map[string]any
	if err = json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode alias response: %w", err)
	}

	indices := make([]string, 0, len(decoded))
	for index := range decoded {
		indices = append(indices, index)
	}
	sort.Strings(indices)
	return indices, nil
}

// IndexExists checks if an index exists.
func (m *IndexManager) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := m.esClient.Indices.Exists([]string{index}, m.esClient.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check index existence: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, fmt.Errorf("error checking index existence: %s", res.String())
	}
	return true, nil
}

// EnsureIndex creates index with mapping unless it already exists.
func (m *IndexManager) EnsureIndex(ctx context.Context, index string, mapping map[string]any) error {
	exists, err := m.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.createIndex(ctx, index, mapping, "")
}

// CreateVersioned creates a timestamped index behind alias and returns its
// name. Existing indices stay behind the alias so writes go to all of them
// until the old ones are removed.
func (m *IndexManager) CreateVersioned(ctx context.Context, alias string, mapping map[string]any, now time.Time) (string, error) {
	index := fmt.Sprintf("%s-%s", alias, now.UTC().Format("20060102150405"))
	if err := m.createIndex(ctx, index, mapping, alias); err != nil {
		return "", err
	}
	return index, nil
}

func (m *IndexManager) createIndex(ctx context.Context, index string, mapping map[string]any, alias string) error {
	body := map[string]any{}
	for k, v := range mapping {
		body[k] = v
	}
	if alias != "" {
		body["aliases"] = map[string]any{alias: map[string]any{}}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err := m.esClient.Indices.Create(
		index,
		m.esClient.Indices.Create.WithBody(strings.NewReader(string(raw))),
		m.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error creating index %s: %s", index, string(msg))
	}
	return nil
}
