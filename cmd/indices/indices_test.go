package indices

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/marketplace/internal/config"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/elasticsearch"
)

func TestSelectTargets(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Elasticsearch.AppsAlias = "apps"
	m := elasticsearch.NewIndexManager(nil, "stats")

	targets, err := selectTargets(cfg, m, nil, true)
	require.NoError(t, err)
	aliases := make([]string, 0, len(targets))
	for _, tgt := range targets {
		require.NotNil(t, tgt.mapping)
		aliases = append(aliases, tgt.alias)
	}
	assert.Equal(t, []string{
		"stats_update_counts",
		"stats_download_counts",
		"stats_collection_counts",
		"stats_theme_user_counts",
		"apps",
	}, aliases)

	targets, err = selectTargets(cfg, m, []string{"download_counts"}, false)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "stats_download_counts", targets[0].alias)

	_, err = selectTargets(cfg, m, []string{"global_totals"}, false)
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "kind", vErr.Field)
}
