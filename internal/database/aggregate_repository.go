package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// AggregateRepository reads the daily aggregate tables.
type AggregateRepository struct {
	db *sqlx.DB
}

// NewAggregateRepository creates a repository over db.
func NewAggregateRepository(db *sqlx.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

type updateCountRow struct {
	ID           int64       `db:"id"`
	AddonID      int64       `db:"addon_id"`
	Date         domain.Date `db:"date"`
	Count        int64       `db:"count"`
	Versions     []byte      `db:"versions"`
	Statuses     []byte      `db:"statuses"`
	Applications []byte      `db:"applications"`
	OSes         []byte      `db:"oses"`
	Locales      []byte      `db:"locales"`
}

// UpdateCountsByID fetches update counts whose id is in ids.
func (r *AggregateRepository) UpdateCountsByID(ctx context.Context, ids []int64) ([]domain.UpdateCount, error) {
	const query = `
		SELECT id, addon_id, date, count, versions, statuses, applications, oses, locales
		FROM update_counts
		WHERE id = ANY($1)
		ORDER BY id`

	var rows []updateCountRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select update counts: %w", err)
	}

	out := make([]domain.UpdateCount, 0, len(rows))
	for _, row := range rows {
		uc := domain.UpdateCount{ID: row.ID, AddonID: row.AddonID, Date: row.Date, Count: row.Count}
		if err := decodeJSON(row.Versions, &uc.Versions); err != nil {
			return nil, fmt.Errorf("update count %d versions: %w", row.ID, err)
		}
		if err := decodeJSON(row.Statuses, &uc.Statuses); err != nil {
			return nil, fmt.Errorf("update count %d statuses: %w", row.ID, err)
		}
		if err := decodeJSON(row.Applications, &uc.Applications); err != nil {
			return nil, fmt.Errorf("update count %d applications: %w", row.ID, err)
		}
		if err := decodeJSON(row.OSes, &uc.OSes); err != nil {
			return nil, fmt.Errorf("update count %d oses: %w", row.ID, err)
		}
		if err := decodeJSON(row.Locales, &uc.Locales); err != nil {
			return nil, fmt.Errorf("update count %d locales: %w", row.ID, err)
		}
		out = append(out, uc)
	}
	return out, nil
}

type downloadCountRow struct {
	ID      int64       `db:"id"`
	AddonID int64       `db:"addon_id"`
	Date    domain.Date `db:"date"`
	Count   int64       `db:"count"`
	Sources []byte      `db:"sources"`
}

// DownloadCountsByID fetches download counts whose id is in ids.
func (r *AggregateRepository) DownloadCountsByID(ctx context.Context, ids []int64) ([]domain.DownloadCount, error) {
	const query = `
		SELECT id, addon_id, date, count, sources
		FROM download_counts
		WHERE id = ANY($1)
		ORDER BY id`

	var rows []downloadCountRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select download counts: %w", err)
	}

	out := make([]domain.DownloadCount, 0, len(rows))
	for _, row := range rows {
		dc := domain.DownloadCount{ID: row.ID, AddonID: row.AddonID, Date: row.Date, Count: row.Count}
		if err := decodeJSON(row.Sources, &dc.Sources); err != nil {
			return nil, fmt.Errorf("download count %d sources: %w", row.ID, err)
		}
		out = append(out, dc)
	}
	return out, nil
}

// CollectionCountsByCollection fetches every daily count of the given collections.
func (r *AggregateRepository) CollectionCountsByCollection(ctx context.Context, collectionIDs []int64) ([]domain.CollectionCount, error) {
	const query = `
		SELECT id, collection_id, date, count
		FROM collection_counts
		WHERE collection_id = ANY($1)
		ORDER BY collection_id, date`

	var out []domain.CollectionCount
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(collectionIDs)); err != nil {
		return nil, fmt.Errorf("select collection counts: %w", err)
	}
	return out, nil
}

// AddonCollectionCounts fetches add-on download counts through the given
// collections, for the enrichment of collection count documents.
func (r *AggregateRepository) AddonCollectionCounts(ctx context.Context, collectionIDs []int64) ([]domain.AddonCollectionCount, error) {
	const query = `
		SELECT collection_id, date, count
		FROM addon_collection_counts
		WHERE collection_id = ANY($1)`

	var out []domain.AddonCollectionCount
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(collectionIDs)); err != nil {
		return nil, fmt.Errorf("select addon collection counts: %w", err)
	}
	return out, nil
}

// CollectionStats fetches named daily collection counters for the given collections.
func (r *AggregateRepository) CollectionStats(ctx context.Context, collectionIDs []int64) ([]domain.CollectionStat, error) {
	const query = `
		SELECT collection_id, date, name, count
		FROM stats_collections
		WHERE collection_id = ANY($1)`

	var out []domain.CollectionStat
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(collectionIDs)); err != nil {
		return nil, fmt.Errorf("select collection stats: %w", err)
	}
	return out, nil
}

// ThemeUserCountsByID fetches theme user counts whose id is in ids.
func (r *AggregateRepository) ThemeUserCountsByID(ctx context.Context, ids []int64) ([]domain.ThemeUserCount, error) {
	const query = `
		SELECT id, addon_id, date, count
		FROM theme_user_counts
		WHERE id = ANY($1)
		ORDER BY id`

	var out []domain.ThemeUserCount
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select theme user counts: %w", err)
	}
	return out, nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
