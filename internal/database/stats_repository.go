package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// StatQuery is a single-value aggregate query with its arguments.
type StatQuery struct {
	SQL  string
	Args []any
	// RequireRow makes an empty result an error instead of a null value.
	RequireRow bool
}

// ErrNoRow is returned by Scalar when RequireRow is set and nothing matched.
var ErrNoRow = errors.New("statistic query returned no row")

// StatsRepository computes scalar statistics and stores global totals.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a repository over db.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Scalar runs q and returns its single value. A NULL aggregate is returned as
// an invalid NullInt64.
func (r *StatsRepository) Scalar(ctx context.Context, q StatQuery) (sql.NullInt64, error) {
	var value sql.NullInt64
	err := r.db.QueryRowxContext(ctx, q.SQL, q.Args...).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if q.RequireRow {
			return sql.NullInt64{}, ErrNoRow
		}
		return sql.NullInt64{}, nil
	case err != nil:
		return sql.NullInt64{}, fmt.Errorf("scalar query: %w", err)
	}
	return value, nil
}

// LatestUpdateCountDate returns the most recent date in update_counts.
// ok is false when the table is empty.
func (r *StatsRepository) LatestUpdateCountDate(ctx context.Context) (date domain.Date, ok bool, err error) {
	var latest sql.NullTime
	if err = r.db.QueryRowxContext(ctx, `SELECT MAX(date) FROM update_counts`).Scan(&latest); err != nil {
		return domain.Date{}, false, fmt.Errorf("select latest update count date: %w", err)
	}
	if !latest.Valid {
		return domain.Date{}, false, nil
	}
	date, err = domain.DateFromTime(latest.Time.UTC())
	if err != nil {
		return domain.Date{}, false, err
	}
	return date, true, nil
}

// UpsertGlobalStat writes total, replacing any row with the same name and date.
func (r *StatsRepository) UpsertGlobalStat(ctx context.Context, total domain.GlobalTotal) error {
	const query = `
		INSERT INTO global_stats (name, count, date)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, date) DO UPDATE SET count = EXCLUDED.count`

	if _, err := r.db.ExecContext(ctx, query, total.Name, total.Count, total.Date); err != nil {
		return fmt.Errorf("upsert global stat: %w", err)
	}
	return nil
}

// GlobalStat reads one stored total.
func (r *StatsRepository) GlobalStat(ctx context.Context, name string, date domain.Date) (domain.GlobalTotal, error) {
	const query = `SELECT name, count, date FROM global_stats WHERE name = $1 AND date = $2`

	var row struct {
		Name  string      `db:"name"`
		Count int64       `db:"count"`
		Date  domain.Date `db:"date"`
	}
	if err := r.db.GetContext(ctx, &row, query, name, date); err != nil {
		return domain.GlobalTotal{}, fmt.Errorf("select global stat %s: %w", name, err)
	}
	return domain.GlobalTotal{Name: row.Name, Count: row.Count, Date: row.Date}, nil
}

// Ping checks connectivity.
func (r *StatsRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
