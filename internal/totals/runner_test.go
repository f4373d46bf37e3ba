package totals_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/database"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/telemetry"
	"github.com/jonesrussell/marketplace/internal/totals"
)

type fakeStore struct {
	value     sql.NullInt64
	scalarErr error
	upsertErr error
	latest    *domain.Date

	queries []database.StatQuery
	rows    map[string]domain.GlobalTotal
}

func (f *fakeStore) Scalar(_ context.Context, q database.StatQuery) (sql.NullInt64, error) {
	f.queries = append(f.queries, q)
	return f.value, f.scalarErr
}

func (f *fakeStore) UpsertGlobalStat(_ context.Context, total domain.GlobalTotal) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.rows == nil {
		f.rows = map[string]domain.GlobalTotal{}
	}
	f.rows[total.Name+"|"+total.Date.String()] = total
	return nil
}

func (f *fakeStore) LatestUpdateCountDate(context.Context) (domain.Date, bool, error) {
	if f.latest == nil {
		return domain.Date{}, false, nil
	}
	return *f.latest, true, nil
}

type fakeSecondary struct {
	err   error
	calls []string
}

func (f *fakeSecondary) Record(_ context.Context, job string, _ domain.Date, _ int64) error {
	f.calls = append(f.calls, job)
	return f.err
}

var fixedNow = func() time.Time { return time.Date(2013, time.March, 4, 15, 30, 0, 0, time.UTC) }

func newRunner(store *fakeStore, secondary *fakeSecondary, metrics *telemetry.Metrics) *totals.Runner {
	return totals.NewRunner(store, secondary, totals.Config{Now: fixedNow}, metrics, nil, infralogger.NewNop())
}

func TestRunner_NullCountsAsZero(t *testing.T) {
	t.Parallel()

	store := &fakeStore{value: sql.NullInt64{}}
	date := domain.NewDate(2012, time.January, 1)

	res, err := newRunner(store, &fakeSecondary{}, nil).Run(context.Background(), "addon_downloads_new", &date)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Primary.Total.Count)
	assert.False(t, res.Secondary.Attempted)
	assert.Equal(t, int64(0), store.rows["addon_downloads_new|2012-01-01"].Count)
}

func TestRunner_UpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := &fakeStore{value: sql.NullInt64{Int64: 5, Valid: true}}
	runner := newRunner(store, &fakeSecondary{}, nil)
	date := domain.NewDate(2012, time.January, 1)

	for range 2 {
		_, err := runner.Run(context.Background(), "user_count_new", &date)
		require.NoError(t, err)
	}
	store.value = sql.NullInt64{Int64: 7, Valid: true}
	_, err := runner.Run(context.Background(), "user_count_new", &date)
	require.NoError(t, err)

	require.Len(t, store.rows, 1)
	assert.Equal(t, int64(7), store.rows["user_count_new|2012-01-01"].Count)
}

func TestRunner_SecondaryFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	store := &fakeStore{value: sql.NullInt64{Int64: 3, Valid: true}}
	secondary := &fakeSecondary{err: errors.New("connection refused")}

	res, err := newRunner(store, secondary, metrics).Run(context.Background(), "apps_count_new", nil)
	require.NoError(t, err)

	assert.True(t, res.Secondary.Attempted)
	var secErr *domain.SecondaryWriteError
	require.ErrorAs(t, res.Secondary.Err, &secErr)
	assert.Equal(t, "2013-03-04", res.Primary.Total.Date.String())
	assert.Equal(t, []string{"apps_count_new"}, secondary.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SecondaryWrites.WithLabelValues("failure")), 0)
}

func TestRunner_ComputeAndUpsertFailures(t *testing.T) {
	t.Parallel()

	date := domain.NewDate(2012, time.January, 1)

	_, err := newRunner(&fakeStore{scalarErr: errors.New("relation does not exist")}, nil, nil).
		Run(context.Background(), "version_count_new", &date)
	var computeErr *domain.ComputeError
	require.ErrorAs(t, err, &computeErr)
	assert.Equal(t, "version_count_new", computeErr.Job)

	secondary := &fakeSecondary{}
	_, err = newRunner(&fakeStore{upsertErr: errors.New("deadlock detected")}, secondary, nil).
		Run(context.Background(), "mmo_user_count_new", &date)
	var upsertErr *domain.PrimaryUpsertError
	require.ErrorAs(t, err, &upsertErr)
	assert.Empty(t, secondary.calls, "secondary write must not follow a failed upsert")
}

func TestRunner_CollectorMissingRow(t *testing.T) {
	t.Parallel()

	date := domain.NewDate(2013, time.March, 1)
	_, err := newRunner(&fakeStore{scalarErr: database.ErrNoRow}, nil, nil).
		Run(context.Background(), "collector_updatepings", &date)

	var computeErr *domain.ComputeError
	require.ErrorAs(t, err, &computeErr)
	assert.ErrorIs(t, err, database.ErrNoRow)
}

func TestRunner_MetricsDefaultDate(t *testing.T) {
	t.Parallel()

	latest := domain.NewDate(2013, time.February, 27)
	store := &fakeStore{value: sql.NullInt64{Int64: 1000, Valid: true}, latest: &latest}

	res, err := newRunner(store, nil, nil).Run(context.Background(), "addon_total_updatepings", nil)
	require.NoError(t, err)
	assert.True(t, res.Primary.Total.Date.Equal(latest))

	_, err = newRunner(&fakeStore{}, nil, nil).Run(context.Background(), "addon_total_updatepings", nil)
	assert.ErrorIs(t, err, domain.ErrNoMetricsDate)
}

func TestRunner_TodayOnlyJobRejectsPastDate(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	past := domain.NewDate(2013, time.March, 3)

	_, err := newRunner(store, nil, nil).Run(context.Background(), "addon_count_public", &past)
	assert.ErrorIs(t, err, domain.ErrUnknownJob)
	assert.Empty(t, store.queries, "no query may run for a job outside the registry")

	store.value = sql.NullInt64{Int64: 2, Valid: true}
	_, err = newRunner(store, nil, nil).Run(context.Background(), "addon_count_public", nil)
	require.NoError(t, err)
}

func TestRunner_UnknownJob(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	_, err := newRunner(store, nil, nil).Run(context.Background(), "drop_tables", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownJob)
	assert.Empty(t, store.queries)
}
