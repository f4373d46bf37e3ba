package monolith_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/marketplace/infrastructure/circuitbreaker"
	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/monolith"
)

func setupStore(t *testing.T, breaker *circuitbreaker.Breaker) (*monolith.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return monolith.NewStore(client, breaker, "", infralogger.NewNop()), mr
}

func TestStore_RecordAndGet(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t, nil)
	ctx := context.Background()
	date := domain.NewDate(2013, time.March, 4)

	require.NoError(t, store.Record(ctx, "apps_count_new", date, 12))
	require.NoError(t, store.Record(ctx, "apps_count_new", date, 13))

	raw, err := mr.Get("monolith:apps_count_new:2013-03-04")
	require.NoError(t, err)
	assert.JSONEq(t, `{"recorded":"2013-03-04","key":"apps_count_new","value":{"count":13},"user_hash":"none"}`, raw)

	rec, err := store.Get(ctx, "apps_count_new", date)
	require.NoError(t, err)
	assert.Equal(t, int64(13), rec.Value.Count)

	dates, err := store.Dates(ctx, "apps_count_new")
	require.NoError(t, err)
	assert.Equal(t, []string{"2013-03-04"}, dates)
}

func TestStore_DatesOrdered(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t, nil)
	ctx := context.Background()

	for _, d := range []int{5, 1, 3} {
		require.NoError(t, store.Record(ctx, "mmo_user_count_new", domain.NewDate(2013, time.March, d), int64(d)))
	}

	dates, err := store.Dates(ctx, "mmo_user_count_new")
	require.NoError(t, err)
	assert.Equal(t, []string{"2013-03-01", "2013-03-03", "2013-03-05"}, dates)
}

func TestStore_BreakerOpensOnFailures(t *testing.T) {
	t.Parallel()

	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Hour})
	store, mr := setupStore(t, breaker)
	ctx := context.Background()
	date := domain.NewDate(2013, time.March, 4)

	mr.Close()

	for range 2 {
		assert.Error(t, store.Record(ctx, "apps_count_new", date, 1))
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())
	assert.ErrorIs(t, store.Record(ctx, "apps_count_new", date, 1), circuitbreaker.ErrCircuitOpen)
}
