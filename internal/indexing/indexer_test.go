package indexing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/indexing"
	"github.com/jonesrussell/marketplace/internal/indexing/mocks"
	"github.com/jonesrussell/marketplace/internal/telemetry"
)

type fixture struct {
	store    *mocks.MockRecordStore
	writers  *mocks.MockWriterFactory
	writer   *mocks.MockDocumentWriter
	resolver *mocks.MockIndexResolver
	retrier  *mocks.MockRetrier
	metrics  *telemetry.Metrics
	indexer  *indexing.Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		store:    mocks.NewMockRecordStore(ctrl),
		writers:  mocks.NewMockWriterFactory(ctrl),
		writer:   mocks.NewMockDocumentWriter(ctrl),
		resolver: mocks.NewMockIndexResolver(ctrl),
		retrier:  mocks.NewMockRetrier(ctrl),
		metrics:  telemetry.NewMetrics(prometheus.NewRegistry()),
	}
	f.indexer = indexing.NewIndexer(f.store, f.writers, f.resolver, f.retrier, f.metrics, nil, infralogger.NewNop())

	// Every invocation acquires and releases exactly one writer.
	f.writers.EXPECT().NewWriter().Return(f.writer).Times(1)
	f.writer.EXPECT().Close().Return(nil).Times(1)
	return f
}

var day = domain.NewDate(2012, time.January, 1)

func TestIndexUpdateCounts_WritesEveryTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ids := []int64{1, 2}

	f.resolver.EXPECT().ResolveTargets(gomock.Any(), domain.KindUpdateCounts, "").
		Return([]string{"stats_update_counts-a", "stats_update_counts-b"}, nil)
	f.store.EXPECT().UpdateCountsByID(gomock.Any(), ids).Return([]domain.UpdateCount{
		{ID: 1, AddonID: 3615, Date: day, Count: 10},
		{ID: 2, AddonID: 3615, Date: day.Next(), Count: 12},
	}, nil)

	gomock.InOrder(
		f.writer.EXPECT().Index(gomock.Any(), "3615-2012-01-01", "stats_update_counts-a").Return(nil),
		f.writer.EXPECT().Index(gomock.Any(), "3615-2012-01-02", "stats_update_counts-a").Return(nil),
		f.writer.EXPECT().FlushBulk(gomock.Any(), true).Return(nil),
		f.writer.EXPECT().Index(gomock.Any(), "3615-2012-01-01", "stats_update_counts-b").Return(nil),
		f.writer.EXPECT().Index(gomock.Any(), "3615-2012-01-02", "stats_update_counts-b").Return(nil),
		f.writer.EXPECT().FlushBulk(gomock.Any(), true).Return(nil),
	)

	require.NoError(t, f.indexer.IndexUpdateCounts(ctx, ids, ""))
	assert.InDelta(t, 4, testutil.ToFloat64(f.metrics.DocumentsIndexed.WithLabelValues("update_counts")), 0)
}

func TestIndexDownloadCounts_OverrideIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.resolver.EXPECT().ResolveTargets(gomock.Any(), domain.KindDownloadCounts, "custom").Return([]string{"custom"}, nil)
	f.store.EXPECT().DownloadCountsByID(gomock.Any(), []int64{7}).Return([]domain.DownloadCount{
		{ID: 7, AddonID: 99, Date: day, Count: 1, Sources: map[string]int64{"api": 1}},
	}, nil)
	f.writer.EXPECT().Index(gomock.Any(), "99-2012-01-01", "custom").Return(nil)
	f.writer.EXPECT().FlushBulk(gomock.Any(), true).Return(nil)

	require.NoError(t, f.indexer.IndexDownloadCounts(context.Background(), []int64{7}, "custom"))
}

func TestIndexCollectionCounts_Enriched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := []int64{55}

	f.resolver.EXPECT().ResolveTargets(gomock.Any(), domain.KindCollectionCounts, "").Return([]string{"stats_collection_counts"}, nil)
	f.store.EXPECT().CollectionCountsByCollection(gomock.Any(), ids).Return([]domain.CollectionCount{
		{ID: 1, CollectionID: 55, Date: day, Count: 4},
	}, nil)
	f.store.EXPECT().AddonCollectionCounts(gomock.Any(), ids).Return([]domain.AddonCollectionCount{
		{CollectionID: 55, Date: day, Count: 3},
		{CollectionID: 55, Date: day, Count: 2},
		{CollectionID: 55, Date: day.Next(), Count: 100},
	}, nil)
	f.store.EXPECT().CollectionStats(gomock.Any(), ids).Return([]domain.CollectionStat{
		{CollectionID: 55, Date: day, Name: domain.StatVotesUp, Count: 6},
	}, nil)

	var indexed any
	f.writer.EXPECT().Index(gomock.Any(), "55-2012-01-01", "stats_collection_counts").
		DoAndReturn(func(doc any, _, _ string) error {
			indexed = doc
			return nil
		})
	f.writer.EXPECT().FlushBulk(gomock.Any(), true).Return(nil)

	require.NoError(t, f.indexer.IndexCollectionCounts(context.Background(), ids, ""))

	doc, ok := indexed.(domain.CollectionCountDocument)
	require.True(t, ok)
	assert.Contains(t, doc.Data, domain.KV{K: "downloads", V: 5})
	assert.Contains(t, doc.Data, domain.KV{K: "votes_up", V: 6})
	assert.Contains(t, doc.Data, domain.KV{K: "subscribers", V: 0})
}

func TestIndexThemeUserCounts_FlushesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.resolver.EXPECT().ResolveTargets(gomock.Any(), domain.KindThemeUserCounts, "").Return([]string{"a", "b"}, nil)
	f.store.EXPECT().ThemeUserCountsByID(gomock.Any(), []int64{3}).Return([]domain.ThemeUserCount{
		{ID: 3, AddonID: 8, Date: day, Count: 40},
	}, nil)
	f.writer.EXPECT().Index(gomock.Any(), "8-2012-01-01", gomock.Any()).Return(nil).Times(2)
	f.writer.EXPECT().FlushBulk(gomock.Any(), true).Return(nil).Times(1)

	require.NoError(t, f.indexer.IndexThemeUserCounts(context.Background(), []int64{3}, ""))
}

func TestIndexer_NoRecordsWritesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.resolver.EXPECT().ResolveTargets(gomock.Any(), domain.KindUpdateCounts, "").Return([]string{"stats_update_counts"}, nil)
	f.store.EXPECT().UpdateCountsByID(gomock.Any(), []int64{404}).Return(nil, nil)

	require.NoError(t, f.indexer.IndexUpdateCounts(context.Background(), []int64{404}, ""))
}

func TestIndexer_FailureRetriesOriginalIDs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		setup func(f *fixture, ids []int64)
	}{
		{
			name: "store failure",
			setup: func(f *fixture, ids []int64) {
				f.resolver.EXPECT().ResolveTargets(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"x"}, nil)
				f.store.EXPECT().DownloadCountsByID(gomock.Any(), ids).Return(nil, errors.New("connection refused"))
			},
		},
		{
			name: "bulk failure",
			setup: func(f *fixture, ids []int64) {
				f.resolver.EXPECT().ResolveTargets(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"x"}, nil)
				f.store.EXPECT().DownloadCountsByID(gomock.Any(), ids).Return([]domain.DownloadCount{
					{ID: 1, AddonID: 1, Date: day},
				}, nil)
				f.writer.EXPECT().Index(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				f.writer.EXPECT().FlushBulk(gomock.Any(), true).Return(errors.New("es_rejected_execution_exception"))
			},
		},
		{
			name: "alias lookup failure",
			setup: func(f *fixture, _ []int64) {
				f.resolver.EXPECT().ResolveTargets(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ids := []int64{10, 11, 12}
			tc.setup(f, ids)

			var retried domain.Task
			f.retrier.EXPECT().Retry(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, task domain.Task, _ error) error {
					retried = task
					return nil
				}).Times(1)

			err := f.indexer.IndexDownloadCounts(context.Background(), ids, "")

			var transient *domain.TransientIndexError
			require.ErrorAs(t, err, &transient)
			assert.Equal(t, ids, transient.IDs)
			assert.Equal(t, domain.KindDownloadCounts, retried.Kind)
			assert.Equal(t, ids, retried.IDs)
			assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.BatchesFailed.WithLabelValues("download_counts")), 0)
		})
	}
}

func TestIndexer_Run_RetryKeepsQueuedTaskIdentity(t *testing.T) {
	t.Parallel()

	enqueued := time.Date(2013, time.March, 4, 9, 30, 0, 0, time.UTC)
	testCases := []struct {
		name   string
		queued domain.Task
	}{
		{
			name: "first delivery",
			queued: domain.Task{
				ID: "task-1", Kind: domain.KindDownloadCounts, IDs: []int64{7}, EnqueuedAt: enqueued,
			},
		},
		{
			name: "redelivered",
			queued: domain.Task{
				ID: "task-2", Kind: domain.KindDownloadCounts, IDs: []int64{7}, Index: "stats_v2",
				Attempt: 2, EnqueuedAt: enqueued,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.resolver.EXPECT().ResolveTargets(gomock.Any(), domain.KindDownloadCounts, tc.queued.Index).
				Return(nil, errors.New("timeout"))

			var retried domain.Task
			f.retrier.EXPECT().Retry(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, task domain.Task, _ error) error {
					retried = task
					return nil
				}).Times(1)

			require.Error(t, f.indexer.Run(context.Background(), tc.queued))
			assert.Equal(t, tc.queued.ID, retried.ID)
			assert.Equal(t, tc.queued.Attempt, retried.Attempt)
			assert.Equal(t, tc.queued.EnqueuedAt, retried.EnqueuedAt)
			assert.Equal(t, tc.queued.Index, retried.Index)
			assert.Equal(t, tc.queued.IDs, retried.IDs)
		})
	}
}

func TestIndexer_Run_RejectsTotalsTask(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	ix := indexing.NewIndexer(
		mocks.NewMockRecordStore(ctrl),
		mocks.NewMockWriterFactory(ctrl),
		mocks.NewMockIndexResolver(ctrl),
		mocks.NewMockRetrier(ctrl),
		nil, nil, infralogger.NewNop(),
	)

	err := ix.Run(context.Background(), domain.Task{Kind: domain.KindGlobalTotals})
	require.Error(t, err)
}
