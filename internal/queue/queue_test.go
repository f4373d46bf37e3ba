package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/infrastructure/retry"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/queue"
)

var fixedNow = time.Date(2013, time.March, 4, 15, 30, 0, 0, time.UTC)

func newTestQueue(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient, queue.Config) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := queue.Config{
		Stream:       "test:tasks",
		Group:        "workers",
		Consumer:     "worker-1",
		BlockTimeout: 20 * time.Millisecond,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   2,
		},
	}
	return mr, client, cfg
}

func newConsumer(t *testing.T, client redis.UniversalClient, cfg queue.Config) *queue.Consumer {
	t.Helper()

	consumer, err := queue.NewConsumer(client, cfg, infralogger.NewNop())
	require.NoError(t, err)
	require.NoError(t, consumer.Initialize(context.Background()))
	return consumer
}

func TestNewConsumer_RequiresConsumerID(t *testing.T) {
	t.Parallel()

	_, err := queue.NewConsumer(nil, queue.Config{}, infralogger.NewNop())
	require.Error(t, err)
}

func TestProducerConsumer_RoundTrip(t *testing.T) {
	t.Parallel()

	_, client, cfg := newTestQueue(t)
	ctx := context.Background()
	consumer := newConsumer(t, client, cfg)
	producer := queue.NewProducer(client, cfg, func() time.Time { return fixedNow })

	queued, err := producer.Enqueue(ctx, domain.Task{Kind: domain.KindDownloadCounts, IDs: []int64{3, 1, 2}})
	require.NoError(t, err)
	assert.NotEmpty(t, queued.ID)
	assert.True(t, queued.EnqueuedAt.Equal(fixedNow))

	messages, err := consumer.Read(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, queued.ID, messages[0].Task.ID)
	assert.Equal(t, domain.KindDownloadCounts, messages[0].Task.Kind)
	assert.Equal(t, []int64{3, 1, 2}, messages[0].Task.IDs)

	pending, err := consumer.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	require.NoError(t, consumer.Ack(ctx, messages[0]))
	pending, err = consumer.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestProducer_RejectsUnknownKind(t *testing.T) {
	t.Parallel()

	_, client, cfg := newTestQueue(t)
	producer := queue.NewProducer(client, cfg, nil)

	_, err := producer.Enqueue(context.Background(), domain.Task{Kind: "reindex_everything"})

	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "kind", vErr.Field)
}

func TestProducer_EnqueueBatch(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		tasks     []domain.Task
		redisErr  string
		wantQueue int
		wantDepth int64
		wantErr   bool
	}{
		{
			name: "appends every task in order",
			tasks: []domain.Task{
				{Kind: domain.KindDownloadCounts, IDs: []int64{1}},
				{ID: "kept", Kind: domain.KindUpdateCounts, IDs: []int64{2}},
				{Kind: domain.KindGlobalTotals, Job: "addon_count_new"},
			},
			wantQueue: 3,
			wantDepth: 3,
		},
		{
			name:  "empty batch",
			tasks: nil,
		},
		{
			name: "invalid kind writes nothing",
			tasks: []domain.Task{
				{Kind: domain.KindDownloadCounts, IDs: []int64{1}},
				{Kind: "reindex_everything"},
			},
			wantErr: true,
		},
		{
			name: "redis failure",
			tasks: []domain.Task{
				{Kind: domain.KindDownloadCounts, IDs: []int64{1}},
			},
			redisErr: "ERR write refused",
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mr, client, cfg := newTestQueue(t)
			ctx := context.Background()
			producer := queue.NewProducer(client, cfg, func() time.Time { return fixedNow })

			if tc.redisErr != "" {
				mr.SetError(tc.redisErr)
			}
			queued, err := producer.EnqueueBatch(ctx, tc.tasks)
			if tc.redisErr != "" {
				mr.SetError("")
			}

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Len(t, queued, tc.wantQueue)

			depth, err := producer.Depth(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDepth, depth)

			seen := map[string]bool{}
			for i, task := range queued {
				assert.NotEmpty(t, task.ID)
				assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
				seen[task.ID] = true
				assert.True(t, task.EnqueuedAt.Equal(fixedNow))
				assert.Equal(t, tc.tasks[i].Kind, task.Kind)
			}
			if tc.wantQueue > 1 {
				assert.Equal(t, "kept", queued[1].ID)
			}
		})
	}
}

func TestConsumer_EmptyStreamTimesOut(t *testing.T) {
	t.Parallel()

	_, client, cfg := newTestQueue(t)
	consumer := newConsumer(t, client, cfg)

	messages, err := consumer.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestConsumer_DropsMalformedMessages(t *testing.T) {
	t.Parallel()

	_, client, cfg := newTestQueue(t)
	ctx := context.Background()
	consumer := newConsumer(t, client, cfg)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: cfg.Stream,
		Values: map[string]any{queue.TaskField: "{not json"},
	}).Err())

	messages, err := consumer.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, messages)

	pending, err := consumer.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending, "malformed messages are acknowledged")
}

func TestRetryScheduler_DelaysWithBackoff(t *testing.T) {
	t.Parallel()

	mr, client, cfg := newTestQueue(t)
	ctx := context.Background()
	scheduler := queue.NewRetryScheduler(client, cfg, func() time.Time { return fixedNow }, nil, infralogger.NewNop())

	task := domain.Task{ID: "t-1", Kind: domain.KindUpdateCounts, IDs: []int64{7, 8}}
	require.NoError(t, scheduler.Retry(ctx, task, errors.New("bulk rejected")))

	count, err := scheduler.DelayedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	members, err := mr.ZMembers(cfg.Stream + ":delayed")
	require.NoError(t, err)
	require.Len(t, members, 1)
	score, err := mr.ZScore(cfg.Stream+":delayed", members[0])
	require.NoError(t, err)
	assert.InDelta(t, float64(fixedNow.Add(time.Second).UnixMilli()), score, 0)
	assert.Contains(t, members[0], `"attempt":1`)
	assert.Contains(t, members[0], `"last_error":"bulk rejected"`)
	assert.Contains(t, members[0], `"ids":[7,8]`)
}

func TestRetryScheduler_DeadLettersExhaustedTasks(t *testing.T) {
	t.Parallel()

	_, client, cfg := newTestQueue(t)
	ctx := context.Background()
	scheduler := queue.NewRetryScheduler(client, cfg, func() time.Time { return fixedNow }, nil, infralogger.NewNop())

	task := domain.Task{ID: "t-2", Kind: domain.KindThemeUserCounts, IDs: []int64{1}, Attempt: 2}
	require.NoError(t, scheduler.Retry(ctx, task, errors.New("still failing")))

	count, err := scheduler.DelayedCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	dead, err := scheduler.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "t-2", dead[0].Task.ID)
	assert.Equal(t, 3, dead[0].Task.Attempt)
	assert.Equal(t, "still failing", dead[0].Task.LastError)
}

func TestRetryScheduler_PromotesOnlyDueTasks(t *testing.T) {
	t.Parallel()

	_, client, cfg := newTestQueue(t)
	ctx := context.Background()
	consumer := newConsumer(t, client, cfg)

	now := fixedNow
	scheduler := queue.NewRetryScheduler(client, cfg, func() time.Time { return now }, nil, infralogger.NewNop())

	require.NoError(t, scheduler.Retry(ctx, domain.Task{ID: "soon", Kind: domain.KindUpdateCounts, IDs: []int64{1}}, errors.New("x")))
	require.NoError(t, scheduler.Retry(ctx,
		domain.Task{ID: "later", Kind: domain.KindUpdateCounts, IDs: []int64{2}, Attempt: 1}, errors.New("x")))

	now = fixedNow.Add(1500 * time.Millisecond)
	moved, err := scheduler.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	count, err := scheduler.DelayedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	messages, err := consumer.Read(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "soon", messages[0].Task.ID)
	assert.Equal(t, 1, messages[0].Task.Attempt)
}
