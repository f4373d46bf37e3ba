package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/queue"
	"github.com/jonesrussell/marketplace/internal/telemetry"
	"github.com/jonesrussell/marketplace/internal/worker"
)

// fakeSource hands out one batch and then blocks until cancelled.
type fakeSource struct {
	mu    sync.Mutex
	batch []queue.Message
	acked []string
}

func (s *fakeSource) Read(ctx context.Context) ([]queue.Message, error) {
	s.mu.Lock()
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()
	if len(batch) > 0 {
		return batch, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSource) Ack(_ context.Context, msg queue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, msg.ID)
	return nil
}

func (s *fakeSource) ackedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acked)
}

type handlerFunc func(ctx context.Context, task domain.Task) error

func (f handlerFunc) Handle(ctx context.Context, task domain.Task) error { return f(ctx, task) }

func messages(n int) []queue.Message {
	out := make([]queue.Message, n)
	for i := range out {
		out[i] = queue.Message{ID: string(rune('a' + i)), Task: domain.Task{ID: string(rune('a' + i)), Kind: domain.KindUpdateCounts}}
	}
	return out
}

func TestNewPool_Validation(t *testing.T) {
	t.Parallel()

	_, err := worker.NewPool(worker.Config{}, &fakeSource{}, handlerFunc(nil), nil, infralogger.NewNop())
	require.Error(t, err)

	_, err = worker.NewPool(worker.Config{Concurrency: 1}, nil, nil, nil, infralogger.NewNop())
	require.Error(t, err)
}

func TestPool_AcksEveryMessageWithinConcurrency(t *testing.T) {
	t.Parallel()

	source := &fakeSource{batch: messages(6)}
	var inFlight, peak atomic.Int32
	var failures atomic.Int32

	handler := handlerFunc(func(_ context.Context, task domain.Task) error {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		if task.ID == "b" {
			failures.Add(1)
			return errors.New("boom")
		}
		return nil
	})

	pool, err := worker.NewPool(worker.Config{Concurrency: 2, DrainTimeout: time.Second}, source, handler, nil, infralogger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool { return source.ackedCount() == 6 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	total, failed := pool.Processed()
	assert.Equal(t, int64(6), total)
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, worker.PoolStateStopped, pool.State())
}

func TestPool_DrainsInFlightTasksOnShutdown(t *testing.T) {
	t.Parallel()

	source := &fakeSource{batch: messages(1)}
	started := make(chan struct{})
	var finished atomic.Bool

	handler := handlerFunc(func(ctx context.Context, _ domain.Task) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(ctx.Err() == nil)
		return nil
	})

	pool, err := worker.NewPool(worker.Config{Concurrency: 1, DrainTimeout: time.Second}, source, handler, nil, infralogger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	<-started
	cancel()
	require.NoError(t, <-done)
	assert.True(t, finished.Load(), "in-flight task keeps its context while draining")
	assert.Equal(t, 1, source.ackedCount())
}

func TestPool_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	source := &fakeSource{batch: messages(1)}
	handler := handlerFunc(func(context.Context, domain.Task) error { panic("bad task") })

	pool, err := worker.NewPool(worker.Config{Concurrency: 1}, source, handler, nil, infralogger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool { return source.ackedCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, failed := pool.Processed()
	assert.Equal(t, int64(1), failed)
}

type fakeIndexer struct{ tasks []domain.Task }

func (f *fakeIndexer) Run(_ context.Context, task domain.Task) error {
	f.tasks = append(f.tasks, task)
	if len(task.IDs) == 0 {
		return &domain.TransientIndexError{Kind: task.Kind, Cause: errors.New("empty")}
	}
	return nil
}

type fakeTotals struct {
	tasks []domain.Task
	err   error
}

func (f *fakeTotals) RunTask(_ context.Context, task domain.Task) error {
	f.tasks = append(f.tasks, task)
	return f.err
}

func TestExecutor_RoutesByKind(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	indexer := &fakeIndexer{}
	totals := &fakeTotals{err: &domain.PrimaryUpsertError{Job: "addon_total_downloads", Cause: errors.New("down")}}
	exec := worker.NewExecutor(indexer, totals, metrics, infralogger.NewNop())
	ctx := context.Background()

	testCases := []struct {
		name    string
		task    domain.Task
		outcome string
		wantErr bool
	}{
		{name: "indexing success", task: domain.Task{Kind: domain.KindDownloadCounts, IDs: []int64{1}}, outcome: "success"},
		{name: "indexing retried", task: domain.Task{Kind: domain.KindThemeUserCounts}, outcome: "retried", wantErr: true},
		{name: "totals failure", task: domain.Task{Kind: domain.KindGlobalTotals, Job: "addon_total_downloads"}, outcome: "failed", wantErr: true},
		{name: "unknown kind", task: domain.Task{Kind: "nope"}, outcome: "failed", wantErr: true},
	}

	for _, tc := range testCases {
		err := exec.Handle(ctx, tc.task)
		if tc.wantErr {
			require.Error(t, err, tc.name)
		} else {
			require.NoError(t, err, tc.name)
		}
		assert.InDelta(t, 1, testutil.ToFloat64(metrics.TasksProcessed.WithLabelValues(string(tc.task.Kind), tc.outcome)), 0, tc.name)
	}

	assert.Len(t, indexer.tasks, 2)
	assert.Len(t, totals.tasks, 1)
}
