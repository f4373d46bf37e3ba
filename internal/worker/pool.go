// Package worker runs queued tasks on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/queue"
	"github.com/jonesrussell/marketplace/internal/telemetry"
)

const (
	defaultDrainTimeout = 30 * time.Second
	defaultTaskTimeout  = 10 * time.Minute
	readErrorBackoff    = time.Second
	ackTimeout          = 5 * time.Second
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	PoolStateStopped PoolState = iota
	PoolStateRunning
	PoolStateDraining
)

func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Source delivers queued messages and takes acknowledgements.
type Source interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
}

// Handler runs one task.
type Handler interface {
	Handle(ctx context.Context, task domain.Task) error
}

// Config holds pool settings.
type Config struct {
	Concurrency  int
	TaskTimeout  time.Duration
	DrainTimeout time.Duration
}

// Validate checks the pool settings.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	return nil
}

// Pool reads messages from a Source and runs each on its own goroutine,
// with at most Concurrency tasks in flight. Messages are acknowledged after
// the handler returns, whatever the outcome.
type Pool struct {
	cfg     Config
	source  Source
	handler Handler
	metrics *telemetry.Metrics
	logger  infralogger.Logger
	state   atomic.Int32
	sem     chan struct{}
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a worker pool. metrics may be nil.
func NewPool(cfg Config, source Source, handler Handler, metrics *telemetry.Metrics, log infralogger.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if source == nil || handler == nil {
		return nil, errors.New("source and handler are required")
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}

	return &Pool{
		cfg:     cfg,
		source:  source,
		handler: handler,
		metrics: metrics,
		logger:  log,
		sem:     make(chan struct{}, cfg.Concurrency),
	}, nil
}

// Run consumes messages until ctx is cancelled, then drains in-flight tasks
// for at most DrainTimeout. Unfinished messages stay pending in the group
// and are reclaimed by a later reader.
func (p *Pool) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}
	defer p.state.Store(int32(PoolStateStopped))

	p.logger.Info("Worker pool started", infralogger.Int("concurrency", p.cfg.Concurrency))

	for ctx.Err() == nil {
		messages, err := p.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("Failed to read tasks", infralogger.Error(err))
			sleep(ctx, readErrorBackoff)
			continue
		}

		for _, msg := range messages {
			if !p.dispatch(ctx, msg) {
				break
			}
		}
	}

	return p.drain()
}

// dispatch waits for a free slot and starts msg. It reports false when ctx
// ended first.
func (p *Pool) dispatch(ctx context.Context, msg queue.Message) bool {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	p.wg.Add(1)
	if p.metrics != nil {
		p.metrics.ActiveWorkers.Inc()
	}

	go func() {
		defer func() {
			<-p.sem
			if p.metrics != nil {
				p.metrics.ActiveWorkers.Dec()
			}
			p.wg.Done()
		}()
		p.process(context.WithoutCancel(ctx), msg)
	}()
	return true
}

func (p *Pool) process(ctx context.Context, msg queue.Message) {
	taskCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	err := p.handle(taskCtx, msg.Task)
	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}

	ackCtx, ackCancel := context.WithTimeout(ctx, ackTimeout)
	defer ackCancel()
	if ackErr := p.source.Ack(ackCtx, msg); ackErr != nil {
		p.logger.Error("Failed to acknowledge task",
			infralogger.String("message_id", msg.ID),
			infralogger.String("task_id", msg.Task.ID),
			infralogger.Error(ackErr),
		)
	}
}

func (p *Pool) handle(ctx context.Context, task domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			p.logger.Error("Task panicked",
				infralogger.String("task_id", task.ID),
				infralogger.String("kind", string(task.Kind)),
				infralogger.Any("panic", r),
			)
		}
	}()
	return p.handler.Handle(ctx, task)
}

func (p *Pool) drain() error {
	p.state.Store(int32(PoolStateDraining))
	p.logger.Info("Worker pool draining")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Worker pool stopped gracefully",
			infralogger.Int64("processed", p.processed.Load()),
			infralogger.Int64("failed", p.failed.Load()),
		)
		return nil
	case <-time.After(p.cfg.DrainTimeout):
		p.logger.Warn("Worker pool drain timeout exceeded", infralogger.Duration("timeout", p.cfg.DrainTimeout))
		return errors.New("worker pool drain timed out")
	}
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// Processed returns the number of tasks handled and how many of them failed.
func (p *Pool) Processed() (total, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
