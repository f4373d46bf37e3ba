package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// Producer appends tasks to the stream.
type Producer struct {
	client redis.UniversalClient
	cfg    Config
	now    func() time.Time
}

// NewProducer creates a producer. now defaults to time.Now.
func NewProducer(client redis.UniversalClient, cfg Config, now func() time.Time) *Producer {
	cfg.setDefaults()
	if now == nil {
		now = time.Now
	}
	return &Producer{client: client, cfg: cfg, now: now}
}

// Enqueue assigns the task an id and enqueue time when missing and adds it
// to the stream. It returns the task as enqueued.
func (p *Producer) Enqueue(ctx context.Context, task domain.Task) (domain.Task, error) {
	task, args, err := p.prepare(task)
	if err != nil {
		return task, err
	}
	if addErr := p.client.XAdd(ctx, args).Err(); addErr != nil {
		return task, fmt.Errorf("failed to enqueue task to stream %s: %w", p.cfg.Stream, addErr)
	}
	return task, nil
}

// EnqueueBatch validates every task, then adds them to the stream in one
// pipeline. It returns the tasks that were added, in order, up to the first
// failure.
func (p *Producer) EnqueueBatch(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	prepared := make([]domain.Task, 0, len(tasks))
	args := make([]*redis.XAddArgs, 0, len(tasks))
	for _, task := range tasks {
		queued, arg, err := p.prepare(task)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, queued)
		args = append(args, arg)
	}
	if len(args) == 0 {
		return prepared, nil
	}

	pipe := p.client.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(args))
	for _, arg := range args {
		cmds = append(cmds, pipe.XAdd(ctx, arg))
	}
	// Exec reports the first failed command; per-command errors locate it.
	_, execErr := pipe.Exec(ctx)

	for i, cmd := range cmds {
		if cmdErr := cmd.Err(); cmdErr != nil {
			return prepared[:i], fmt.Errorf("failed to enqueue task to stream %s: %w", p.cfg.Stream, cmdErr)
		}
	}
	if execErr != nil {
		return nil, fmt.Errorf("failed to enqueue tasks to stream %s: %w", p.cfg.Stream, execErr)
	}
	return prepared, nil
}

func (p *Producer) prepare(task domain.Task) (domain.Task, *redis.XAddArgs, error) {
	if !task.Kind.Valid() {
		return task, nil, &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown task kind %q", task.Kind)}
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = p.now().UTC()
	}

	payload, err := encodeTask(task)
	if err != nil {
		return task, nil, err
	}
	return task, &redis.XAddArgs{
		Stream: p.cfg.Stream,
		MaxLen: p.cfg.MaxStreamLen,
		Approx: true,
		Values: map[string]any{TaskField: payload},
	}, nil
}

// Depth returns the number of entries in the stream.
func (p *Producer) Depth(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.cfg.Stream).Result()
}
