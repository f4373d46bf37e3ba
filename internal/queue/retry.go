package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/infrastructure/retry"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/telemetry"
)

// promoteScript moves due members of the delayed set (KEYS[1]) onto the
// stream (KEYS[2]) atomically, so a task is never lost or duplicated
// between the two keys.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	redis.call('XADD', KEYS[2], 'MAXLEN', '~', ARGV[3], '*', ARGV[4], member)
end
return #due
`)

// RetryScheduler reschedules failed tasks with exponential backoff and
// dead-letters them once their attempts are used up.
type RetryScheduler struct {
	client  redis.UniversalClient
	cfg     Config
	now     func() time.Time
	metrics *telemetry.Metrics
	logger  infralogger.Logger
}

// NewRetryScheduler creates a scheduler. now defaults to time.Now and
// metrics may be nil.
func NewRetryScheduler(
	client redis.UniversalClient,
	cfg Config,
	now func() time.Time,
	metrics *telemetry.Metrics,
	log infralogger.Logger,
) *RetryScheduler {
	cfg.setDefaults()
	if now == nil {
		now = time.Now
	}
	return &RetryScheduler{client: client, cfg: cfg, now: now, metrics: metrics, logger: log}
}

// Retry records cause on the task and counts the attempt. The task is
// delayed by the backoff of that attempt, or moved to the dead-letter
// stream when no attempts remain.
func (s *RetryScheduler) Retry(ctx context.Context, task domain.Task, cause error) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Attempt++
	if cause != nil {
		task.LastError = cause.Error()
	}

	payload, err := encodeTask(task)
	if err != nil {
		return err
	}

	if retry.Exhausted(s.cfg.Retry, task.Attempt) {
		return s.deadLetter(ctx, task, payload)
	}

	delay := retry.Backoff(s.cfg.Retry, task.Attempt)
	due := s.now().Add(delay)
	if zErr := s.client.ZAdd(ctx, s.cfg.DelayedSet, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: payload,
	}).Err(); zErr != nil {
		return fmt.Errorf("failed to schedule retry of task %s: %w", task.ID, zErr)
	}

	if s.metrics != nil {
		s.metrics.TasksRetried.WithLabelValues(string(task.Kind)).Inc()
	}
	s.logger.Warn("Task scheduled for retry",
		infralogger.String("task_id", task.ID),
		infralogger.String("kind", string(task.Kind)),
		infralogger.Int("attempt", task.Attempt),
		infralogger.Duration("delay", delay),
		infralogger.String("last_error", task.LastError),
	)
	return nil
}

func (s *RetryScheduler) deadLetter(ctx context.Context, task domain.Task, payload string) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.DeadLetterStream,
		MaxLen: s.cfg.MaxStreamLen,
		Approx: true,
		Values: map[string]any{
			TaskField:     payload,
			ErrorField:    task.LastError,
			FailedAtField: s.now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to dead-letter task %s: %w", task.ID, err)
	}

	if s.metrics != nil {
		s.metrics.TasksDead.WithLabelValues(string(task.Kind)).Inc()
	}
	s.logger.Error("Task exhausted its retries",
		infralogger.String("task_id", task.ID),
		infralogger.String("kind", string(task.Kind)),
		infralogger.Int("attempts", task.Attempt),
		infralogger.Int64s("ids", task.IDs),
		infralogger.String("last_error", task.LastError),
	)
	return nil
}

// Promote moves every delayed task that is due onto the stream and returns
// how many were moved.
func (s *RetryScheduler) Promote(ctx context.Context) (int, error) {
	moved := 0
	for {
		n, err := promoteScript.Run(ctx, s.client,
			[]string{s.cfg.DelayedSet, s.cfg.Stream},
			strconv.FormatInt(s.now().UnixMilli(), 10),
			promoteBatch,
			s.cfg.MaxStreamLen,
			TaskField,
		).Int()
		if err != nil {
			return moved, fmt.Errorf("failed to promote delayed tasks: %w", err)
		}
		moved += n
		if n < promoteBatch {
			return moved, nil
		}
	}
}

// RunPromoter calls Promote every interval until ctx is cancelled.
func (s *RetryScheduler) RunPromoter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := s.Promote(ctx)
			if err != nil {
				s.logger.Error("Failed to promote delayed tasks", infralogger.Error(err))
				continue
			}
			if moved > 0 {
				s.logger.Debug("Promoted delayed tasks", infralogger.Int("count", moved))
			}
		}
	}
}

// DelayedCount returns the number of tasks waiting for a retry.
func (s *RetryScheduler) DelayedCount(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.cfg.DelayedSet).Result()
}

// DeadLetters returns up to count dead-lettered tasks, oldest first.
func (s *RetryScheduler) DeadLetters(ctx context.Context, count int64) ([]Message, error) {
	entries, err := s.client.XRangeN(ctx, s.cfg.DeadLetterStream, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead-letter stream: %w", err)
	}
	messages := make([]Message, 0, len(entries))
	for _, entry := range entries {
		msg, decodeErr := decodeMessage(entry)
		if decodeErr != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
