// Package queue provides the Redis Streams task queue: a producer, a
// consumer group reader, and a delayed-retry set with a dead-letter stream.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/marketplace/infrastructure/retry"
	"github.com/jonesrussell/marketplace/internal/domain"
)

const (
	// TaskField is the stream field holding the JSON encoded task.
	TaskField = "task"

	// ErrorField and FailedAtField annotate dead-lettered tasks.
	ErrorField    = "error"
	FailedAtField = "failed_at"

	defaultMaxStreamLen = 100000
	defaultBlockTimeout = 5 * time.Second
	defaultBatchSize    = 10
	defaultReclaimIdle  = 10 * time.Minute
	maxPendingCheck     = 100
	promoteBatch        = 100
)

// Config names the Redis keys of one queue and tunes its behaviour.
type Config struct {
	Stream           string
	Group            string
	Consumer         string
	DeadLetterStream string
	DelayedSet       string
	MaxStreamLen     int64
	BlockTimeout     time.Duration
	BatchSize        int64
	ReclaimIdle      time.Duration
	Retry            retry.Config
}

func (c *Config) setDefaults() {
	if c.Stream == "" {
		c.Stream = "marketplace:tasks"
	}
	if c.Group == "" {
		c.Group = "marketplace-workers"
	}
	if c.DeadLetterStream == "" {
		c.DeadLetterStream = c.Stream + ":dead"
	}
	if c.DelayedSet == "" {
		c.DelayedSet = c.Stream + ":delayed"
	}
	if c.MaxStreamLen <= 0 {
		c.MaxStreamLen = defaultMaxStreamLen
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = defaultBlockTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.ReclaimIdle <= 0 {
		c.ReclaimIdle = defaultReclaimIdle
	}
}

// Message is a task read from the stream together with its entry id.
type Message struct {
	ID   string
	Task domain.Task
}

// EnsureGroup creates the consumer group, and the stream if needed. An
// existing group is not an error.
func EnsureGroup(ctx context.Context, client redis.UniversalClient, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func encodeTask(task domain.Task) (string, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}
	return string(data), nil
}

func decodeMessage(msg redis.XMessage) (Message, error) {
	raw, ok := msg.Values[TaskField].(string)
	if !ok {
		return Message{}, errors.New("missing or invalid task data")
	}
	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if !task.Kind.Valid() {
		return Message{}, fmt.Errorf("unknown task kind %q", task.Kind)
	}
	return Message{ID: msg.ID, Task: task}, nil
}
