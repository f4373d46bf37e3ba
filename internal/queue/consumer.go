package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
)

// Consumer reads tasks through a consumer group.
type Consumer struct {
	client redis.UniversalClient
	cfg    Config
	logger infralogger.Logger
}

// NewConsumer creates a consumer. cfg.Consumer identifies this reader
// within the group and is required.
func NewConsumer(client redis.UniversalClient, cfg Config, log infralogger.Logger) (*Consumer, error) {
	if cfg.Consumer == "" {
		return nil, errors.New("consumer ID is required")
	}
	cfg.setDefaults()
	return &Consumer{client: client, cfg: cfg, logger: log}, nil
}

// Initialize creates the consumer group.
func (c *Consumer) Initialize(ctx context.Context) error {
	return EnsureGroup(ctx, c.client, c.cfg.Stream, c.cfg.Group)
}

// Read returns reclaimed messages that another consumer left idle, or else
// blocks for new ones. A timeout with nothing to read returns no messages
// and no error.
func (c *Consumer) Read(ctx context.Context) ([]Message, error) {
	if reclaimed := c.reclaimPending(ctx); len(reclaimed) > 0 {
		return reclaimed, nil
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", c.cfg.Stream, err)
	}

	var messages []Message
	for _, stream := range streams {
		messages = append(messages, c.parse(ctx, stream.Messages)...)
	}
	return messages, nil
}

// Ack acknowledges a processed message.
func (c *Consumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge message %s: %w", msg.ID, err)
	}
	return nil
}

// Pending returns the number of delivered but unacknowledged messages.
func (c *Consumer) Pending(ctx context.Context) (int64, error) {
	pending, err := c.client.XPending(ctx, c.cfg.Stream, c.cfg.Group).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

func (c *Consumer) reclaimPending(ctx context.Context) []Message {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  maxPendingCheck,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to inspect pending tasks", infralogger.Error(err))
		}
		return nil
	}

	var ids []string
	for _, entry := range pending {
		if entry.Idle >= c.cfg.ReclaimIdle {
			ids = append(ids, entry.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ReclaimIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		c.logger.Warn("Failed to claim idle tasks", infralogger.Int("count", len(ids)), infralogger.Error(err))
		return nil
	}

	c.logger.Info("Reclaimed idle tasks", infralogger.Int("count", len(claimed)))
	return c.parse(ctx, claimed)
}

// parse decodes messages. Malformed entries can never succeed, so they are
// acknowledged and dropped.
func (c *Consumer) parse(ctx context.Context, raw []redis.XMessage) []Message {
	messages := make([]Message, 0, len(raw))
	for _, entry := range raw {
		msg, err := decodeMessage(entry)
		if err != nil {
			c.logger.Error("Dropping malformed task message",
				infralogger.String("message_id", entry.ID),
				infralogger.Error(err),
			)
			if ackErr := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, entry.ID).Err(); ackErr != nil {
				c.logger.Warn("Failed to acknowledge malformed message", infralogger.Error(ackErr))
			}
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}
