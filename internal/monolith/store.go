// Package monolith records marketplace totals in the secondary metrics
// store kept in Redis.
package monolith

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/marketplace/infrastructure/circuitbreaker"
	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
)

// DefaultKeyPrefix prefixes every key written by the store.
const DefaultKeyPrefix = "monolith"

// Record is one stored metric value.
type Record struct {
	Recorded domain.Date `json:"recorded"`
	Key      string      `json:"key"`
	Value    Value       `json:"value"`
	UserHash string      `json:"user_hash"`
}

// Value is the JSON payload of a record.
type Value struct {
	Count int64 `json:"count"`
}

// Store writes records to Redis behind a circuit breaker.
type Store struct {
	client  redis.UniversalClient
	breaker *circuitbreaker.Breaker
	prefix  string
	logger  infralogger.Logger
}

// NewStore creates a store. A nil breaker disables the circuit.
func NewStore(client redis.UniversalClient, breaker *circuitbreaker.Breaker, prefix string, log infralogger.Logger) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, breaker: breaker, prefix: prefix, logger: log}
}

// RecordKey is the key of the record of job on date.
func (s *Store) RecordKey(job string, date domain.Date) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, job, date)
}

// IndexKey is the sorted set listing the recorded dates of job.
func (s *Store) IndexKey(job string) string {
	return fmt.Sprintf("%s:%s", s.prefix, job)
}

// Record stores count for job on date, replacing any earlier value.
func (s *Store) Record(ctx context.Context, job string, date domain.Date, count int64) error {
	payload, err := json.Marshal(Record{
		Recorded: date,
		Key:      job,
		Value:    Value{Count: count},
		UserHash: "none",
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	write := func(ctx context.Context) error {
		_, txErr := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.RecordKey(job, date), payload, 0)
			pipe.ZAdd(ctx, s.IndexKey(job), redis.Z{Score: float64(date.Time().Unix()), Member: date.String()})
			return nil
		})
		return txErr
	}

	if s.breaker == nil {
		return write(ctx)
	}
	return s.breaker.Execute(ctx, write)
}

// Get reads the record of job on date.
func (s *Store) Get(ctx context.Context, job string, date domain.Date) (*Record, error) {
	raw, err := s.client.Get(ctx, s.RecordKey(job, date)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.RecordKey(job, date), err)
	}

	var rec Record
	if err = json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// Dates lists the recorded dates of job in ascending order.
func (s *Store) Dates(ctx context.Context, job string) ([]string, error) {
	return s.client.ZRange(ctx, s.IndexKey(job), 0, -1).Result()
}
