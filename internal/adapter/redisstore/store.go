// Package redisstore persists events in Redis as a hierarchical key-value
// layout: one hash per UTC calendar-date partition, keyed by sanitized
// event ID. Writes are HSETNX, so the existence-check-then-write the
// ingest engine relies on is a single atomic command.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/seismowatch/quake-ingest/internal/domain"
)

const (
	eventKeyPrefix    = "events:"
	summaryLatestKey  = "analysis:last"
	summaryHistoryKey = "analysis:history:" // + epoch millis
)

// Store implements domain.EventStore and domain.SummaryStore on Redis.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Store over an existing Redis client.
func New(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Ping verifies connectivity; called once at startup (an unreachable store
// is the only fatal startup condition).
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Exists reports whether an event ID is already persisted in the partition.
func (s *Store) Exists(ctx context.Context, partition, id string) (bool, error) {
	ok, err := s.client.HExists(ctx, partitionKey(partition), id).Result()
	if err != nil {
		return false, fmt.Errorf("exists check %s/%s: %w", partition, id, err)
	}
	return ok, nil
}

// Put writes the event under its partition unless the ID already exists.
// Returns false when another writer got there first; the stored record is
// left untouched either way.
func (s *Store) Put(ctx context.Context, partition string, event domain.Event) (bool, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	set, err := s.client.HSetNX(ctx, partitionKey(partition), event.ID, payload).Result()
	if err != nil {
		return false, fmt.Errorf("write event %s/%s: %w", partition, event.ID, err)
	}
	return set, nil
}

// ReadPartition returns all events in one date partition. Records that fail
// to unmarshal are skipped with a warning rather than failing the read.
func (s *Store) ReadPartition(ctx context.Context, partition string) ([]domain.Event, error) {
	fields, err := s.client.HGetAll(ctx, partitionKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("read partition %s: %w", partition, err)
	}

	events := make([]domain.Event, 0, len(fields))
	for id, payload := range fields {
		var event domain.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.logger.Warn("skipping undecodable event record", "partition", partition, "id", id, "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// ReadAll returns every persisted event across all partitions.
func (s *Store) ReadAll(ctx context.Context) ([]domain.Event, error) {
	partitions, err := s.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	for _, p := range partitions {
		batch, err := s.ReadPartition(ctx, p)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}
	return events, nil
}

// Partitions enumerates the date partitions present, oldest first.
func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	var partitions []string
	iter := s.client.Scan(ctx, 0, eventKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		partitions = append(partitions, strings.TrimPrefix(iter.Val(), eventKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan partitions: %w", err)
	}
	// ISO dates sort lexicographically in chronological order.
	sort.Strings(partitions)
	return partitions, nil
}

// DeletePartition removes a whole date partition.
func (s *Store) DeletePartition(ctx context.Context, partition string) error {
	if err := s.client.Del(ctx, partitionKey(partition)).Err(); err != nil {
		return fmt.Errorf("delete partition %s: %w", partition, err)
	}
	return nil
}

// PutSummary stores an analysis record as the latest summary and appends
// it to the history.
func (s *Store) PutSummary(ctx context.Context, record []byte, atMillis int64) error {
	if err := s.client.Set(ctx, summaryLatestKey, record, 0).Err(); err != nil {
		return fmt.Errorf("write latest summary: %w", err)
	}
	historyKey := fmt.Sprintf("%s%d", summaryHistoryKey, atMillis)
	if err := s.client.Set(ctx, historyKey, record, 0).Err(); err != nil {
		return fmt.Errorf("write summary history: %w", err)
	}
	return nil
}

// LatestSummary returns the latest analysis record, or nil when none exists.
func (s *Store) LatestSummary(ctx context.Context) ([]byte, error) {
	record, err := s.client.Get(ctx, summaryLatestKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read latest summary: %w", err)
	}
	return record, nil
}

func partitionKey(partition string) string {
	return eventKeyPrefix + partition
}
