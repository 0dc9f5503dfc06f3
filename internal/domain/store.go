package domain

import "context"

// EventStore is the minimal hierarchical key-value contract the pipeline
// needs: existence-check-by-path, write-once-by-path, read-subtree, and
// delete-subtree. Events are grouped into UTC calendar-date partitions to
// bound retention-cleanup granularity.
type EventStore interface {
	// Exists reports whether an event is already persisted under the
	// given partition.
	Exists(ctx context.Context, partition, id string) (bool, error)

	// Put persists an event under its partition if and only if no record
	// exists for its ID. Returns false when the ID was already present.
	// This existence-check-then-write is the sole idempotency guard.
	Put(ctx context.Context, partition string, event Event) (bool, error)

	// ReadPartition returns all events stored under one date partition.
	ReadPartition(ctx context.Context, partition string) ([]Event, error)

	// ReadAll returns every persisted event across all partitions.
	ReadAll(ctx context.Context) ([]Event, error)

	// Partitions enumerates the date partitions currently present.
	Partitions(ctx context.Context) ([]string, error)

	// DeletePartition removes an entire date partition.
	DeletePartition(ctx context.Context, partition string) error
}

// SummaryStore persists AI analysis records produced from recent events.
type SummaryStore interface {
	// PutSummary stores the record as the latest summary and appends it
	// to the summary history.
	PutSummary(ctx context.Context, record []byte, atMillis int64) error

	// LatestSummary returns the most recent summary record, or nil when
	// no analysis has run yet.
	LatestSummary(ctx context.Context) ([]byte, error)
}
