package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Cleanup deletes every date partition lying entirely before the retention
// horizon and returns how many were removed. It is invoked on demand via
// the operator API, not by the scheduler.
func (r *Runner) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	horizon := r.clock.Now().UTC().Add(-retention)

	partitions, err := r.store.Partitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("enumerate partitions: %w", err)
	}

	deleted := 0
	for _, partition := range partitions {
		day, err := time.ParseInLocation("2006-01-02", partition, time.UTC)
		if err != nil {
			r.logger.Warn("skipping partition with unexpected name", "partition", partition)
			continue
		}
		// The partition covers [day, day+24h); it must end before the horizon.
		if day.Add(24 * time.Hour).After(horizon) {
			continue
		}
		if err := r.store.DeletePartition(ctx, partition); err != nil {
			return deleted, fmt.Errorf("delete partition %s: %w", partition, err)
		}
		r.metrics.PartitionsDeleted.Inc()
		deleted++
	}

	if deleted > 0 {
		r.logger.Info("retention cleanup complete", "deleted_partitions", deleted, "horizon", horizon.Format("2006-01-02"))
	}
	return deleted, nil
}

// RetentionPeriod is how long persisted events are kept before their date
// partition becomes eligible for cleanup.
const RetentionPeriod = 30 * 24 * time.Hour
