// Package storage persists what a run produces: pool logs, window metrics and snapshots.
package storage

import (
	"context"

	"liquidityEngine/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// MetricsWriter persists aggregated window metrics.
type MetricsWriter interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// SnapshotWriter persists pool head snapshots.
type SnapshotWriter interface {
	InsertSnapshot(ctx context.Context, snapshot model.PoolSnapshot) error
}
