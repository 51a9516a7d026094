package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/postgres"
)

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	return nil
}

// truncate empties an append-only output so a run starts from a clean file.
func truncate(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset %s: %w", path, err)
	}
	return nil
}

// outputs are where window metrics and snapshots go: Postgres when a DSN is set, JSONL
// files otherwise.
type outputs struct {
	pg        *postgres.Store
	windows   storage.MetricsWriter
	snapshots storage.SnapshotWriter
}

func openOutputs(ctx context.Context, dsn, windowsPath, snapshotsPath string, fresh bool) (*outputs, error) {
	if dsn != "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &outputs{pg: store, windows: store, snapshots: store}, nil
	}

	if fresh {
		for _, path := range []string{windowsPath, snapshotsPath} {
			if path == "" {
				continue
			}
			if err := truncate(path); err != nil {
				return nil, err
			}
		}
	}
	out := &outputs{}
	if windowsPath != "" {
		out.windows = storage.NewJsonlStorage(windowsPath)
	}
	if snapshotsPath != "" {
		out.snapshots = storage.NewJsonlStorage(snapshotsPath)
	}
	return out, nil
}

func (o *outputs) Close() {
	if o.pg != nil {
		o.pg.Close()
	}
}

// registerPool records the pool in Postgres; JSONL outputs carry no registry.
func (o *outputs) registerPool(ctx context.Context, cfg pool.Config, chainID uint64, source string, firstBlock uint64) error {
	if o.pg == nil {
		return nil
	}
	return o.pg.UpsertPools(ctx, []model.Pool{{
		ChainID:        chainID,
		Address:        cfg.Address.Hex(),
		Token0:         cfg.Token0.Hex(),
		Token1:         cfg.Token1.Hex(),
		Fee:            cfg.Fee,
		TickSpacing:    cfg.TickSpacing,
		Owner:          cfg.Owner.Hex(),
		Source:         source,
		FirstSeenBlock: firstBlock,
	}})
}

// newAggregator returns nil when windowSecs is zero.
func (o *outputs) newAggregator(windowSecs uint64, tvl aggregate.TVLSource, info aggregate.PoolInfo, logger *zap.Logger) (*aggregate.Aggregator, error) {
	if windowSecs == 0 || o.windows == nil {
		return nil, nil
	}
	agg, err := aggregate.NewAggregator(aggregate.Config{WindowSeconds: windowSecs, TVL: tvl}, o.windows, logger)
	if err != nil {
		return nil, err
	}
	agg.Register(info)
	return agg, nil
}
