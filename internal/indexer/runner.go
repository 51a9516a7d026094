// Package indexer pulls pool logs from a chain in block batches, in order, and hands them to
// a handler with a checkpoint after every batch.
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// LogSource is the chain surface the runner reads. *chain.Client implements it.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	SafeBlockNumber(ctx context.Context, confirmations uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Handler consumes the logs of one batch in execution order.
type Handler interface {
	HandleLogs(ctx context.Context, records []model.LogRecord) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, records []model.LogRecord) error

func (f HandlerFunc) HandleLogs(ctx context.Context, records []model.LogRecord) error {
	return f(ctx, records)
}

// RunConfig holds runtime settings for the runner.
type RunConfig struct {
	FromBlock uint64
	// ToBlock of zero means the safe head.
	ToBlock       uint64
	Addresses     []common.Address
	Topic0        []common.Hash
	BatchSize     uint64
	Confirmations uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	// Follow keeps polling the safe head after the range is exhausted.
	Follow       bool
	PollInterval time.Duration
}

// Runner streams logs from the chain to a handler and an optional archive.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	handler    Handler
	archive    storage.Storage
	checkpoint CheckpointStore
	metrics    *metrics.FollowMetrics
	logger     *zap.Logger
	seen       map[string]struct{}
}

// Option customizes a Runner.
type Option func(*Runner)

// WithArchive also writes every batch to s.
func WithArchive(s storage.Storage) Option { return func(r *Runner) { r.archive = s } }

// WithCheckpoint resumes from and saves to c.
func WithCheckpoint(c CheckpointStore) Option { return func(r *Runner) { r.checkpoint = c } }

func WithMetrics(m *metrics.FollowMetrics) Option { return func(r *Runner) { r.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, handler Handler, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  zap.NewNop(),
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes the configured range, then keeps following the safe head if asked to.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.handler == nil && r.archive == nil {
		return fmt.Errorf("runner has neither handler nor archive")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	from := r.cfg.FromBlock
	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	for {
		to, err := r.target(ctx)
		if err != nil {
			return err
		}
		if from <= to {
			if err := r.process(ctx, chainID.Uint64(), from, to); err != nil {
				return err
			}
			from = to + 1
		} else {
			r.logger.Debug("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		}

		if !r.cfg.Follow || (r.cfg.ToBlock != 0 && from > r.cfg.ToBlock) {
			return nil
		}
		if err := sleep(ctx, r.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// target is the last block the next pass may read.
func (r *Runner) target(ctx context.Context) (uint64, error) {
	var safe uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.onRetry("safe_block"), func(ctx context.Context) error {
		var err error
		safe, err = r.source.SafeBlockNumber(ctx, r.cfg.Confirmations)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get safe block: %w", err)
	}
	if r.cfg.ToBlock != 0 && r.cfg.ToBlock < safe {
		return r.cfg.ToBlock, nil
	}
	return safe, nil
}

func (r *Runner) process(ctx context.Context, chainID, from, to uint64) error {
	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.fetchLogs(ctx, blockRange)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		// batches are disjoint, so duplicates can only occur within one
		clear(r.seen)
		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				r.logger.Warn("skip removed log", zap.Uint64("block_number", log.BlockNumber), zap.Uint("log_index", log.Index))
				continue
			}
			if r.isDuplicate(log) {
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			records = append(records, buildLogRecord(chainID, log, ts, ingestedAt))
		}
		slices.SortStableFunc(records, func(a, b model.LogRecord) int {
			switch {
			case a.Before(b):
				return -1
			case b.Before(a):
				return 1
			}
			return 0
		})

		if r.archive != nil {
			if err := r.archive.PutLogBatch(records); err != nil {
				return fmt.Errorf("store logs: %w", err)
			}
		}
		if r.handler != nil {
			if err := r.handler.HandleLogs(ctx, records); err != nil {
				return fmt.Errorf("handle logs %d-%d: %w", blockRange.From, blockRange.To, err)
			}
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return err
			}
		}
		if r.metrics != nil {
			r.metrics.LastBlock.Set(float64(blockRange.To))
		}

		r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}
	return nil
}

func (r *Runner) onRetry(call string) func(int, error) {
	return func(attempt int, err error) {
		if r.metrics != nil {
			r.metrics.FetchRetries.Inc()
		}
		r.logger.Warn("rpc call failed", zap.String("call", call), zap.Int("attempt", attempt), zap.Error(err))
	}
}

// fetchLogs reads the logs of rng, halving the range while the provider refuses it as too
// large.
func (r *Runner) fetchLogs(ctx context.Context, rng BlockRange) ([]types.Log, error) {
	logs, err := r.filterLogsWithRetry(ctx, rng.From, rng.To)
	if err == nil || !rangeTooLarge(err) {
		return logs, err
	}
	lo, hi, ok := rng.Halves()
	if !ok {
		return nil, err
	}
	r.logger.Info("split log range", zap.Uint64("from", rng.From), zap.Uint64("to", rng.To), zap.Error(err))
	first, err := r.fetchLogs(ctx, lo)
	if err != nil {
		return nil, err
	}
	second, err := r.fetchLogs(ctx, hi)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.onRetry("filter_logs"), func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.cfg.Topic0)
		if err != nil && rangeTooLarge(err) {
			return backoff.Permanent(err)
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.onRetry("block_timestamp"), func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
