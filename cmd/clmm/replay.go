package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/replay"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Pool.Address == "" {
		return fmt.Errorf("pool address is required")
	}
	poolCfg, err := poolConfig(cfg.Pool)
	if err != nil {
		return err
	}
	windowSecs, err := config.WindowSeconds(cfg.Window)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	out, err := openOutputs(ctx, cfg.PGDSN, cfg.Windows, cfg.Snapshots, true)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.registerPool(ctx, poolCfg, cfg.Pool.ChainID, model.SourceReplay, 0); err != nil {
		return err
	}

	agg, err := out.newAggregator(windowSecs, nil, aggregate.PoolInfo{
		ChainID:   cfg.Pool.ChainID,
		Address:   poolCfg.Address,
		Token0:    poolCfg.Token0,
		Token1:    poolCfg.Token1,
		Fee:       poolCfg.Fee,
		Decimals0: cfg.Pool.Decimals0,
		Decimals1: cfg.Pool.Decimals1,
	}, logger)
	if err != nil {
		return err
	}
	deps := replay.ReplayerDeps{
		Metrics: metrics.NewEngineMetrics(),
		Follow:  metrics.NewFollowMetrics(),
		Logger:  logger,
	}
	if agg != nil {
		deps.Sink = agg.Sink(ctx)
		deps.OnBlock = agg.SetBlock
	}

	r, err := replay.NewReplayer(replay.ReplayerConfig{
		Pool:    poolCfg,
		ChainID: cfg.Pool.ChainID,
		Strict:  cfg.Strict,
	}, deps)
	if err != nil {
		return err
	}

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("pool", poolCfg.Address.Hex()),
		zap.Bool("strict", cfg.Strict),
		zap.Uint64("window_seconds", windowSecs),
	)

	replayErr := r.ReplayFile(ctx, cfg.In)
	var evErr *replay.EventError
	if errors.As(replayErr, &evErr) && cfg.Errors != "" {
		errWriter, err := newJSONLWriter(cfg.Errors, false)
		if err != nil {
			return err
		}
		werr := errWriter.Write(evErr.Record(cfg.Pool.ChainID, poolCfg.Address.Hex()))
		if cerr := errWriter.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return werr
		}
	}

	if agg != nil {
		if err := agg.Err(); err != nil {
			return fmt.Errorf("aggregate: %w", err)
		}
		if err := agg.Close(ctx); err != nil {
			return err
		}
	}

	// The snapshot shows where the replay stopped, also after a failure.
	if r.Engine().Slot0().Initialized && out.snapshots != nil {
		snap := replay.TakeSnapshot(r.Engine(), r.Ledger(), replay.SnapshotInfo{
			ChainID:     cfg.Pool.ChainID,
			BlockNumber: r.LastBlock(),
			Timestamp:   r.Now(),
			Decimals0:   cfg.Pool.Decimals0,
			Decimals1:   cfg.Pool.Decimals1,
		})
		if err := out.snapshots.InsertSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	fields := []zap.Field{
		zap.Int("applied", r.Applied()),
		zap.Int("skipped", r.Skipped()),
		zap.Int("mismatches", r.Mismatches()),
		zap.Int32("tick", r.Engine().Slot0().Tick),
		zap.String("liquidity", r.Engine().Liquidity().String()),
	}
	if replayErr != nil {
		logger.Error("replay stopped", append(fields, zap.Error(replayErr))...)
		return replayErr
	}
	logger.Info("replay complete", fields...)
	return nil
}
