package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/storage"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
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
	if cfg.Out == "" || cfg.Results == "" {
		return fmt.Errorf("out and results paths are required")
	}
	poolCfg, err := poolConfig(cfg.Pool)
	if err != nil {
		return err
	}
	windowSecs, err := config.WindowSeconds(cfg.Window)
	if err != nil {
		return err
	}
	start, err := config.ParseTimestamp(cfg.StartTime)
	if err != nil {
		return fmt.Errorf("parse start-time: %w", err)
	}
	if start == 0 {
		start = uint64(time.Now().Unix())
	}
	if start > math.MaxUint32 {
		return fmt.Errorf("start-time %d does not fit the engine clock", start)
	}

	ctx, stop := signalContext()
	defer stop()

	out, err := openOutputs(ctx, cfg.PGDSN, cfg.Windows, cfg.Snapshots, true)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.registerPool(ctx, poolCfg, cfg.Pool.ChainID, model.SourceSimulation, 0); err != nil {
		return err
	}

	if err := truncate(cfg.Out); err != nil {
		return err
	}
	encoder, err := dex.NewEncoder(cfg.Pool.ChainID)
	if err != nil {
		return err
	}
	logSink := storage.NewLogSink(encoder, storage.NewJsonlStorage(cfg.Out), 0)
	sinks := pool.MultiSink{logSink}

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
	if agg != nil {
		sinks = append(sinks, agg.Sink(ctx))
	}

	sim, err := replay.NewSimulator(replay.SimulatorConfig{
		Pool:      poolCfg,
		ChainID:   cfg.Pool.ChainID,
		StartTime: uint32(start),
		Decimals0: cfg.Pool.Decimals0,
		Decimals1: cfg.Pool.Decimals1,
	}, replay.SimulatorDeps{
		Sink:      sinks,
		Snapshots: out.snapshots,
		Metrics:   metrics.NewEngineMetrics(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	results, err := newJSONLWriter(cfg.Results, false)
	if err != nil {
		return err
	}
	defer results.Close()

	logger.Info("simulate start",
		zap.String("in", cfg.In),
		zap.String("pool", poolCfg.Address.Hex()),
		zap.Uint32("fee", poolCfg.Fee),
		zap.Int32("tick_spacing", poolCfg.TickSpacing),
		zap.Uint64("start_time", start),
		zap.Uint64("window_seconds", windowSecs),
	)

	var ops, failed int
	runErr := sim.RunFile(ctx, cfg.In, func(res model.OpResult) error {
		ops++
		if res.Error != "" {
			failed++
		}
		return results.Write(res)
	})

	// Whatever ran is written out even when the scenario stopped early.
	if err := logSink.Flush(); err != nil {
		return fmt.Errorf("write logs: %w", err)
	}
	if agg != nil {
		if err := agg.Err(); err != nil {
			return fmt.Errorf("aggregate: %w", err)
		}
		if err := agg.Close(ctx); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	e := sim.Engine()
	if e.Slot0().Initialized && out.snapshots != nil {
		if err := out.snapshots.InsertSnapshot(ctx, sim.Snapshot()); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	windows := 0
	if agg != nil {
		windows = agg.Flushed()
	}
	logger.Info("simulate complete",
		zap.Int("ops", ops),
		zap.Int("expected_failures", failed),
		zap.Int("logs", logSink.Written()),
		zap.Int("windows", windows),
		zap.Int32("tick", e.Slot0().Tick),
		zap.String("liquidity", e.Liquidity().String()),
	)
	return nil
}
