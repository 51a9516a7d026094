package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/indexer"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/storage"
)

// fallbackDecimals is used for tokens whose metadata cannot be read.
const fallbackDecimals = 18

func runFollow(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFollow(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	addresses, err := indexer.ParseAddresses([]string{cfg.Pool})
	if err != nil {
		return err
	}
	if len(addresses) != 1 {
		return fmt.Errorf("exactly one pool address is required")
	}
	poolAddr := addresses[0]
	topic0, err := indexer.ParseTopic0(dex.EventNames)
	if err != nil {
		return err
	}
	windowSecs, err := config.WindowSeconds(cfg.Window)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainIDBig, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	chainID := chainIDBig.Uint64()

	tokens := dex.NewTokenMetaCache()
	meta, err := dex.FetchPoolMeta(ctx, chainClient, poolAddr, tokens, logger)
	if err != nil {
		return fmt.Errorf("fetch pool meta: %w", err)
	}
	poolCfg, err := poolConfig(config.PoolConfig{
		Address:     poolAddr.Hex(),
		Token0:      meta.Token0,
		Token1:      meta.Token1,
		Fee:         meta.Fee,
		TickSpacing: meta.TickSpacing,
		Owner:       cfg.Owner,
	})
	if err != nil {
		return err
	}
	decimals0 := tokenDecimals(tokens, poolCfg.Token0, logger)
	decimals1 := tokenDecimals(tokens, poolCfg.Token1, logger)

	engineMetrics := metrics.NewEngineMetrics()
	followMetrics := metrics.NewFollowMetrics()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out, err := openOutputs(ctx, cfg.PGDSN, cfg.Windows, cfg.Snapshots, false)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.registerPool(ctx, poolCfg, chainID, model.SourceFollow, cfg.FromBlock); err != nil {
		return err
	}

	var tvl aggregate.TVLSource
	if cfg.TVLFromChain {
		tvl = aggregate.ChainTVL{Client: chainClient}
	}
	agg, err := out.newAggregator(windowSecs, tvl, aggregate.PoolInfo{
		ChainID:   chainID,
		Address:   poolAddr,
		Token0:    poolCfg.Token0,
		Token1:    poolCfg.Token1,
		Fee:       poolCfg.Fee,
		Decimals0: decimals0,
		Decimals1: decimals1,
	}, logger)
	if err != nil {
		return err
	}

	deps := replay.ReplayerDeps{
		Metrics: engineMetrics,
		Follow:  followMetrics,
		Logger:  logger,
	}
	if agg != nil {
		deps.Sink = agg.Sink(ctx)
		deps.OnBlock = agg.SetBlock
	}
	r, err := replay.NewReplayer(replay.ReplayerConfig{
		Pool:    poolCfg,
		ChainID: chainID,
		Strict:  cfg.Strict,
	}, deps)
	if err != nil {
		return err
	}

	var checkpoint indexer.CheckpointStore
	switch {
	case !cfg.CheckpointEnabled:
	case out.pg != nil:
		checkpoint = indexer.NewDBCheckpointStore(out.pg, "follow:"+poolAddr.Hex())
	default:
		checkpoint = indexer.NewFileCheckpointStore(cfg.Checkpoint)
	}

	// The engine lives in memory, so a resumed run first rebuilds it from the archive.
	if checkpoint != nil {
		last, ok, err := checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok {
			if err := rebuild(ctx, r, cfg.Out, last); err != nil {
				return err
			}
			logger.Info("engine rebuilt from archive",
				zap.String("archive", cfg.Out),
				zap.Uint64("through_block", last),
				zap.Int("applied", r.Applied()),
				zap.Int("skipped", r.Skipped()),
			)
		}
	}

	snapshotInfo := func(block uint64) replay.SnapshotInfo {
		return replay.SnapshotInfo{
			ChainID:     chainID,
			BlockNumber: block,
			Timestamp:   r.Now(),
			Decimals0:   decimals0,
			Decimals1:   decimals1,
		}
	}
	handler := indexer.HandlerFunc(func(ctx context.Context, records []model.LogRecord) error {
		if err := r.HandleLogs(ctx, records); err != nil {
			return err
		}
		if agg != nil {
			if err := agg.Err(); err != nil {
				return fmt.Errorf("aggregate: %w", err)
			}
		}
		if len(records) == 0 || !r.Engine().Slot0().Initialized {
			return nil
		}
		block := records[len(records)-1].BlockNumber
		if cfg.Verify {
			if err := verify(ctx, chainClient, r, poolAddr, block, cfg.Strict, logger); err != nil {
				return err
			}
		}
		if out.snapshots != nil {
			if err := out.snapshots.InsertSnapshot(ctx, replay.TakeSnapshot(r.Engine(), r.Ledger(), snapshotInfo(block))); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
		}
		return nil
	})

	opts := []indexer.Option{
		indexer.WithArchive(storage.NewJsonlStorage(cfg.Out)),
		indexer.WithMetrics(followMetrics),
		indexer.WithLogger(logger),
	}
	if checkpoint != nil {
		opts = append(opts, indexer.WithCheckpoint(checkpoint))
	}
	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:     cfg.FromBlock,
		ToBlock:       cfg.ToBlock,
		Addresses:     addresses,
		Topic0:        topic0,
		BatchSize:     cfg.BatchSize,
		Confirmations: cfg.Confirmations,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		Follow:        cfg.Follow,
		PollInterval:  cfg.PollInterval,
	}, chainClient, handler, opts...)

	logger.Info("follow start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", chainID),
		zap.String("pool", poolAddr.Hex()),
		zap.Uint32("fee", poolCfg.Fee),
		zap.Int32("tick_spacing", poolCfg.TickSpacing),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("follow", cfg.Follow),
		zap.Bool("verify", cfg.Verify),
		zap.Uint64("window_seconds", windowSecs),
		zap.String("out", cfg.Out),
	)

	runErr := runner.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if agg != nil {
		// Open windows are written as they stand; a later run upserts them again.
		if err := agg.Close(context.Background()); err != nil && runErr == nil {
			runErr = err
		}
	}

	logger.Info("follow stopped",
		zap.Int("applied", r.Applied()),
		zap.Int("mismatches", r.Mismatches()),
		zap.Uint64("last_block", r.LastBlock()),
		zap.Int32("tick", r.Engine().Slot0().Tick),
		zap.Error(runErr),
	)
	return runErr
}

// rebuild replays archived logs up to and including block through.
func rebuild(ctx context.Context, r *replay.Replayer, archive string, through uint64) error {
	if _, err := os.Stat(archive); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checkpoint at block %d but no archive at %s", through, archive)
		}
		return fmt.Errorf("stat archive: %w", err)
	}
	return storage.ReadJSONL(archive, func(lineNo int, line []byte) error {
		var rec model.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("archive line %d: %w", lineNo, err)
		}
		if rec.BlockNumber > through || rec.Removed {
			return nil
		}
		return r.ApplyLog(ctx, rec)
	})
}

// verify compares the engine head with the pool state read at block.
func verify(ctx context.Context, client dex.ContractCaller, r *replay.Replayer, poolAddr common.Address, block uint64, strict bool, logger *zap.Logger) error {
	live, err := dex.FetchPoolState(ctx, client, poolAddr, block)
	if err != nil {
		return fmt.Errorf("fetch pool state at %d: %w", block, err)
	}
	diffs := replay.StateDiff(r.Engine(), live)
	if len(diffs) == 0 {
		logger.Debug("engine matches chain", zap.Uint64("block", block))
		return nil
	}
	logger.Warn("engine differs from chain", zap.Uint64("block", block), zap.Strings("diffs", diffs))
	if strict {
		return fmt.Errorf("engine differs from chain at block %d: %v", block, diffs)
	}
	return nil
}

func tokenDecimals(tokens *dex.TokenMetaCache, token common.Address, logger *zap.Logger) uint8 {
	meta, ok := tokens.Get(token)
	if !ok || (meta.Decimals == 0 && meta.Symbol == "") {
		logger.Warn("token decimals unknown", zap.String("token", token.Hex()), zap.Int("fallback", fallbackDecimals))
		return fallbackDecimals
	}
	return meta.Decimals
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}
