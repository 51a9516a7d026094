package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" && cfg.Pool.Address == "" {
		return fmt.Errorf("rpc url or pool is required")
	}
	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signalContext()
	defer stop()

	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	decodeCtx := dex.DecodeContext{
		Context:         ctx,
		PoolMetaCache:   dex.NewPoolMetaCache(),
		TokenMetaCache:  dex.NewTokenMetaCache(),
		Logger:          logger,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
	}
	if cfg.Pool.Address != "" {
		poolCfg, err := poolConfig(cfg.Pool)
		if err != nil {
			return err
		}
		decodeCtx.PoolMetaCache.Set(poolCfg.Address, model.PoolMeta{
			Token0:      poolCfg.Token0.Hex(),
			Token1:      poolCfg.Token1.Hex(),
			Fee:         poolCfg.Fee,
			TickSpacing: poolCfg.TickSpacing,
		})
	}
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		decodeCtx.Chain = chainClient
	}

	outWriter, err := newJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pool", cfg.Pool.Address),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Bool("include_live_meta", cfg.IncludeLiveMeta),
	)

	stats, err := decodeFile(ctx, cfg.In, decoder, decodeCtx, outWriter, errWriter)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)
	return nil
}

type decodeStats struct {
	total, decoded, skipped, failed int
}

type recordWriter interface {
	Write(value interface{}) error
}

// decodeFile decodes every log of path. Lines that fail go to errs; only write failures
// stop the run.
func decodeFile(ctx context.Context, path string, decoder *dex.V3PoolDecoder, decodeCtx dex.DecodeContext, out, errs recordWriter) (decodeStats, error) {
	var stats decodeStats
	err := storage.ReadJSONL(path, func(_ int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.failed++
			return errs.Write(model.DecodeError{Stage: model.StageDecode, Error: err.Error()})
		}
		if len(record.Topics) == 0 {
			stats.failed++
			return errs.Write(decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
		}
		if !decoder.CanDecode(record.Topics[0]) {
			stats.skipped++
			return nil
		}

		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			stats.failed++
			return errs.Write(decodeErrorFromRecord(record, err))
		}
		if err := out.Write(event); err != nil {
			return err
		}
		stats.decoded++
		return nil
	})
	return stats, err
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		Stage:       model.StageDecode,
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}
