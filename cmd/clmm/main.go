package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/replay"
)

// Addresses used when a local pool names none.
var (
	defaultPoolAddress = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	defaultToken0      = common.HexToAddress("0x00000000000000000000000000000000000000e0")
	defaultToken1      = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func main() {
	root := &cobra.Command{
		Use:          "clmm",
		Short:        "Concentrated liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario of pool operations against a local engine",
		RunE:  runSimulate,
	}
	addPoolFlags(simulateCmd.Flags())
	simulateCmd.Flags().String("in", "", "input scenario JSONL")
	simulateCmd.Flags().String("out", "./data/sim_logs.jsonl", "output pool logs JSONL")
	simulateCmd.Flags().String("results", "./data/sim_results.jsonl", "output op results JSONL")
	simulateCmd.Flags().String("windows", "./data/sim_windows.jsonl", "output window metrics JSONL (when --pg-dsn is empty)")
	simulateCmd.Flags().String("snapshots", "./data/sim_snapshots.jsonl", "output pool snapshots JSONL (when --pg-dsn is empty)")
	simulateCmd.Flags().String("window", "5m", "aggregation window, empty disables aggregation")
	simulateCmd.Flags().String("start-time", "", "engine clock start (unix seconds or RFC3339)")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN for pools, window metrics and snapshots")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(simulateCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute pool logs or typed events on a local engine and verify swaps",
		RunE:  runReplay,
	}
	addPoolFlags(replayCmd.Flags())
	replayCmd.Flags().String("in", "", "input logs or typed events JSONL")
	replayCmd.Flags().Bool("strict", false, "fail on the first swap that does not match its log")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "replay errors JSONL")
	replayCmd.Flags().String("snapshots", "./data/replay_snapshots.jsonl", "output pool snapshots JSONL (when --pg-dsn is empty)")
	replayCmd.Flags().String("windows", "./data/replay_windows.jsonl", "output window metrics JSONL (when --pg-dsn is empty)")
	replayCmd.Flags().String("window", "", "aggregation window, empty disables aggregation")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for pools, window metrics and snapshots")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(replayCmd)

	followCmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow a deployed pool over RPC and replay its logs",
		RunE:  runFollow,
	}
	followCmd.Flags().String("rpc", "", "RPC URL")
	followCmd.Flags().String("pool", "", "pool address")
	followCmd.Flags().String("owner", "", "account protocol fee events are replayed as")
	followCmd.Flags().Uint64("from", 0, "start block (inclusive), at or before the pool's Initialize")
	followCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means the safe head")
	followCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	followCmd.Flags().Uint64("confirmations", 12, "blocks behind the head considered safe")
	followCmd.Flags().String("out", "./data/logs.jsonl", "archive of fetched logs JSONL")
	followCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (when --pg-dsn is empty)")
	followCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	followCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	followCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	followCmd.Flags().Bool("follow", true, "keep polling after reaching the safe head")
	followCmd.Flags().Duration("poll-interval", 12*time.Second, "delay between polls of the safe head")
	followCmd.Flags().String("metrics-addr", ":9102", "prometheus listen address, empty disables")
	followCmd.Flags().String("window", "5m", "aggregation window, empty disables aggregation")
	followCmd.Flags().String("windows", "./data/windows.jsonl", "output window metrics JSONL (when --pg-dsn is empty)")
	followCmd.Flags().String("snapshots", "", "pool snapshot after every batch JSONL, empty disables (when --pg-dsn is empty)")
	followCmd.Flags().Bool("tvl-from-chain", false, "read TVL with balanceOf calls instead of event balances")
	followCmd.Flags().Bool("verify", false, "compare the engine with live pool state after every batch")
	followCmd.Flags().Bool("strict", false, "stop on swap mismatches and verify differences")
	followCmd.Flags().String("pg-dsn", "", "Postgres DSN for checkpoints, window metrics and snapshots")
	followCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(followCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}
	addPoolFlags(decodeCmd.Flags())
	decodeCmd.Flags().String("rpc", "", "RPC URL, optional when --pool describes the only pool")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().Bool("include-live-meta", false, "include optional slot0/liquidity (requires archive RPC for historical accuracy)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(flags *pflag.FlagSet) {
	flags.Uint64("chain-id", 31337, "chain id written to logs")
	flags.String("pool", "", "pool address")
	flags.String("token0", "", "token0 address")
	flags.String("token1", "", "token1 address")
	flags.Uint32("fee", 3000, "fee in hundredths of a bip")
	flags.Int32("tick-spacing", 60, "tick spacing")
	flags.String("owner", "", "account allowed to set and collect protocol fees")
	flags.Uint8("decimals0", 18, "token0 decimals")
	flags.Uint8("decimals1", 18, "token1 decimals")
}

// poolConfig turns configured strings into an engine config, filling local defaults.
func poolConfig(cfg config.PoolConfig) (pool.Config, error) {
	out := pool.Config{
		Address:     defaultPoolAddress,
		Token0:      defaultToken0,
		Token1:      defaultToken1,
		Fee:         cfg.Fee,
		TickSpacing: cfg.TickSpacing,
		Owner:       replay.DefaultSender,
	}
	for _, f := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"pool", cfg.Address, &out.Address},
		{"token0", cfg.Token0, &out.Token0},
		{"token1", cfg.Token1, &out.Token1},
		{"owner", cfg.Owner, &out.Owner},
	} {
		if f.value == "" {
			continue
		}
		if !common.IsHexAddress(f.value) {
			return pool.Config{}, fmt.Errorf("invalid %s address: %s", f.name, f.value)
		}
		*f.dst = common.HexToAddress(f.value)
	}
	return out, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
