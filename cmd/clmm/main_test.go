package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/storage"
)

const priceOne = "79228162514264337593543950336"

type memWriter struct {
	values []interface{}
}

func (w *memWriter) Write(value interface{}) error {
	w.values = append(w.values, value)
	return nil
}

func TestPoolConfigDefaults(t *testing.T) {
	cfg, err := poolConfig(config.PoolConfig{Fee: 500, TickSpacing: 10})
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if cfg.Address != defaultPoolAddress || cfg.Token0 != defaultToken0 || cfg.Owner != replay.DefaultSender {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Fee != 500 || cfg.TickSpacing != 10 {
		t.Fatalf("fee/spacing: %+v", cfg)
	}

	owner := "0x3333333333333333333333333333333333333333"
	cfg, err = poolConfig(config.PoolConfig{Owner: owner})
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if cfg.Owner != common.HexToAddress(owner) {
		t.Fatalf("owner %s", cfg.Owner.Hex())
	}

	if _, err := poolConfig(config.PoolConfig{Token1: "0x12"}); err == nil || !strings.Contains(err.Error(), "token1") {
		t.Fatalf("expected token1 error, got %v", err)
	}
}

// simulate writes the logs of a short scenario to a JSONL file and returns its path.
func simulate(t *testing.T, dir string) (string, *replay.Simulator) {
	t.Helper()
	poolCfg, err := poolConfig(config.PoolConfig{Fee: 3000, TickSpacing: 60})
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	encoder, err := dex.NewEncoder(31337)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	path := filepath.Join(dir, "logs.jsonl")
	sink := storage.NewLogSink(encoder, storage.NewJsonlStorage(path), 0)
	sim, err := replay.NewSimulator(replay.SimulatorConfig{Pool: poolCfg, ChainID: 31337, StartTime: 1000}, replay.SimulatorDeps{Sink: sink})
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	ops := []model.ScenarioOp{
		{Op: model.OpInitialize, SqrtPriceX96: priceOne},
		{Op: model.OpMint, TickLower: -600, TickUpper: 600, Amount: "1000000000000000000"},
		{Op: model.OpAdvance, Seconds: 12},
		{Op: model.OpSwap, ZeroForOne: true, AmountSpecified: "1000000000000000"},
		{Op: model.OpSwap, ZeroForOne: false, AmountSpecified: "-500000000000000"},
	}
	if _, err := sim.Run(context.Background(), ops); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return path, sim
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path, _ := simulate(t, dir)

	extra := storage.NewJsonlStorage(path)
	if err := extra.PutLogBatch([]model.LogRecord{
		{Address: defaultPoolAddress.Hex(), Topics: []string{"0x" + strings.Repeat("ab", 32)}},
		{Address: defaultPoolAddress.Hex()},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cache := dex.NewPoolMetaCache()
	cache.Set(defaultPoolAddress, model.PoolMeta{Fee: 3000, TickSpacing: 60})

	out, errs := &memWriter{}, &memWriter{}
	stats, err := decodeFile(context.Background(), path, decoder, dex.DecodeContext{PoolMetaCache: cache}, out, errs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// initialize, mint, two swaps
	if stats.decoded != 4 || stats.skipped != 1 || stats.failed != 1 || stats.total != 6 {
		t.Fatalf("stats %+v", stats)
	}
	if len(out.values) != 4 || len(errs.values) != 1 {
		t.Fatalf("written %d events, %d errors", len(out.values), len(errs.values))
	}
	first, ok := out.values[0].(*model.TypedEvent)
	if !ok || first.EventName != "Initialize" {
		t.Fatalf("first event %+v", out.values[0])
	}
	decodeErr := errs.values[0].(model.DecodeError)
	if decodeErr.Stage != model.StageDecode || decodeErr.Error != "missing topic0" {
		t.Fatalf("decode error %+v", decodeErr)
	}
}

func TestRebuildFromArchive(t *testing.T) {
	dir := t.TempDir()
	path, sim := simulate(t, dir)

	r, err := replay.NewReplayer(replay.ReplayerConfig{Pool: sim.Engine().Config(), ChainID: 31337, Strict: true}, replay.ReplayerDeps{})
	if err != nil {
		t.Fatalf("replayer: %v", err)
	}
	if err := rebuild(context.Background(), r, path, 0); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if r.Applied() != 4 || r.Mismatches() != 0 {
		t.Fatalf("applied %d mismatches %d", r.Applied(), r.Mismatches())
	}
	if r.Engine().Slot0() != sim.Engine().Slot0() || r.Engine().Liquidity() != sim.Engine().Liquidity() {
		t.Fatalf("rebuilt head %+v, want %+v", r.Engine().Slot0(), sim.Engine().Slot0())
	}

	if err := rebuild(context.Background(), r, filepath.Join(dir, "missing.jsonl"), 10); err == nil {
		t.Fatalf("expected error for missing archive")
	}
}
