// Package aggregate rolls engine events up into per-pool time windows: volume, fees, fee rate
// against pool balances, APR and price range.
package aggregate

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/storage"
)

const (
	feeMethodExact  = "engine_exact"
	feeMethodApprox = "approx_from_feeTier"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// TVL overrides the balances derived from events, e.g. with ChainTVL.
	TVL TVLSource
}

// PoolInfo is what the aggregator needs to know about a pool.
type PoolInfo struct {
	ChainID   uint64
	Address   common.Address
	Token0    common.Address
	Token1    common.Address
	Fee       uint32
	Decimals0 uint8
	Decimals1 uint8
}

type poolState struct {
	info      PoolInfo
	acc       *Accumulator
	sqrtPrice *uint256.Int
	tick      int32
	balances  eventBalances
}

// Aggregator aggregates engine events into pool window metrics. It is not safe for
// concurrent use.
type Aggregator struct {
	cfg    Config
	out    storage.MetricsWriter
	logger *zap.Logger

	pools   map[common.Address]*poolState
	batch   []model.PoolWindowMetrics
	block   uint64
	flushed int
	err     error
}

func NewAggregator(cfg Config, out storage.MetricsWriter, logger *zap.Logger) (*Aggregator, error) {
	if cfg.WindowSeconds == 0 {
		return nil, fmt.Errorf("window seconds must be > 0")
	}
	if out == nil {
		return nil, fmt.Errorf("metrics writer is nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:    cfg,
		out:    out,
		logger: logger,
		pools:  make(map[common.Address]*poolState),
	}, nil
}

// Register adds a pool. Events of unregistered pools are rejected.
func (a *Aggregator) Register(info PoolInfo) {
	if _, ok := a.pools[info.Address]; ok {
		return
	}
	a.pools[info.Address] = &poolState{info: info, balances: newEventBalances()}
}

// SetBlock sets the block number attached to events published through Sink.
func (a *Aggregator) SetBlock(n uint64) { a.block = n }

// Sink adapts the aggregator to an engine event sink. The first failure is kept and
// reported by Err; later events are dropped.
func (a *Aggregator) Sink(ctx context.Context) pool.EventSink {
	return pool.EventSinkFunc(func(rec pool.Record) {
		if a.err != nil {
			return
		}
		a.err = a.Observe(ctx, rec, a.block)
	})
}

func (a *Aggregator) Err() error { return a.err }

// Flushed counts windows handed to the writer.
func (a *Aggregator) Flushed() int { return a.flushed }

// Observe adds one event. Events of a pool must arrive in time order.
func (a *Aggregator) Observe(ctx context.Context, rec pool.Record, blockNumber uint64) error {
	state, ok := a.pools[rec.Pool]
	if !ok {
		return fmt.Errorf("pool %s not registered", rec.Pool.Hex())
	}

	ts := uint64(rec.Timestamp)
	start := windowStart(ts, a.cfg.WindowSeconds)
	if state.acc != nil && state.acc.WindowStart != start {
		if start < state.acc.WindowStart {
			return fmt.Errorf("event at %d precedes open window %d of pool %s", ts, state.acc.WindowStart, rec.Pool.Hex())
		}
		a.closeWindow(ctx, state)
	}
	if state.acc == nil {
		state.acc = NewAccumulator(start, start+a.cfg.WindowSeconds, state.sqrtPrice)
	}
	if blockNumber > state.acc.LastBlock {
		state.acc.LastBlock = blockNumber
	}

	apply(state, rec.Event)
	if len(a.batch) >= a.cfg.BatchSize {
		return a.write(ctx)
	}
	return nil
}

func apply(state *poolState, ev pool.Event) {
	switch e := ev.(type) {
	case pool.InitializeEvent:
		state.sqrtPrice = new(uint256.Int).Set(e.SqrtPriceX96)
		state.tick = e.Tick
		if state.acc.OpenSqrtPriceX96 == nil {
			state.acc.OpenSqrtPriceX96 = new(uint256.Int).Set(e.SqrtPriceX96)
		}
	case pool.SwapEvent:
		state.acc.AddSwap(e, state.info.Fee)
		state.sqrtPrice = new(uint256.Int).Set(e.SqrtPriceX96)
		state.tick = e.Tick
		state.balances.add(fullmath.ToSignedBig(e.Amount0), fullmath.ToSignedBig(e.Amount1))
	case pool.MintEvent:
		state.balances.add(e.Amount0.ToBig(), e.Amount1.ToBig())
	case pool.CollectEvent:
		state.balances.add(new(big.Int).Neg(e.Amount0.Big()), new(big.Int).Neg(e.Amount1.Big()))
	case pool.CollectProtocolEvent:
		state.balances.add(new(big.Int).Neg(e.Amount0.Big()), new(big.Int).Neg(e.Amount1.Big()))
	case pool.FlashEvent:
		state.balances.add(e.Paid0.ToBig(), e.Paid1.ToBig())
	}
}

// Close flushes every open window and writes what is pending.
func (a *Aggregator) Close(ctx context.Context) error {
	addrs := make([]common.Address, 0, len(a.pools))
	for addr, state := range a.pools {
		if state.acc != nil {
			addrs = append(addrs, addr)
		}
	}
	slices.SortFunc(addrs, func(x, y common.Address) int { return bytes.Compare(x[:], y[:]) })
	for _, addr := range addrs {
		a.closeWindow(ctx, a.pools[addr])
	}
	return a.write(ctx)
}

func (a *Aggregator) write(ctx context.Context) error {
	if len(a.batch) == 0 {
		return nil
	}
	if err := a.out.UpsertWindowMetrics(ctx, a.batch); err != nil {
		return fmt.Errorf("write window metrics: %w", err)
	}
	a.flushed += len(a.batch)
	a.batch = a.batch[:0]
	return nil
}

func (a *Aggregator) closeWindow(ctx context.Context, state *poolState) {
	a.batch = append(a.batch, a.buildMetrics(ctx, state))
	state.acc = nil
}

func (a *Aggregator) buildMetrics(ctx context.Context, state *poolState) model.PoolWindowMetrics {
	acc := state.acc
	info := state.info

	tvl0, tvl1 := state.balances.copy()
	tvlMethod := tvlMethodEvents
	if a.cfg.TVL != nil {
		b0, b1, method, err := a.cfg.TVL.PoolBalances(ctx, info, acc.LastBlock)
		if err != nil {
			a.logger.Warn("tvl fetch failed", zap.String("pool", info.Address.Hex()), zap.Error(err))
			tvl0, tvl1, tvlMethod = nil, nil, tvlMethodNone
		} else {
			tvl0, tvl1, tvlMethod = b0, b1, method
		}
	}

	feeRate0, feeRate1 := computeFeeRates(acc.Fee0, acc.Fee1, tvl0, tvl1)
	apr := computeAPR(feeRate0, feeRate1, a.cfg.WindowSeconds)

	feeMethod := feeMethodExact
	if acc.Approximated {
		feeMethod = feeMethodApprox
	}

	return model.PoolWindowMetrics{
		ChainID:        info.ChainID,
		PoolAddress:    info.Address.Hex(),
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		TicksCrossed:   acc.TicksCrossed,
		Volume0:        formatTokenAmount(acc.Volume0, info.Decimals0),
		Volume1:        formatTokenAmount(acc.Volume1, info.Decimals1),
		Fee0:           formatTokenAmount(acc.Fee0, info.Decimals0),
		Fee1:           formatTokenAmount(acc.Fee1, info.Decimals1),
		FeeRate0:       decString(feeRate0),
		FeeRate1:       decString(feeRate1),
		TVL0:           amountString(tvl0, info.Decimals0),
		TVL1:           amountString(tvl1, info.Decimals1),
		APR:            decString(apr),
		OpenPrice:      priceString(acc.OpenSqrtPriceX96, info.Decimals0, info.Decimals1),
		ClosePrice:     priceString(state.sqrtPrice, info.Decimals0, info.Decimals1),
		CloseTick:      state.tick,
		FeeMethod:      feeMethod,
		TVLMethod:      tvlMethod,
	}
}

func amountString(v *big.Int, decimals uint8) *string {
	if v == nil {
		return nil
	}
	s := formatTokenAmount(v, decimals)
	return &s
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}
