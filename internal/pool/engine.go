// Package pool is the concentrated liquidity pool engine. Every operation runs to completion
// or fails without leaving any trace in pool state or in the asset ledger.
package pool

import (
	"slices"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/oracle"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/swapmath"
	"liquidityEngine/internal/tick"
	"liquidityEngine/internal/types"
)

// MaxTickSpacing bounds the spacing so that a bitmap word index fits int16.
const MaxTickSpacing = 16384

// Config holds the immutable parameters a pool is deployed with.
type Config struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
	// Owner may set and collect protocol fees.
	Owner common.Address
}

// Validate checks the parameters the engine relies on.
func (c Config) Validate() error {
	if c.Fee >= swapmath.FeeDenominator {
		return errorsmod.Wrapf(types.ErrInvalidInput, "fee %d must be below %d", c.Fee, swapmath.FeeDenominator)
	}
	if c.TickSpacing <= 0 || c.TickSpacing >= MaxTickSpacing {
		return errorsmod.Wrapf(types.ErrInvalidInput, "tick spacing %d out of range", c.TickSpacing)
	}
	if c.Token0 == c.Token1 {
		return errorsmod.Wrapf(types.ErrInvalidInput, "token0 and token1 are the same asset %s", c.Token0)
	}
	return nil
}

// Clock supplies the current block timestamp.
type Clock interface {
	BlockTimestamp() uint32
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint32

func (f ClockFunc) BlockTimestamp() uint32 { return f() }

// WallClock reads the system time, truncated to 32 bits.
var WallClock = ClockFunc(func() uint32 { return uint32(time.Now().Unix()) })

// Deps are the collaborators of an engine. Ledger and Clock are required.
type Deps struct {
	Ledger  ledger.Ledger
	Clock   Clock
	Sink    EventSink
	Metrics *metrics.EngineMetrics
	Logger  *zap.Logger
}

// Slot0 is the head state read by most operations.
type Slot0 struct {
	SqrtPriceX96               uint256.Int
	Tick                       int32
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	// FeeProtocol packs the token0 denominator in the low nibble and token1 in the high one.
	FeeProtocol uint8
	Initialized bool
}

// ProtocolFees are fees set aside for the owner.
type ProtocolFees struct {
	Token0 uint128.Uint128
	Token1 uint128.Uint128
}

type head struct {
	slot0                Slot0
	feeGrowthGlobal0X128 uint256.Int
	feeGrowthGlobal1X128 uint256.Int
	protocolFees         ProtocolFees
	liquidity            uint128.Uint128
}

// Engine is a single pool. It is not safe for concurrent use; callers serialize operations.
type Engine struct {
	cfg                 Config
	maxLiquidityPerTick uint128.Uint128

	ledger  ledger.Ledger
	clock   Clock
	sink    EventSink
	metrics *metrics.EngineMetrics
	logger  *zap.Logger

	head         head
	journal      *journal
	ticks        tickStore
	bitmap       bitmapStore
	observations observationStore
	positions    positionStore

	locked   bool
	pending  []Event
	sequence uint64
	crossed  int
}

// New builds an uninitialized pool.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Ledger == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "ledger is nil")
	}
	if deps.Clock == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "clock is nil")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	j := &journal{}
	return &Engine{
		cfg:                 cfg,
		maxLiquidityPerTick: tick.TickSpacingToMaxLiquidityPerTick(cfg.TickSpacing),
		ledger:              deps.Ledger,
		clock:               deps.Clock,
		sink:                deps.Sink,
		metrics:             deps.Metrics,
		logger:              deps.Logger.With(zap.String("pool", cfg.Address.Hex())),
		journal:             j,
		ticks:               tickStore{newJournaledMap[int32, tick.Info](j)},
		bitmap:              bitmapStore{newJournaledMap[int16, uint256.Int](j)},
		observations:        observationStore{newJournaledMap[uint16, oracle.Observation](j)},
		positions:           positionStore{newJournaledMap[common.Hash, position.Info](j)},
	}, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) MaxLiquidityPerTick() uint128.Uint128 { return e.maxLiquidityPerTick }

func (e *Engine) Slot0() Slot0 { return e.head.slot0 }

// Liquidity is the in-range liquidity.
func (e *Engine) Liquidity() uint128.Uint128 { return e.head.liquidity }

func (e *Engine) ProtocolFees() ProtocolFees { return e.head.protocolFees }

// FeeGrowthGlobal returns copies of the global fee growth accumulators.
func (e *Engine) FeeGrowthGlobal() (fg0, fg1 *uint256.Int) {
	return new(uint256.Int).Set(&e.head.feeGrowthGlobal0X128), new(uint256.Int).Set(&e.head.feeGrowthGlobal1X128)
}

func (e *Engine) Tick(t int32) tick.Info { return e.ticks.Get(t) }

func (e *Engine) TickBitmap(wordPos int16) uint256.Int { return e.bitmap.Word(wordPos) }

func (e *Engine) Observation(i uint16) oracle.Observation { return e.observations.Observation(i) }

func (e *Engine) Position(owner common.Address, tickLower, tickUpper int32) position.Info {
	return e.positions.Get(position.Key(owner, tickLower, tickUpper))
}

// InitializedTicks lists initialized ticks in ascending order.
func (e *Engine) InitializedTicks() []int32 {
	out := make([]int32, 0, len(e.ticks.m))
	for t := range e.ticks.m {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (e *Engine) balance0() *uint256.Int { return e.ledger.BalanceOf(e.cfg.Token0, e.cfg.Address) }
func (e *Engine) balance1() *uint256.Int { return e.ledger.BalanceOf(e.cfg.Token1, e.cfg.Address) }

func (e *Engine) emit(ev Event) {
	e.pending = append(e.pending, ev)
}

func (e *Engine) requireInitialized() error {
	if !e.head.slot0.Initialized {
		return errorsmod.Wrapf(types.ErrNotInitialized, "pool %s", e.cfg.Address)
	}
	return nil
}

// execute runs op under the reentrancy guard. On failure every write made by op, to pool
// state and to the ledger, is undone and no event is published.
func (e *Engine) execute(op string, fn func() error) error {
	if e.locked {
		return errorsmod.Wrapf(types.ErrReentrant, "%s during an operation in flight", op)
	}
	e.locked = true
	defer func() { e.locked = false }()

	saved := e.head
	snapshot := e.ledger.Snapshot()
	e.crossed = 0
	started := time.Now()

	err := fn()
	elapsed := time.Since(started)
	if e.metrics != nil {
		e.metrics.OperationLatency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if err != nil {
		e.journal.revert()
		e.head = saved
		e.ledger.RevertToSnapshot(snapshot)
		e.pending = e.pending[:0]
		e.logger.Debug("operation reverted", zap.String("op", op), zap.Error(err))
		if e.metrics != nil {
			e.metrics.Operations.WithLabelValues(e.cfg.Address.Hex(), op, "error").Inc()
		}
		return err
	}

	e.journal.commit()
	events := e.pending
	e.pending = nil
	e.logger.Debug("operation committed",
		zap.String("op", op),
		zap.Int32("tick", e.head.slot0.Tick),
		zap.String("sqrt_price_x96", e.head.slot0.SqrtPriceX96.Dec()),
		zap.String("liquidity", e.head.liquidity.String()),
		zap.Int("events", len(events)),
		zap.Duration("elapsed", elapsed),
	)
	if e.metrics != nil {
		pool := e.cfg.Address.Hex()
		e.metrics.Operations.WithLabelValues(pool, op, "ok").Inc()
		e.metrics.CurrentTick.WithLabelValues(pool).Set(float64(e.head.slot0.Tick))
		e.metrics.ActiveLiquidity.WithLabelValues(pool).Set(liquidityFloat(e.head.liquidity))
		if e.crossed > 0 {
			e.metrics.TicksCrossed.WithLabelValues(pool).Add(float64(e.crossed))
		}
	}
	e.publish(events)
	return nil
}

func (e *Engine) publish(events []Event) {
	ts := e.clock.BlockTimestamp()
	for _, ev := range events {
		rec := Record{Pool: e.cfg.Address, Timestamp: ts, Sequence: e.sequence, Event: ev}
		e.sequence++
		if e.sink != nil {
			e.sink.Publish(rec)
		}
		if e.metrics != nil {
			e.metrics.EventsPublished.WithLabelValues(e.cfg.Address.Hex(), ev.EventName()).Inc()
		}
	}
}

// liquidityFloat approximates l for gauges.
func liquidityFloat(l uint128.Uint128) float64 {
	return float64(l.Hi)*(1<<64) + float64(l.Lo)
}
