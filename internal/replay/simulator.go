package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/storage"
)

// ErrUnexpectedOutcome marks a scenario op whose result differs from its expect_error.
var ErrUnexpectedOutcome = errors.New("unexpected outcome")

// DefaultSender acts for ops that name no sender.
var DefaultSender = common.HexToAddress("0x00000000000000000000000000000000000000a1")

// SimulatorConfig describes the simulated pool.
type SimulatorConfig struct {
	Pool      pool.Config
	ChainID   uint64
	StartTime uint32
	Decimals0 uint8
	Decimals1 uint8
}

// Simulator runs scenario ops against one engine. Accounts are funded on demand: whatever a
// callback owes is minted to the payer before it pays.
type Simulator struct {
	cfg       SimulatorConfig
	engine    *pool.Engine
	ledger    *ledger.Memory
	clock     *pool.ManualClock
	snapshots storage.SnapshotWriter
	logger    *zap.Logger
}

// SimulatorDeps are optional collaborators of a Simulator.
type SimulatorDeps struct {
	Sink      pool.EventSink
	Snapshots storage.SnapshotWriter
	Metrics   *metrics.EngineMetrics
	Logger    *zap.Logger
}

func NewSimulator(cfg SimulatorConfig, deps SimulatorDeps) (*Simulator, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Simulator{
		cfg:       cfg,
		ledger:    ledger.NewMemory(),
		clock:     pool.NewManualClock(cfg.StartTime),
		snapshots: deps.Snapshots,
		logger:    deps.Logger,
	}
	engine, err := pool.New(cfg.Pool, pool.Deps{
		Ledger:  s.ledger,
		Clock:   s.clock,
		Sink:    deps.Sink,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	s.engine = engine
	return s, nil
}

func (s *Simulator) Engine() *pool.Engine { return s.engine }

func (s *Simulator) Ledger() *ledger.Memory { return s.ledger }

// Snapshot captures the engine head at the current clock.
func (s *Simulator) Snapshot() model.PoolSnapshot {
	return TakeSnapshot(s.engine, s.ledger, SnapshotInfo{
		ChainID:   s.cfg.ChainID,
		Timestamp: s.clock.BlockTimestamp(),
		Decimals0: s.cfg.Decimals0,
		Decimals1: s.cfg.Decimals1,
	})
}

// Run applies ops in order. It stops at the first op whose outcome is not the expected one.
func (s *Simulator) Run(ctx context.Context, ops []model.ScenarioOp) ([]model.OpResult, error) {
	results := make([]model.OpResult, 0, len(ops))
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.Apply(ctx, i, op)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// RunFile applies the ops of a JSONL scenario, passing every result to fn.
func (s *Simulator) RunFile(ctx context.Context, path string, fn func(model.OpResult) error) error {
	index := 0
	return storage.ReadJSONL(path, func(lineNo int, line []byte) error {
		var op model.ScenarioOp
		if err := json.Unmarshal(line, &op); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		res, err := s.Apply(ctx, index, op)
		index++
		if fn != nil {
			if ferr := fn(res); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		return nil
	})
}

// Apply runs one op. An op failing with the error it expects is a success; the error text is
// kept in the result either way.
func (s *Simulator) Apply(ctx context.Context, index int, op model.ScenarioOp) (model.OpResult, error) {
	res := model.OpResult{Index: index, Op: op.Op}
	opErr := s.dispatch(ctx, op, &res)
	s.ledger.Commit()

	slot0 := s.engine.Slot0()
	res.Timestamp = s.clock.BlockTimestamp()
	res.Tick = slot0.Tick
	res.SqrtPriceX96 = slot0.SqrtPriceX96.Dec()
	res.Liquidity = s.engine.Liquidity().String()
	if opErr != nil {
		res.Error = opErr.Error()
	}

	switch {
	case op.ExpectError == "" && opErr != nil:
		return res, fmt.Errorf("op %d %s: %w", index, op.Op, opErr)
	case op.ExpectError != "" && opErr == nil:
		return res, fmt.Errorf("op %d %s: %w: succeeded, expected %q", index, op.Op, ErrUnexpectedOutcome, op.ExpectError)
	case op.ExpectError != "" && !matchesKind(opErr, op.ExpectError):
		return res, fmt.Errorf("op %d %s: %w: got %w, expected %q", index, op.Op, ErrUnexpectedOutcome, opErr, op.ExpectError)
	}
	if opErr != nil {
		s.logger.Debug("op failed as expected", zap.Int("index", index), zap.String("op", op.Op), zap.Error(opErr))
	}
	return res, nil
}

func (s *Simulator) dispatch(ctx context.Context, op model.ScenarioOp, res *model.OpResult) error {
	sender, err := parseAddress("sender", op.Sender, DefaultSender)
	if err != nil {
		return err
	}
	recipient, err := parseAddress("recipient", op.Recipient, sender)
	if err != nil {
		return err
	}

	switch op.Op {
	case model.OpInitialize:
		price, err := parseAmount("sqrt_price_x96", op.SqrtPriceX96)
		if err != nil {
			return err
		}
		return s.engine.Initialize(price)

	case model.OpMint:
		amount, err := parseLiquidity("amount", op.Amount)
		if err != nil {
			return err
		}
		a0, a1, err := s.engine.Mint(sender, pool.MintParams{
			Recipient: recipient,
			TickLower: op.TickLower,
			TickUpper: op.TickUpper,
			Amount:    amount,
			Callback: func(owed0, owed1 *uint256.Int, _ []byte) error {
				return s.pay(sender, owed0, owed1)
			},
		})
		if err != nil {
			return err
		}
		res.Amount0, res.Amount1 = a0.Dec(), a1.Dec()
		return nil

	case model.OpBurn:
		amount, err := parseLiquidity("amount", op.Amount)
		if err != nil {
			return err
		}
		a0, a1, err := s.engine.Burn(sender, op.TickLower, op.TickUpper, amount)
		if err != nil {
			return err
		}
		res.Amount0, res.Amount1 = a0.Dec(), a1.Dec()
		return nil

	case model.OpCollect:
		r0, r1, err := requested(op)
		if err != nil {
			return err
		}
		a0, a1, err := s.engine.Collect(sender, recipient, op.TickLower, op.TickUpper, r0, r1)
		if err != nil {
			return err
		}
		res.Amount0, res.Amount1 = a0.String(), a1.String()
		return nil

	case model.OpSwap:
		specified, err := fullmath.ParseSigned(op.AmountSpecified)
		if err != nil {
			return err
		}
		limit, err := s.swapLimit(op)
		if err != nil {
			return err
		}
		a0, a1, err := s.engine.Swap(sender, pool.SwapParams{
			Recipient:         recipient,
			ZeroForOne:        op.ZeroForOne,
			AmountSpecified:   specified,
			SqrtPriceLimitX96: limit,
			Callback: func(delta0, delta1 *uint256.Int, _ []byte) error {
				return s.pay(sender, positive(delta0), positive(delta1))
			},
		})
		if err != nil {
			return err
		}
		res.Amount0, res.Amount1 = fullmath.SignedString(a0), fullmath.SignedString(a1)
		return nil

	case model.OpFlash:
		a0, err := parseAmount("amount0", op.Amount0)
		if err != nil {
			return err
		}
		a1, err := parseAmount("amount1", op.Amount1)
		if err != nil {
			return err
		}
		return s.engine.Flash(sender, pool.FlashParams{
			Recipient: recipient,
			Amount0:   a0,
			Amount1:   a1,
			Callback: func(fee0, fee1 *uint256.Int, _ []byte) error {
				res.Amount0, res.Amount1 = fee0.Dec(), fee1.Dec()
				return s.pay(sender, new(uint256.Int).Add(a0, fee0), new(uint256.Int).Add(a1, fee1))
			},
		})

	case model.OpAdvance:
		s.clock.Advance(op.Seconds)
		return nil

	case model.OpObserve:
		if op.TickLower != op.TickUpper {
			inside, err := s.engine.SnapshotCumulativesInside(op.TickLower, op.TickUpper)
			if err != nil {
				return err
			}
			res.TickCumulatives = []int64{inside.TickCumulative}
			res.SecondsPerLiquidityCumulativeX128s = []string{inside.SecondsPerLiquidityInsideX128.Dec()}
			res.SecondsInside = inside.SecondsInside
			return nil
		}
		ticks, spl, err := s.engine.Observe(op.SecondsAgos)
		if err != nil {
			return err
		}
		res.TickCumulatives = ticks
		res.SecondsPerLiquidityCumulativeX128s = make([]string, len(spl))
		for i, v := range spl {
			res.SecondsPerLiquidityCumulativeX128s[i] = v.Dec()
		}
		return nil

	case model.OpSnapshot:
		if s.snapshots == nil {
			return nil
		}
		if err := s.snapshots.InsertSnapshot(ctx, s.Snapshot()); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		return nil

	case model.OpSetFeeProtocol:
		return s.engine.SetFeeProtocol(sender, op.FeeProtocol0, op.FeeProtocol1)

	case model.OpCollectProtocol:
		r0, r1, err := requested(op)
		if err != nil {
			return err
		}
		a0, a1, err := s.engine.CollectProtocol(sender, recipient, r0, r1)
		if err != nil {
			return err
		}
		res.Amount0, res.Amount1 = a0.String(), a1.String()
		return nil

	case model.OpIncreaseCardinality:
		return s.engine.IncreaseObservationCardinalityNext(op.CardinalityNext)

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

// swapLimit defaults to the far end of the price range in the swap direction.
func (s *Simulator) swapLimit(op model.ScenarioOp) (*uint256.Int, error) {
	if op.SqrtPriceLimitX96 != "" {
		return parseAmount("sqrt_price_limit_x96", op.SqrtPriceLimitX96)
	}
	return extremeLimit(op.ZeroForOne), nil
}

// pay mints what the payer owes and moves it into the pool.
func (s *Simulator) pay(payer common.Address, amount0, amount1 *uint256.Int) error {
	return payInto(s.ledger, s.cfg.Pool, payer, amount0, amount1)
}

// requested reads collect amounts; empty means everything owed.
func requested(op model.ScenarioOp) (r0, r1 uint128.Uint128, err error) {
	r0, r1 = uint128.Max, uint128.Max
	if op.Amount0 != "" {
		if r0, err = parseLiquidity("amount0", op.Amount0); err != nil {
			return
		}
	}
	if op.Amount1 != "" {
		if r1, err = parseLiquidity("amount1", op.Amount1); err != nil {
			return
		}
	}
	return r0, r1, nil
}
