package pool

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/liquiditymath"
	"liquidityEngine/internal/oracle"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/sqrtprice"
	"liquidityEngine/internal/tick"
	"liquidityEngine/internal/tickmath"
	"liquidityEngine/internal/types"
)

// MintCallback must pay the owed amounts to the pool before returning.
type MintCallback func(amount0Owed, amount1Owed *uint256.Int, data []byte) error

// MintParams describe liquidity added for Recipient over [TickLower, TickUpper).
type MintParams struct {
	Recipient common.Address
	TickLower int32
	TickUpper int32
	Amount    uint128.Uint128
	Data      []byte
	Callback  MintCallback
}

// Initialize sets the starting price. It can only be called once.
func (e *Engine) Initialize(sqrtPriceX96 *uint256.Int) error {
	return e.execute("initialize", func() error {
		if e.head.slot0.Initialized {
			return errorsmod.Wrapf(types.ErrAlreadyInitialized, "pool %s", e.cfg.Address)
		}
		t, err := tickmath.TickAtSqrtRatio(sqrtPriceX96)
		if err != nil {
			return err
		}
		cardinality, cardinalityNext := oracle.Initialize(e.observations, e.clock.BlockTimestamp())
		e.head.slot0 = Slot0{
			SqrtPriceX96:               *sqrtPriceX96,
			Tick:                       t,
			ObservationCardinality:     cardinality,
			ObservationCardinalityNext: cardinalityNext,
			Initialized:                true,
		}
		e.emit(InitializeEvent{SqrtPriceX96: new(uint256.Int).Set(sqrtPriceX96), Tick: t})
		return nil
	})
}

func (e *Engine) checkTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return errorsmod.Wrapf(types.ErrInvalidInput, "tick lower %d not below tick upper %d", tickLower, tickUpper)
	}
	if tickLower < tickmath.MinTick {
		return errorsmod.Wrapf(types.ErrInvalidInput, "tick lower %d below %d", tickLower, tickmath.MinTick)
	}
	if tickUpper > tickmath.MaxTick {
		return errorsmod.Wrapf(types.ErrInvalidInput, "tick upper %d above %d", tickUpper, tickmath.MaxTick)
	}
	if tickLower%e.cfg.TickSpacing != 0 || tickUpper%e.cfg.TickSpacing != 0 {
		return errorsmod.Wrapf(types.ErrInvalidInput, "ticks %d, %d not multiples of spacing %d", tickLower, tickUpper, e.cfg.TickSpacing)
	}
	return nil
}

// Mint adds liquidity. The callback is asked for the owed amounts and the pool verifies its own
// balances afterwards.
func (e *Engine) Mint(sender common.Address, p MintParams) (amount0, amount1 *uint256.Int, err error) {
	err = e.execute("mint", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if p.Amount.IsZero() {
			return errorsmod.Wrap(types.ErrInvalidInput, "mint amount is zero")
		}
		delta := fullmath.FromUint128(p.Amount)
		if !fullmath.FitsInt128(delta) {
			return errorsmod.Wrapf(types.ErrInvalidInput, "mint amount %s exceeds int128", p.Amount)
		}
		if err := e.checkTicks(p.TickLower, p.TickUpper); err != nil {
			return err
		}
		if p.Callback == nil {
			return errorsmod.Wrap(types.ErrInvalidInput, "mint callback is nil")
		}

		if _, amount0, amount1, err = e.modifyPosition(p.Recipient, p.TickLower, p.TickUpper, delta); err != nil {
			return err
		}

		var balance0Before, balance1Before *uint256.Int
		if !amount0.IsZero() {
			balance0Before = e.balance0()
		}
		if !amount1.IsZero() {
			balance1Before = e.balance1()
		}
		if err := p.Callback(new(uint256.Int).Set(amount0), new(uint256.Int).Set(amount1), p.Data); err != nil {
			return errorsmod.Wrap(err, "mint callback")
		}
		if err := e.requirePaid(e.cfg.Token0, balance0Before, amount0, e.balance0); err != nil {
			return err
		}
		if err := e.requirePaid(e.cfg.Token1, balance1Before, amount1, e.balance1); err != nil {
			return err
		}

		e.emit(MintEvent{
			Sender:    sender,
			Owner:     p.Recipient,
			TickLower: p.TickLower,
			TickUpper: p.TickUpper,
			Amount:    p.Amount,
			Amount0:   amount0,
			Amount1:   amount1,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// requirePaid checks that the pool balance grew by at least owed since before was read.
func (e *Engine) requirePaid(asset common.Address, before, owed *uint256.Int, balance func() *uint256.Int) error {
	if owed.IsZero() {
		return nil
	}
	want, overflow := new(uint256.Int).AddOverflow(before, owed)
	after := balance()
	if overflow || after.Lt(want) {
		return errorsmod.Wrapf(types.ErrInsufficientPayment, "asset %s: owed %s, received %s", asset, owed.Dec(), new(uint256.Int).Sub(after, before).Dec())
	}
	return nil
}

// Burn removes liquidity from the sender's position. The released amounts are credited to the
// position's tokens owed; Collect pays them out. Burning zero updates the fees owed.
func (e *Engine) Burn(owner common.Address, tickLower, tickUpper int32, amount uint128.Uint128) (amount0, amount1 *uint256.Int, err error) {
	err = e.execute("burn", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if err := e.checkTicks(tickLower, tickUpper); err != nil {
			return err
		}
		delta := fullmath.FromUint128(amount)
		if !fullmath.FitsInt128(delta) {
			return errorsmod.Wrapf(types.ErrInvalidInput, "burn amount %s exceeds int128", amount)
		}
		delta.Neg(delta)

		key, signed0, signed1, err := e.modifyPosition(owner, tickLower, tickUpper, delta)
		if err != nil {
			return err
		}
		amount0 = signed0.Neg(signed0)
		amount1 = signed1.Neg(signed1)

		if !amount0.IsZero() || !amount1.IsZero() {
			info := e.positions.Get(key)
			info.TokensOwed0 = info.TokensOwed0.AddWrap(fullmath.TruncateUint128(amount0))
			info.TokensOwed1 = info.TokensOwed1.AddWrap(fullmath.TruncateUint128(amount1))
			e.positions.Set(key, info)
		}

		e.emit(BurnEvent{
			Owner:     owner,
			TickLower: tickLower,
			TickUpper: tickUpper,
			Amount:    amount,
			Amount0:   amount0,
			Amount1:   amount1,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Collect pays out up to the requested amounts of the owner's tokens owed to recipient.
func (e *Engine) Collect(owner, recipient common.Address, tickLower, tickUpper int32, requested0, requested1 uint128.Uint128) (amount0, amount1 uint128.Uint128, err error) {
	err = e.execute("collect", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		key := position.Key(owner, tickLower, tickUpper)
		info := e.positions.Get(key)

		amount0 = minUint128(requested0, info.TokensOwed0)
		amount1 = minUint128(requested1, info.TokensOwed1)

		if !amount0.IsZero() {
			info.TokensOwed0 = info.TokensOwed0.Sub(amount0)
			if err := e.ledger.Transfer(e.cfg.Token0, e.cfg.Address, recipient, fullmath.FromUint128(amount0)); err != nil {
				return err
			}
		}
		if !amount1.IsZero() {
			info.TokensOwed1 = info.TokensOwed1.Sub(amount1)
			if err := e.ledger.Transfer(e.cfg.Token1, e.cfg.Address, recipient, fullmath.FromUint128(amount1)); err != nil {
				return err
			}
		}
		if !amount0.IsZero() || !amount1.IsZero() {
			e.positions.Set(key, info)
		}

		e.emit(CollectEvent{
			Owner:     owner,
			Recipient: recipient,
			TickLower: tickLower,
			TickUpper: tickUpper,
			Amount0:   amount0,
			Amount1:   amount1,
		})
		return nil
	})
	if err != nil {
		return uint128.Zero, uint128.Zero, err
	}
	return amount0, amount1, nil
}

func minUint128(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

// modifyPosition applies a signed liquidity delta to a position and returns the signed token
// amounts owed to (positive) or by (negative) the pool.
func (e *Engine) modifyPosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta *uint256.Int) (key common.Hash, amount0, amount1 *uint256.Int, err error) {
	slot0 := e.head.slot0

	if key, err = e.updatePosition(owner, tickLower, tickUpper, liquidityDelta, slot0.Tick); err != nil {
		return key, nil, nil, err
	}

	amount0, amount1 = new(uint256.Int), new(uint256.Int)
	if liquidityDelta.IsZero() {
		return key, amount0, amount1, nil
	}

	sqrtLower, err := tickmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		return key, nil, nil, err
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return key, nil, nil, err
	}

	switch {
	case slot0.Tick < tickLower:
		// range above the price: only token0 is needed
		amount0, err = sqrtprice.SignedAmount0Delta(sqrtLower, sqrtUpper, liquidityDelta)
	case slot0.Tick < tickUpper:
		liquidityBefore := e.head.liquidity
		e.head.slot0.ObservationIndex, e.head.slot0.ObservationCardinality = oracle.Write(
			e.observations,
			slot0.ObservationIndex,
			e.clock.BlockTimestamp(),
			slot0.Tick,
			liquidityBefore,
			slot0.ObservationCardinality,
			slot0.ObservationCardinalityNext,
		)
		if amount0, err = sqrtprice.SignedAmount0Delta(&slot0.SqrtPriceX96, sqrtUpper, liquidityDelta); err != nil {
			return key, nil, nil, err
		}
		if amount1, err = sqrtprice.SignedAmount1Delta(sqrtLower, &slot0.SqrtPriceX96, liquidityDelta); err != nil {
			return key, nil, nil, err
		}
		e.head.liquidity, err = liquiditymath.AddDelta(liquidityBefore, liquidityDelta)
	default:
		// range below the price: only token1 is needed
		amount1, err = sqrtprice.SignedAmount1Delta(sqrtLower, sqrtUpper, liquidityDelta)
	}
	if err != nil {
		return key, nil, nil, err
	}
	return key, amount0, amount1, nil
}

func (e *Engine) globals(now uint32, tickCumulative int64, secondsPerLiquidity *uint256.Int) tick.Globals {
	return tick.Globals{
		FeeGrowth0X128:                    e.head.feeGrowthGlobal0X128,
		FeeGrowth1X128:                    e.head.feeGrowthGlobal1X128,
		SecondsPerLiquidityCumulativeX128: *secondsPerLiquidity,
		TickCumulative:                    tickCumulative,
		Time:                              now,
	}
}

func (e *Engine) updatePosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta *uint256.Int, currentTick int32) (common.Hash, error) {
	key := position.Key(owner, tickLower, tickUpper)
	fg0, fg1 := &e.head.feeGrowthGlobal0X128, &e.head.feeGrowthGlobal1X128

	var flippedLower, flippedUpper bool
	if !liquidityDelta.IsZero() {
		now := e.clock.BlockTimestamp()
		slot0 := e.head.slot0
		tickCumulative, secondsPerLiquidity, err := oracle.ObserveSingle(
			e.observations, now, 0, slot0.Tick, slot0.ObservationIndex, e.head.liquidity, slot0.ObservationCardinality,
		)
		if err != nil {
			return key, err
		}
		g := e.globals(now, tickCumulative, secondsPerLiquidity)

		if flippedLower, err = tick.Update(e.ticks, tickLower, currentTick, liquidityDelta, g, false, e.maxLiquidityPerTick); err != nil {
			return key, err
		}
		if flippedUpper, err = tick.Update(e.ticks, tickUpper, currentTick, liquidityDelta, g, true, e.maxLiquidityPerTick); err != nil {
			return key, err
		}
		if flippedLower {
			if err := tick.FlipTick(e.bitmap, tickLower, e.cfg.TickSpacing); err != nil {
				return key, err
			}
		}
		if flippedUpper {
			if err := tick.FlipTick(e.bitmap, tickUpper, e.cfg.TickSpacing); err != nil {
				return key, err
			}
		}
	}

	inside0, inside1 := tick.FeeGrowthInside(e.ticks, tickLower, tickUpper, currentTick, fg0, fg1)
	info, err := position.Update(e.positions.Get(key), liquidityDelta, inside0, inside1)
	if err != nil {
		return key, err
	}
	e.positions.Set(key, info)

	// ticks that lost their last reference are dropped
	if fullmath.IsNegative(liquidityDelta) {
		if flippedLower {
			tick.Clear(e.ticks, tickLower)
		}
		if flippedUpper {
			tick.Clear(e.ticks, tickUpper)
		}
	}
	return key, nil
}
