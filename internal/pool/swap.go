package pool

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/liquiditymath"
	"liquidityEngine/internal/oracle"
	"liquidityEngine/internal/swapmath"
	"liquidityEngine/internal/tick"
	"liquidityEngine/internal/tickmath"
	"liquidityEngine/internal/types"
)

// SwapCallback must pay the positive delta to the pool. Deltas are two's complement: positive
// is owed to the pool, negative has already been sent to the recipient.
type SwapCallback func(amount0Delta, amount1Delta *uint256.Int, data []byte) error

// SwapParams describe a swap. AmountSpecified is a two's complement int256: positive for exact
// input, negative for exact output.
type SwapParams struct {
	Recipient         common.Address
	ZeroForOne        bool
	AmountSpecified   *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
	Data              []byte
	Callback          SwapCallback
}

type swapState struct {
	remaining    uint256.Int
	calculated   uint256.Int
	sqrtPriceX96 uint256.Int
	tick         int32
	// fee growth of the input token
	feeGrowthGlobalX128 uint256.Int
	protocolFee         uint128.Uint128
	liquidity           uint128.Uint128
	feePaid             uint256.Int
}

// Swap trades token0 for token1 (ZeroForOne) or the reverse until the specified amount is used
// up or the price reaches the limit. It returns the signed pool balance deltas.
func (e *Engine) Swap(sender common.Address, p SwapParams) (amount0, amount1 *uint256.Int, err error) {
	err = e.execute("swap", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if p.AmountSpecified == nil || p.AmountSpecified.IsZero() {
			amount0, amount1 = new(uint256.Int), new(uint256.Int)
			return nil
		}
		if p.Callback == nil {
			return errorsmod.Wrap(types.ErrInvalidInput, "swap callback is nil")
		}
		amount0, amount1, err = e.swap(sender, p)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (e *Engine) checkPriceLimit(limit *uint256.Int, zeroForOne bool) error {
	price := &e.head.slot0.SqrtPriceX96
	if limit == nil {
		return errorsmod.Wrap(types.ErrInvalidInput, "price limit is nil")
	}
	if zeroForOne {
		if !limit.Lt(price) || !limit.Gt(tickmath.MinSqrtRatio) {
			return errorsmod.Wrapf(types.ErrInvalidInput, "price limit %s not in (%s, %s)", limit.Dec(), tickmath.MinSqrtRatio.Dec(), price.Dec())
		}
		return nil
	}
	if !limit.Gt(price) || !limit.Lt(tickmath.MaxSqrtRatio) {
		return errorsmod.Wrapf(types.ErrInvalidInput, "price limit %s not in (%s, %s)", limit.Dec(), price.Dec(), tickmath.MaxSqrtRatio.Dec())
	}
	return nil
}

// requireReachableLiquidity fails unless an initialized tick lies between the current tick and
// the price limit, so a swap through a region without liquidity always ends somewhere.
func (e *Engine) requireReachableLiquidity(from int32, limit *uint256.Int, zeroForOne bool) error {
	limitTick, err := tickmath.TickAtSqrtRatio(limit)
	if err != nil {
		return err
	}
	if zeroForOne {
		next, ok := tick.NextInitializedTick(e.bitmap, from, e.cfg.TickSpacing, true, limitTick)
		if ok {
			sqrtNext, err := tickmath.SqrtRatioAtTick(next)
			if err != nil {
				return err
			}
			if !sqrtNext.Lt(limit) {
				return nil
			}
		}
	} else if _, ok := tick.NextInitializedTick(e.bitmap, from, e.cfg.TickSpacing, false, limitTick); ok {
		return nil
	}
	return errorsmod.Wrapf(types.ErrInsufficientLiquidity, "no liquidity between tick %d and price limit %s", from, limit.Dec())
}

func (e *Engine) swap(sender common.Address, p SwapParams) (amount0, amount1 *uint256.Int, err error) {
	zeroForOne := p.ZeroForOne
	limit := p.SqrtPriceLimitX96
	if err := e.checkPriceLimit(limit, zeroForOne); err != nil {
		return nil, nil, err
	}

	slot0Start := e.head.slot0
	liquidityStart := e.head.liquidity
	now := e.clock.BlockTimestamp()
	exactInput := !fullmath.IsNegative(p.AmountSpecified)

	feeProtocol := slot0Start.FeeProtocol >> 4
	if zeroForOne {
		feeProtocol = slot0Start.FeeProtocol % 16
	}

	s := swapState{
		remaining:    *p.AmountSpecified,
		sqrtPriceX96: slot0Start.SqrtPriceX96,
		tick:         slot0Start.Tick,
		liquidity:    liquidityStart,
	}
	if zeroForOne {
		s.feeGrowthGlobalX128 = e.head.feeGrowthGlobal0X128
	} else {
		s.feeGrowthGlobalX128 = e.head.feeGrowthGlobal1X128
	}

	// oracle values at the start of the swap, computed on the first crossing
	var (
		observed            bool
		tickCumulative      int64
		secondsPerLiquidity *uint256.Int
	)

	for !s.remaining.IsZero() && !s.sqrtPriceX96.Eq(limit) {
		if s.liquidity.IsZero() {
			if err := e.requireReachableLiquidity(s.tick, limit, zeroForOne); err != nil {
				return nil, nil, err
			}
		}

		priceStart := s.sqrtPriceX96
		tickNext, initialized := tick.NextInitializedTickWithinOneWord(e.bitmap, s.tick, e.cfg.TickSpacing, zeroForOne)
		if tickNext < tickmath.MinTick {
			tickNext = tickmath.MinTick
		} else if tickNext > tickmath.MaxTick {
			tickNext = tickmath.MaxTick
		}
		sqrtNext, err := tickmath.SqrtRatioAtTick(tickNext)
		if err != nil {
			return nil, nil, err
		}

		target := sqrtNext
		if (zeroForOne && sqrtNext.Lt(limit)) || (!zeroForOne && sqrtNext.Gt(limit)) {
			target = limit
		}
		step, err := swapmath.ComputeSwapStep(&s.sqrtPriceX96, target, s.liquidity, &s.remaining, e.cfg.Fee)
		if err != nil {
			return nil, nil, err
		}
		s.sqrtPriceX96 = *step.SqrtPriceNextX96

		amountOut, err := fullmath.ToInt256(step.AmountOut)
		if err != nil {
			return nil, nil, err
		}
		spent, err := fullmath.ToInt256(new(uint256.Int).Add(step.AmountIn, step.FeeAmount))
		if err != nil {
			return nil, nil, err
		}
		if exactInput {
			s.remaining.Sub(&s.remaining, spent)
			s.calculated.Sub(&s.calculated, amountOut)
		} else {
			s.remaining.Add(&s.remaining, amountOut)
			s.calculated.Add(&s.calculated, spent)
		}

		s.feePaid.Add(&s.feePaid, step.FeeAmount)
		feeAmount := step.FeeAmount
		if feeProtocol > 0 {
			cut := new(uint256.Int).Div(feeAmount, uint256.NewInt(uint64(feeProtocol)))
			feeAmount = new(uint256.Int).Sub(feeAmount, cut)
			s.protocolFee = s.protocolFee.AddWrap(fullmath.TruncateUint128(cut))
		}
		if !s.liquidity.IsZero() {
			growth, err := fullmath.MulDiv(feeAmount, fullmath.Q128, fullmath.FromUint128(s.liquidity))
			if err != nil {
				return nil, nil, err
			}
			s.feeGrowthGlobalX128.Add(&s.feeGrowthGlobalX128, growth)
		}

		switch {
		case s.sqrtPriceX96.Eq(sqrtNext):
			if initialized {
				if !observed {
					tickCumulative, secondsPerLiquidity, err = oracle.ObserveSingle(
						e.observations, now, 0, slot0Start.Tick, slot0Start.ObservationIndex, liquidityStart, slot0Start.ObservationCardinality,
					)
					if err != nil {
						return nil, nil, err
					}
					observed = true
				}
				g := e.globals(now, tickCumulative, secondsPerLiquidity)
				if zeroForOne {
					g.FeeGrowth0X128 = s.feeGrowthGlobalX128
				} else {
					g.FeeGrowth1X128 = s.feeGrowthGlobalX128
				}
				liquidityNet := tick.Cross(e.ticks, tickNext, g)
				// moving left the net is applied in reverse
				if zeroForOne {
					liquidityNet.Neg(liquidityNet)
				}
				if s.liquidity, err = liquiditymath.AddDelta(s.liquidity, liquidityNet); err != nil {
					return nil, nil, err
				}
				e.crossed++
			}
			if zeroForOne {
				s.tick = tickNext - 1
			} else {
				s.tick = tickNext
			}
		case !s.sqrtPriceX96.Eq(&priceStart):
			if s.tick, err = tickmath.TickAtSqrtRatio(&s.sqrtPriceX96); err != nil {
				return nil, nil, err
			}
		}
	}

	if s.tick != slot0Start.Tick {
		e.head.slot0.ObservationIndex, e.head.slot0.ObservationCardinality = oracle.Write(
			e.observations,
			slot0Start.ObservationIndex,
			now,
			slot0Start.Tick,
			liquidityStart,
			slot0Start.ObservationCardinality,
			slot0Start.ObservationCardinalityNext,
		)
		e.head.slot0.Tick = s.tick
	}
	e.head.slot0.SqrtPriceX96 = s.sqrtPriceX96
	e.head.liquidity = s.liquidity

	if zeroForOne {
		e.head.feeGrowthGlobal0X128 = s.feeGrowthGlobalX128
		e.head.protocolFees.Token0 = e.head.protocolFees.Token0.AddWrap(s.protocolFee)
	} else {
		e.head.feeGrowthGlobal1X128 = s.feeGrowthGlobalX128
		e.head.protocolFees.Token1 = e.head.protocolFees.Token1.AddWrap(s.protocolFee)
	}

	specifiedUsed := new(uint256.Int).Sub(p.AmountSpecified, &s.remaining)
	calculated := new(uint256.Int).Set(&s.calculated)
	if zeroForOne == exactInput {
		amount0, amount1 = specifiedUsed, calculated
	} else {
		amount0, amount1 = calculated, specifiedUsed
	}

	if zeroForOne {
		err = e.settleSwap(p, e.cfg.Token1, amount1, e.cfg.Token0, amount0, e.balance0, amount0, amount1)
	} else {
		err = e.settleSwap(p, e.cfg.Token0, amount0, e.cfg.Token1, amount1, e.balance1, amount0, amount1)
	}
	if err != nil {
		return nil, nil, err
	}

	e.emit(SwapEvent{
		Sender:       sender,
		Recipient:    p.Recipient,
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: new(uint256.Int).Set(&e.head.slot0.SqrtPriceX96),
		Liquidity:    e.head.liquidity,
		Tick:         e.head.slot0.Tick,
		FeeAmount:    new(uint256.Int).Set(&s.feePaid),
		TicksCrossed: e.crossed,
	})
	return amount0, amount1, nil
}

// settleSwap sends the output to the recipient, asks the callback for the input and checks
// that the input arrived.
func (e *Engine) settleSwap(p SwapParams, outAsset common.Address, outDelta *uint256.Int, inAsset common.Address, inDelta *uint256.Int, inBalance func() *uint256.Int, amount0, amount1 *uint256.Int) error {
	if fullmath.IsNegative(outDelta) {
		if err := e.ledger.Transfer(outAsset, e.cfg.Address, p.Recipient, new(uint256.Int).Neg(outDelta)); err != nil {
			return errorsmod.Wrap(err, "pay swap output")
		}
	}
	before := inBalance()
	if err := p.Callback(new(uint256.Int).Set(amount0), new(uint256.Int).Set(amount1), p.Data); err != nil {
		return errorsmod.Wrap(err, "swap callback")
	}
	if fullmath.IsNegative(inDelta) {
		return nil
	}
	return e.requirePaid(inAsset, before, inDelta, inBalance)
}
