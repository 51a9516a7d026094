package aggregate

import (
	"math/big"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/pool"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	WindowStart  uint64
	WindowEnd    uint64
	SwapCount    uint64
	TicksCrossed uint64
	Volume0      *big.Int
	Volume1      *big.Int
	Fee0         *big.Int
	Fee1         *big.Int
	// OpenSqrtPriceX96 is the pool price when the window opened, nil before initialization.
	OpenSqrtPriceX96 *uint256.Int
	LastBlock        uint64
	// Approximated is set when a swap carried no exact fee and the fee tier was applied.
	Approximated bool
}

func NewAccumulator(windowStart, windowEnd uint64, openSqrtPriceX96 *uint256.Int) *Accumulator {
	acc := &Accumulator{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     big.NewInt(0),
		Volume1:     big.NewInt(0),
		Fee0:        big.NewInt(0),
		Fee1:        big.NewInt(0),
	}
	if openSqrtPriceX96 != nil {
		acc.OpenSqrtPriceX96 = new(uint256.Int).Set(openSqrtPriceX96)
	}
	return acc
}

// AddSwap adds one swap. feeTier is used only when the event has no exact fee.
func (a *Accumulator) AddSwap(swap pool.SwapEvent, feeTier uint32) {
	amount0 := fullmath.ToSignedBig(swap.Amount0)
	amount1 := fullmath.ToSignedBig(swap.Amount1)
	absAdd(a.Volume0, amount0)
	absAdd(a.Volume1, amount1)
	a.SwapCount++
	if swap.TicksCrossed > 0 {
		a.TicksCrossed += uint64(swap.TicksCrossed)
	}

	// the input side is the one paid into the pool
	in0 := amount0.Sign() > 0
	in1 := amount1.Sign() > 0
	if swap.FeeAmount != nil {
		switch {
		case in0:
			a.Fee0.Add(a.Fee0, swap.FeeAmount.ToBig())
		case in1:
			a.Fee1.Add(a.Fee1, swap.FeeAmount.ToBig())
		}
		return
	}
	if feeTier == 0 {
		return
	}
	a.Approximated = true
	if in0 && amount1.Sign() < 0 {
		a.Fee0.Add(a.Fee0, feeFromAmount(amount0, feeTier))
	} else if in1 && amount0.Sign() < 0 {
		a.Fee1.Add(a.Fee1, feeFromAmount(amount1, feeTier))
	}
}

func absAdd(target *big.Int, value *big.Int) {
	if value == nil || target == nil {
		return
	}
	abs := new(big.Int).Abs(value)
	target.Add(target, abs)
}

func feeFromAmount(amountIn *big.Int, feeRate uint32) *big.Int {
	if amountIn == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Abs(amountIn)
	fee.Mul(fee, big.NewInt(int64(feeRate)))
	fee.Div(fee, big.NewInt(1_000_000))
	return fee
}
