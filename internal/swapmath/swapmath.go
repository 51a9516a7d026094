// Package swapmath computes a single step of the swap loop: how far the price moves toward a
// target and how much is paid in, paid out and taken as fee on the way.
package swapmath

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/sqrtprice"
	"liquidityEngine/internal/types"
)

// FeeDenominator is the fee unit: fees are expressed in hundredths of a bip.
const FeeDenominator = 1_000_000

// Step is the outcome of one swap step.
type Step struct {
	SqrtPriceNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep moves the price from sqrtRatioCurrentX96 toward sqrtRatioTargetX96 with the
// given liquidity. amountRemaining is a two's complement int256: positive for exact input,
// negative for exact output. The direction follows from the relative order of the prices.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96 *uint256.Int, liquidity uint128.Uint128, amountRemaining *uint256.Int, feePips uint32) (Step, error) {
	if feePips >= FeeDenominator {
		return Step{}, errorsmod.Wrapf(types.ErrInvalidInput, "fee %d out of range", feePips)
	}
	zeroForOne := !sqrtRatioCurrentX96.Lt(sqrtRatioTargetX96)
	exactIn := !fullmath.IsNegative(amountRemaining)

	var (
		amountIn, amountOut *uint256.Int
		next                *uint256.Int
		err                 error
	)
	feeComplement := uint256.NewInt(uint64(FeeDenominator - feePips))
	denominator := uint256.NewInt(FeeDenominator)

	if exactIn {
		remainingLessFee, err := fullmath.MulDiv(amountRemaining, feeComplement, denominator)
		if err != nil {
			return Step{}, err
		}
		if zeroForOne {
			amountIn, err = sqrtprice.Amount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			amountIn, err = sqrtprice.Amount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return Step{}, err
		}
		if !remainingLessFee.Lt(amountIn) {
			next = new(uint256.Int).Set(sqrtRatioTargetX96)
		} else if next, err = sqrtprice.NextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, remainingLessFee, zeroForOne); err != nil {
			return Step{}, err
		}
	} else {
		wanted := new(uint256.Int).Neg(amountRemaining)
		if zeroForOne {
			amountOut, err = sqrtprice.Amount1Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			amountOut, err = sqrtprice.Amount0Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return Step{}, err
		}
		if !wanted.Lt(amountOut) {
			next = new(uint256.Int).Set(sqrtRatioTargetX96)
		} else if next, err = sqrtprice.NextSqrtPriceFromOutput(sqrtRatioCurrentX96, liquidity, wanted, zeroForOne); err != nil {
			return Step{}, err
		}
	}

	reachedTarget := next.Eq(sqrtRatioTargetX96)

	if zeroForOne {
		if !reachedTarget || !exactIn {
			if amountIn, err = sqrtprice.Amount0Delta(next, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return Step{}, err
			}
		}
		if !reachedTarget || exactIn {
			if amountOut, err = sqrtprice.Amount1Delta(next, sqrtRatioCurrentX96, liquidity, false); err != nil {
				return Step{}, err
			}
		}
	} else {
		if !reachedTarget || !exactIn {
			if amountIn, err = sqrtprice.Amount1Delta(sqrtRatioCurrentX96, next, liquidity, true); err != nil {
				return Step{}, err
			}
		}
		if !reachedTarget || exactIn {
			if amountOut, err = sqrtprice.Amount0Delta(sqrtRatioCurrentX96, next, liquidity, false); err != nil {
				return Step{}, err
			}
		}
	}

	// the output of an exact-output step never exceeds what was asked for
	if !exactIn {
		if wanted := new(uint256.Int).Neg(amountRemaining); amountOut.Gt(wanted) {
			amountOut = wanted
		}
	}

	var feeAmount *uint256.Int
	if exactIn && !reachedTarget {
		// the whole remainder is consumed; what did not move the price is fee
		feeAmount = new(uint256.Int).Sub(amountRemaining, amountIn)
	} else if feeAmount, err = fullmath.MulDivRoundingUp(amountIn, uint256.NewInt(uint64(feePips)), feeComplement); err != nil {
		return Step{}, err
	}

	return Step{
		SqrtPriceNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        feeAmount,
	}, nil
}
