package sqrtprice

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/types"
)

// NextSqrtPriceFromInput returns the sqrt price after adding amountIn of token0
// (zeroForOne) or token1 to the pool. The result never rounds past the target.
func NextSqrtPriceFromInput(sqrtPX96 *uint256.Int, liquidity uint128.Uint128, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "zero sqrt price")
	}
	if liquidity.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "zero liquidity")
	}
	if zeroForOne {
		return nextFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return nextFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the sqrt price after removing amountOut of token1
// (zeroForOne) or token0 from the pool.
func NextSqrtPriceFromOutput(sqrtPX96 *uint256.Int, liquidity uint128.Uint128, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "zero sqrt price")
	}
	if liquidity.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "zero liquidity")
	}
	if zeroForOne {
		return nextFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return nextFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

// nextFromAmount0RoundingUp computes liquidity * sqrtP / (liquidity +- amount * sqrtP),
// falling back to liquidity / (liquidity / sqrtP + amount) when the product overflows.
func nextFromAmount0RoundingUp(sqrtPX96 *uint256.Int, liquidity uint128.Uint128, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtPX96), nil
	}
	numerator1 := new(uint256.Int).Lsh(fullmath.FromUint128(liquidity), fullmath.Resolution96)
	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtPX96)

	if add {
		if !overflow {
			denominator, carry := new(uint256.Int).AddOverflow(numerator1, product)
			if !carry {
				return fullmath.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
			}
		}
		denominator, carry := new(uint256.Int).AddOverflow(new(uint256.Int).Div(numerator1, sqrtPX96), amount)
		if carry {
			return nil, errorsmod.Wrap(types.ErrOverflow, "token0 input overflows price denominator")
		}
		return fullmath.DivRoundingUp(numerator1, denominator)
	}

	if overflow || !numerator1.Gt(product) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientLiquidity, "token0 output %s exceeds virtual reserves", amount.Dec())
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	next, err := fullmath.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if err != nil {
		return nil, err
	}
	if next.Gt(fullmath.MaxUint160) {
		return nil, errorsmod.Wrap(types.ErrOverflow, "sqrt price exceeds uint160")
	}
	return next, nil
}

// nextFromAmount1RoundingDown computes sqrtP +- amount / liquidity.
func nextFromAmount1RoundingDown(sqrtPX96 *uint256.Int, liquidity uint128.Uint128, amount *uint256.Int, add bool) (*uint256.Int, error) {
	liq := fullmath.FromUint128(liquidity)

	if add {
		var quotient *uint256.Int
		if !amount.Gt(fullmath.MaxUint160) {
			quotient = new(uint256.Int).Lsh(amount, fullmath.Resolution96)
			quotient.Div(quotient, liq)
		} else {
			var err error
			quotient, err = fullmath.MulDiv(amount, fullmath.Q96, liq)
			if err != nil {
				return nil, err
			}
		}
		next, carry := new(uint256.Int).AddOverflow(sqrtPX96, quotient)
		if carry || next.Gt(fullmath.MaxUint160) {
			return nil, errorsmod.Wrap(types.ErrOverflow, "token1 input overflows sqrt price")
		}
		return next, nil
	}

	var quotient *uint256.Int
	var err error
	if !amount.Gt(fullmath.MaxUint160) {
		quotient, err = fullmath.DivRoundingUp(new(uint256.Int).Lsh(amount, fullmath.Resolution96), liq)
	} else {
		quotient, err = fullmath.MulDivRoundingUp(amount, fullmath.Q96, liq)
	}
	if err != nil {
		if errorsmod.IsOf(err, types.ErrOverflow) {
			return nil, errorsmod.Wrapf(types.ErrInsufficientLiquidity, "token1 output %s exceeds virtual reserves", amount.Dec())
		}
		return nil, err
	}
	if !sqrtPX96.Gt(quotient) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientLiquidity, "token1 output %s exceeds virtual reserves", amount.Dec())
	}
	return new(uint256.Int).Sub(sqrtPX96, quotient), nil
}

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB), the token0 needed to
// move between the two prices. Argument order does not matter.
func Amount0Delta(sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidity uint128.Uint128, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if liquidity.IsZero() || sqrtRatioAX96.Eq(sqrtRatioBX96) {
		return new(uint256.Int), nil
	}
	if sqrtRatioAX96.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "zero sqrt price")
	}

	numerator1 := new(uint256.Int).Lsh(fullmath.FromUint128(liquidity), fullmath.Resolution96)
	numerator2 := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		inner, err := fullmath.MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		if err != nil {
			return nil, err
		}
		return fullmath.DivRoundingUp(inner, sqrtRatioAX96)
	}
	inner, err := fullmath.MulDiv(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return inner.Div(inner, sqrtRatioAX96), nil
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA), the token1 needed to move between
// the two prices. Argument order does not matter.
func Amount1Delta(sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidity uint128.Uint128, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if liquidity.IsZero() || sqrtRatioAX96.Eq(sqrtRatioBX96) {
		return new(uint256.Int), nil
	}
	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fullmath.MulDivRoundingUp(fullmath.FromUint128(liquidity), diff, fullmath.Q96)
	}
	return fullmath.MulDiv(fullmath.FromUint128(liquidity), diff, fullmath.Q96)
}

// SignedAmount0Delta returns the token0 owed for a signed int128 liquidity change: rounded
// up and positive when liquidity is added, rounded down and negative when removed.
func SignedAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (*uint256.Int, error) {
	return signedDelta(sqrtRatioAX96, sqrtRatioBX96, liquidity, Amount0Delta)
}

// SignedAmount1Delta is the token1 counterpart of SignedAmount0Delta.
func SignedAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (*uint256.Int, error) {
	return signedDelta(sqrtRatioAX96, sqrtRatioBX96, liquidity, Amount1Delta)
}

type deltaFunc func(a, b *uint256.Int, liquidity uint128.Uint128, roundUp bool) (*uint256.Int, error)

func signedDelta(a, b, liquidity *uint256.Int, delta deltaFunc) (*uint256.Int, error) {
	if !fullmath.FitsInt128(liquidity) {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "liquidity delta %s out of int128 range", fullmath.SignedString(liquidity))
	}
	if fullmath.IsNegative(liquidity) {
		abs := fullmath.TruncateUint128(new(uint256.Int).Neg(liquidity))
		amount, err := delta(a, b, abs, false)
		if err != nil {
			return nil, err
		}
		if _, err := fullmath.ToInt256(amount); err != nil {
			return nil, err
		}
		return amount.Neg(amount), nil
	}
	amount, err := delta(a, b, fullmath.TruncateUint128(liquidity), true)
	if err != nil {
		return nil, err
	}
	return fullmath.ToInt256(amount)
}
