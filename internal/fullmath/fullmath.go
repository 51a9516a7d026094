package fullmath

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/types"
)

// Fixed point resolutions.
const (
	Resolution96  = 96
	Resolution128 = 128
)

var (
	// Q96 is 2^96, the unit of a Q64.96 number.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), Resolution96)
	// Q128 is 2^128, the unit of a Q128.128 number.
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), Resolution128)

	MaxUint128 = new(uint256.Int).Sub(Q128, uint256.NewInt(1))
	MaxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))
	MaxUint256 = new(uint256.Int).SetAllOne()

	// MaxInt256 and MinInt128/MaxInt128 bound two's complement values held in a uint256.
	MaxInt256 = new(uint256.Int).Rsh(MaxUint256, 1)
	MaxInt128 = new(uint256.Int).Rsh(MaxUint128, 1)
	MinInt128 = new(uint256.Int).Neg(new(uint256.Int).Lsh(uint256.NewInt(1), 127))
)

// MulDiv computes floor(a*b/denominator) with a 512-bit intermediate product.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "mulDiv by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, errorsmod.Wrap(types.ErrOverflow, "mulDiv result exceeds 256 bits")
	}
	return z, nil
}

// MulDivRoundingUp computes ceil(a*b/denominator) with a 512-bit intermediate product.
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if !new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		if z.Eq(MaxUint256) {
			return nil, errorsmod.Wrap(types.ErrOverflow, "mulDiv rounding up exceeds 256 bits")
		}
		z.AddUint64(z, 1)
	}
	return z, nil
}

// DivRoundingUp computes ceil(x/y).
func DivRoundingUp(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "division by zero")
	}
	z, rem := new(uint256.Int).DivMod(x, y, new(uint256.Int))
	if !rem.IsZero() {
		z.AddUint64(z, 1)
	}
	return z, nil
}
