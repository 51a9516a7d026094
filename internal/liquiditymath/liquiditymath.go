package liquiditymath

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/types"
)

// AddDelta adds the signed int128 delta y to the liquidity x.
func AddDelta(x uint128.Uint128, y *uint256.Int) (uint128.Uint128, error) {
	if !fullmath.FitsInt128(y) {
		return uint128.Zero, errorsmod.Wrapf(types.ErrInvalidInput, "liquidity delta %s out of int128 range", fullmath.SignedString(y))
	}
	wide := fullmath.FromUint128(x)
	if fullmath.IsNegative(y) {
		abs := new(uint256.Int).Neg(y)
		if abs.Gt(wide) {
			return uint128.Zero, errorsmod.Wrapf(types.ErrUnderflow, "liquidity %s minus %s", x, abs.Dec())
		}
		return fullmath.TruncateUint128(wide.Sub(wide, abs)), nil
	}
	wide.Add(wide, y)
	if wide.Gt(fullmath.MaxUint128) {
		return uint128.Zero, errorsmod.Wrapf(types.ErrOverflow, "liquidity %s plus %s", x, y.Dec())
	}
	return fullmath.TruncateUint128(wide), nil
}
