package bitmath

import (
	"math/bits"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/types"
)

// MostSignificantBit returns the index of the highest set bit of x.
func MostSignificantBit(x *uint256.Int) (uint8, error) {
	if x.IsZero() {
		return 0, errorsmod.Wrap(types.ErrInvalidInput, "most significant bit of zero")
	}
	return uint8(x.BitLen() - 1), nil
}

// LeastSignificantBit returns the index of the lowest set bit of x.
func LeastSignificantBit(x *uint256.Int) (uint8, error) {
	for i, word := range x {
		if word != 0 {
			return uint8(i*64 + bits.TrailingZeros64(word)), nil
		}
	}
	return 0, errorsmod.Wrap(types.ErrInvalidInput, "least significant bit of zero")
}
