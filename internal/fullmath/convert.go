package fullmath

import (
	"math/big"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/types"
)

// FromUint128 widens a 128-bit magnitude.
func FromUint128(x uint128.Uint128) *uint256.Int {
	return &uint256.Int{x.Lo, x.Hi, 0, 0}
}

// ToUint128 narrows x, failing with Overflow when it does not fit.
func ToUint128(x *uint256.Int) (uint128.Uint128, error) {
	if x[2] != 0 || x[3] != 0 {
		return uint128.Zero, errorsmod.Wrapf(types.ErrOverflow, "%s exceeds uint128", x.Dec())
	}
	return uint128.New(x[0], x[1]), nil
}

// TruncateUint128 keeps the low 128 bits of x.
func TruncateUint128(x *uint256.Int) uint128.Uint128 {
	return uint128.New(x[0], x[1])
}

// FromInt64 returns the two's complement representation of v.
func FromInt64(v int64) *uint256.Int {
	if v >= 0 {
		return new(uint256.Int).SetUint64(uint64(v))
	}
	z := new(uint256.Int).SetUint64(uint64(-(v + 1)))
	return z.Not(z)
}

// IsNegative reports whether the two's complement value x is below zero.
func IsNegative(x *uint256.Int) bool {
	return x.Sign() < 0
}

// FitsInt128 reports whether the two's complement value x lies in int128 range.
func FitsInt128(x *uint256.Int) bool {
	return !x.Sgt(MaxInt128) && !x.Slt(MinInt128)
}

// ToInt256 checks that the unsigned value x can be reinterpreted as a positive int256.
func ToInt256(x *uint256.Int) (*uint256.Int, error) {
	if x.Gt(MaxInt256) {
		return nil, errorsmod.Wrapf(types.ErrOverflow, "%s exceeds int256", x.Dec())
	}
	return x, nil
}

// SignedString renders a two's complement value in base 10.
func SignedString(x *uint256.Int) string {
	if IsNegative(x) {
		return "-" + new(uint256.Int).Neg(x).Dec()
	}
	return x.Dec()
}

// WrapInt56 reduces v modulo 2^56 into the signed 56-bit range, the width of tick cumulatives.
func WrapInt56(v int64) int64 {
	return v << 8 >> 8
}

// WrapUint160 reduces x modulo 2^160 in place and returns it.
func WrapUint160(x *uint256.Int) *uint256.Int {
	x[2] &= 0xffffffff
	x[3] = 0
	return x
}

// ParseSigned parses a base 10 integer with an optional leading minus into two's complement.
func ParseSigned(s string) (*uint256.Int, error) {
	neg := strings.HasPrefix(s, "-")
	z, err := uint256.FromDecimal(strings.TrimPrefix(s, "-"))
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "integer %q: %v", s, err)
	}
	if neg {
		if z.Gt(new(uint256.Int).AddUint64(MaxInt256, 1)) {
			return nil, errorsmod.Wrapf(types.ErrOverflow, "%s below int256", s)
		}
		return z.Neg(z), nil
	}
	if z.Gt(MaxInt256) {
		return nil, errorsmod.Wrapf(types.ErrOverflow, "%s exceeds int256", s)
	}
	return z, nil
}

// ParseUint128 parses a base 10 liquidity or owed amount.
func ParseUint128(s string) (uint128.Uint128, error) {
	v, err := uint128.FromString(s)
	if err != nil {
		return uint128.Zero, errorsmod.Wrapf(types.ErrInvalidInput, "uint128 %q: %v", s, err)
	}
	return v, nil
}

// ToSignedBig converts a two's complement value to a big.Int.
func ToSignedBig(x *uint256.Int) *big.Int {
	if IsNegative(x) {
		return new(big.Int).Neg(new(uint256.Int).Neg(x).ToBig())
	}
	return x.ToBig()
}

// FromSignedBig converts b into two's complement, failing when it is outside int256.
func FromSignedBig(b *big.Int) (*uint256.Int, error) {
	z, overflow := uint256.FromBig(new(big.Int).Abs(b))
	if overflow {
		return nil, errorsmod.Wrapf(types.ErrOverflow, "%s exceeds 256 bits", b)
	}
	if b.Sign() < 0 {
		if z.Gt(new(uint256.Int).AddUint64(MaxInt256, 1)) {
			return nil, errorsmod.Wrapf(types.ErrOverflow, "%s below int256", b)
		}
		return z.Neg(z), nil
	}
	if z.Gt(MaxInt256) {
		return nil, errorsmod.Wrapf(types.ErrOverflow, "%s exceeds int256", b)
	}
	return z, nil
}
