package tickmath

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/bitmath"
	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/types"
)

const (
	// MinTick is the lowest tick whose sqrt price is representable (log base sqrt(1.0001) of 2^-128).
	MinTick int32 = -887272
	// MaxTick is the highest tick whose sqrt price is representable (log base sqrt(1.0001) of 2^128).
	MaxTick int32 = -MinTick
)

var (
	// MinSqrtRatio is SqrtRatioAtTick(MinTick).
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")
)

// ratioFactors[i] is 2^128 / sqrt(1.0001)^(2^i) in Q128.128, rounded.
var ratioFactors = [20]*uint256.Int{
	uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	// log base 2 of sqrt(1.0001) inverse, as a Q128.128 multiplier
	logSqrt10001 = uint256.MustFromHex("0x3627a301d71055774c85")
	tickLowBias  = uint256.MustFromHex("0x28f6481ab7f045a5af012a19d003aaa")
	tickHighBias = uint256.MustFromHex("0xdb2df09e81959a81455e260799a0632f")
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96, rounded up.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}
	if absTick > MaxTick {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "tick %d out of range", tick)
	}

	ratio := new(uint256.Int).Set(fullmath.Q128)
	if absTick&1 != 0 {
		ratio.Set(ratioFactors[0])
	}
	for i := 1; i < len(ratioFactors); i++ {
		if absTick&(1<<i) != 0 {
			ratio.Mul(ratio, ratioFactors[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(fullmath.MaxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so that TickAtSqrtRatio(SqrtRatioAtTick(t)) == t.
	rem := ratio[0] & 0xffffffff
	ratio.Rsh(ratio, 32)
	if rem != 0 {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtPriceX96.
func TickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Lt(MinSqrtRatio) || !sqrtPriceX96.Lt(MaxSqrtRatio) {
		return 0, errorsmod.Wrapf(types.ErrInvalidInput, "sqrt price %s out of range", sqrtPriceX96.Dec())
	}

	ratio := new(uint256.Int).Lsh(sqrtPriceX96, 32)
	msb, err := bitmath.MostSignificantBit(ratio)
	if err != nil {
		return 0, err
	}

	r := new(uint256.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	// integer part of log2, as a signed Q64.64 in two's complement
	log2 := fullmath.FromInt64(int64(msb) - 128)
	log2.Lsh(log2, 64)

	f := new(uint256.Int)
	for shift := uint(63); shift >= 50; shift-- {
		r.Mul(r, r)
		r.Rsh(r, 127)
		f.Rsh(r, 128)
		log2.Or(log2, new(uint256.Int).Lsh(f, shift))
		r.Rsh(r, uint(f.Uint64()))
	}

	logSqrt := new(uint256.Int).Mul(log2, logSqrt10001)

	low := new(uint256.Int).Sub(logSqrt, tickLowBias)
	low.SRsh(low, 128)
	high := new(uint256.Int).Add(logSqrt, tickHighBias)
	high.SRsh(high, 128)

	tickLow := int32(int64(low.Uint64()))
	tickHigh := int32(int64(high.Uint64()))
	if tickLow == tickHigh {
		return tickLow, nil
	}

	atHigh, err := SqrtRatioAtTick(tickHigh)
	if err != nil {
		return 0, err
	}
	if !atHigh.Gt(sqrtPriceX96) {
		return tickHigh, nil
	}
	return tickLow, nil
}
