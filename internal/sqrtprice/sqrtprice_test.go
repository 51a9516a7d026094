package sqrtprice

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/types"
)

var (
	oneEther   = uint256.NewInt(1_000_000_000_000_000_000)
	tenthEther = uint256.NewInt(100_000_000_000_000_000)
	// sqrt(1.21) in Q64.96, floored
	price121 = uint256.MustFromDecimal("87150978765690771352898345369")
)

func liq(v *uint256.Int) uint128.Uint128 {
	return fullmath.TruncateUint128(v)
}

func pow2(n uint) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), n)
}

func TestNextSqrtPriceFromInputFailures(t *testing.T) {
	_, err := NextSqrtPriceFromInput(uint256.NewInt(0), uint128.Zero, tenthEther, false)
	require.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = NextSqrtPriceFromInput(uint256.NewInt(1), uint128.Zero, tenthEther, true)
	require.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = NextSqrtPriceFromInput(fullmath.MaxUint160, uint128.From64(1024), uint256.NewInt(1024), false)
	require.True(t, errors.Is(err, types.ErrOverflow))
}

func TestNextSqrtPriceFromInput(t *testing.T) {
	got, err := NextSqrtPriceFromInput(uint256.NewInt(1), uint128.From64(1), pow2(255), true)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Uint64())

	for _, zeroForOne := range []bool{true, false} {
		got, err = NextSqrtPriceFromInput(fullmath.Q96, liq(tenthEther), uint256.NewInt(0), zeroForOne)
		require.NoError(t, err)
		require.True(t, got.Eq(fullmath.Q96))
	}

	maxLiquidity := uint128.Max
	numerator := new(uint256.Int).Lsh(fullmath.MaxUint128, 96)
	maxAmountNoOverflow := new(uint256.Int).Sub(fullmath.MaxUint256, numerator.Div(numerator, fullmath.MaxUint160))
	got, err = NextSqrtPriceFromInput(fullmath.MaxUint160, maxLiquidity, maxAmountNoOverflow, true)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Uint64())

	got, err = NextSqrtPriceFromInput(fullmath.Q96, liq(oneEther), tenthEther, false)
	require.NoError(t, err)
	require.Equal(t, "87150978765690771352898345369", got.Dec())

	got, err = NextSqrtPriceFromInput(fullmath.Q96, liq(oneEther), tenthEther, true)
	require.NoError(t, err)
	require.Equal(t, "72025602285694852357767227579", got.Dec())

	tenEther := new(uint256.Int).Mul(oneEther, uint256.NewInt(10))
	got, err = NextSqrtPriceFromInput(fullmath.Q96, liq(tenEther), pow2(100), true)
	require.NoError(t, err)
	require.Equal(t, "624999999995069620", got.Dec())

	got, err = NextSqrtPriceFromInput(fullmath.Q96, uint128.From64(1), new(uint256.Int).Rsh(fullmath.MaxUint256, 1), true)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Uint64())
}

func TestNextSqrtPriceFromOutputFailures(t *testing.T) {
	_, err := NextSqrtPriceFromOutput(uint256.NewInt(0), uint128.Zero, tenthEther, false)
	require.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = NextSqrtPriceFromOutput(uint256.NewInt(1), uint128.Zero, tenthEther, true)
	require.True(t, errors.Is(err, types.ErrInvalidInput))

	price := pow2(104)
	reserves := uint128.From64(1024)
	for _, out := range []uint64{4, 5} {
		_, err = NextSqrtPriceFromOutput(price, reserves, uint256.NewInt(out), false)
		require.True(t, errors.Is(err, types.ErrInsufficientLiquidity), "token0 out %d", out)
	}
	for _, out := range []uint64{262144, 262145} {
		_, err = NextSqrtPriceFromOutput(price, reserves, uint256.NewInt(out), true)
		require.True(t, errors.Is(err, types.ErrInsufficientLiquidity), "token1 out %d", out)
	}

	for _, zeroForOne := range []bool{true, false} {
		_, err = NextSqrtPriceFromOutput(fullmath.Q96, uint128.From64(1), fullmath.MaxUint256, zeroForOne)
		require.Error(t, err)
	}
}

func TestNextSqrtPriceFromOutput(t *testing.T) {
	got, err := NextSqrtPriceFromOutput(pow2(104), uint128.From64(1024), uint256.NewInt(262143), true)
	require.NoError(t, err)
	require.Equal(t, "77371252455336267181195264", got.Dec())

	for _, zeroForOne := range []bool{true, false} {
		got, err = NextSqrtPriceFromOutput(fullmath.Q96, liq(tenthEther), uint256.NewInt(0), zeroForOne)
		require.NoError(t, err)
		require.True(t, got.Eq(fullmath.Q96))
	}

	got, err = NextSqrtPriceFromOutput(fullmath.Q96, liq(oneEther), tenthEther, false)
	require.NoError(t, err)
	require.Equal(t, "88031291682515930659493278152", got.Dec())

	got, err = NextSqrtPriceFromOutput(fullmath.Q96, liq(oneEther), tenthEther, true)
	require.NoError(t, err)
	require.Equal(t, "71305346262837903834189555302", got.Dec())
}

func TestAmount0Delta(t *testing.T) {
	got, err := Amount0Delta(fullmath.Q96, pow2(97), uint128.Zero, true)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	got, err = Amount0Delta(fullmath.Q96, fullmath.Q96, liq(oneEther), true)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	up, err := Amount0Delta(fullmath.Q96, price121, liq(oneEther), true)
	require.NoError(t, err)
	require.Equal(t, "90909090909090910", up.Dec())

	down, err := Amount0Delta(fullmath.Q96, price121, liq(oneEther), false)
	require.NoError(t, err)
	require.Equal(t, "90909090909090909", down.Dec())

	reversed, err := Amount0Delta(price121, fullmath.Q96, liq(oneEther), true)
	require.NoError(t, err)
	require.True(t, reversed.Eq(up))

	// sqrt prices 2^45 and 2^48 (Q64.96) overflow a naive product
	up, err = Amount0Delta(pow2(141), pow2(144), liq(oneEther), true)
	require.NoError(t, err)
	down, err = Amount0Delta(pow2(141), pow2(144), liq(oneEther), false)
	require.NoError(t, err)
	require.True(t, up.Eq(new(uint256.Int).AddUint64(down, 1)))
}

func TestAmount1Delta(t *testing.T) {
	got, err := Amount1Delta(fullmath.Q96, pow2(97), uint128.Zero, true)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	got, err = Amount1Delta(fullmath.Q96, fullmath.Q96, liq(oneEther), true)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	up, err := Amount1Delta(fullmath.Q96, price121, liq(oneEther), true)
	require.NoError(t, err)
	require.Equal(t, "100000000000000000", up.Dec())

	down, err := Amount1Delta(fullmath.Q96, price121, liq(oneEther), false)
	require.NoError(t, err)
	require.Equal(t, "99999999999999999", down.Dec())
}

func TestSwapComputationProductOverflow(t *testing.T) {
	sqrtP := uint256.MustFromDecimal("1025574284609383690408304870162715216695788925244")
	liquidity := liq(uint256.MustFromDecimal("50015962439936049619261659728067971248"))

	sqrtQ, err := NextSqrtPriceFromInput(sqrtP, liquidity, uint256.NewInt(406), true)
	require.NoError(t, err)
	require.Equal(t, "1025574284609383582644711336373707553698163132913", sqrtQ.Dec())

	amount0, err := Amount0Delta(sqrtQ, sqrtP, liquidity, true)
	require.NoError(t, err)
	require.Equal(t, uint64(406), amount0.Uint64())
}

func TestSignedAmountDeltas(t *testing.T) {
	added, err := SignedAmount1Delta(fullmath.Q96, price121, fullmath.FromInt64(1_000_000_000_000_000_000))
	require.NoError(t, err)
	require.Equal(t, "100000000000000000", fullmath.SignedString(added))

	removed, err := SignedAmount1Delta(fullmath.Q96, price121, fullmath.FromInt64(-1_000_000_000_000_000_000))
	require.NoError(t, err)
	require.Equal(t, "-99999999999999999", fullmath.SignedString(removed))

	removed0, err := SignedAmount0Delta(fullmath.Q96, price121, fullmath.FromInt64(-1_000_000_000_000_000_000))
	require.NoError(t, err)
	require.Equal(t, "-90909090909090909", fullmath.SignedString(removed0))

	_, err = SignedAmount0Delta(fullmath.Q96, price121, fullmath.Q128)
	require.True(t, errors.Is(err, types.ErrInvalidInput))
}
