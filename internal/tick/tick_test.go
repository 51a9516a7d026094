package tick

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
	"pgregory.net/rapid"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/types"
)

func signed(v int64) *uint256.Int { return fullmath.FromInt64(v) }

func TestTickSpacingToMaxLiquidityPerTick(t *testing.T) {
	cases := []struct {
		spacing int32
		want    string
	}{
		{10, "1917569901783203986719870431555990"},
		{60, "11505743598341114571880798222544994"},
		{200, "38350317471085141830651933667504588"},
		{2302, "441351967472034323558203122479595605"},
		{887272, uint128.Max.Div64(3).String()},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, TickSpacingToMaxLiquidityPerTick(tc.spacing).String(), "spacing %d", tc.spacing)
	}
}

func TestFeeGrowthInsideUninitialized(t *testing.T) {
	s := Map{}
	fg := uint256.NewInt(15)

	in0, in1 := FeeGrowthInside(s, -2, 2, 0, fg, fg)
	require.Equal(t, uint64(15), in0.Uint64())
	require.Equal(t, uint64(15), in1.Uint64())

	for _, current := range []int32{4, -4} {
		in0, in1 = FeeGrowthInside(s, -2, 2, current, fg, fg)
		require.True(t, in0.IsZero())
		require.True(t, in1.IsZero())
	}
}

func outside(fg0, fg1 *uint256.Int) Info {
	return Info{
		FeeGrowthOutside0X128: *fg0,
		FeeGrowthOutside1X128: *fg1,
		Initialized:           true,
	}
}

func TestFeeGrowthInsideSubtractsOutside(t *testing.T) {
	fg := uint256.NewInt(15)

	s := Map{2: outside(uint256.NewInt(2), uint256.NewInt(3))}
	in0, in1 := FeeGrowthInside(s, -2, 2, 0, fg, fg)
	require.Equal(t, uint64(13), in0.Uint64())
	require.Equal(t, uint64(12), in1.Uint64())

	s = Map{-2: outside(uint256.NewInt(2), uint256.NewInt(3))}
	in0, in1 = FeeGrowthInside(s, -2, 2, 0, fg, fg)
	require.Equal(t, uint64(13), in0.Uint64())
	require.Equal(t, uint64(12), in1.Uint64())

	s = Map{
		-2: outside(uint256.NewInt(2), uint256.NewInt(3)),
		2:  outside(uint256.NewInt(4), uint256.NewInt(1)),
	}
	in0, in1 = FeeGrowthInside(s, -2, 2, 0, fg, fg)
	require.Equal(t, uint64(9), in0.Uint64())
	require.Equal(t, uint64(11), in1.Uint64())
}

func TestFeeGrowthInsideWrapsAround(t *testing.T) {
	s := Map{
		-2: outside(new(uint256.Int).SubUint64(fullmath.MaxUint256, 3), new(uint256.Int).SubUint64(fullmath.MaxUint256, 2)),
		2:  outside(uint256.NewInt(3), uint256.NewInt(5)),
	}
	fg := uint256.NewInt(15)
	in0, in1 := FeeGrowthInside(s, -2, 2, 0, fg, fg)
	require.Equal(t, uint64(16), in0.Uint64())
	require.Equal(t, uint64(13), in1.Uint64())
}

func TestUpdateFlips(t *testing.T) {
	maxLiq := uint128.From64(3)

	s := Map{}
	flipped, err := Update(s, 0, 0, signed(1), Globals{}, false, maxLiq)
	require.NoError(t, err)
	require.True(t, flipped)

	flipped, err = Update(s, 0, 0, signed(1), Globals{}, false, maxLiq)
	require.NoError(t, err)
	require.False(t, flipped, "nonzero to greater nonzero")

	flipped, err = Update(s, 0, 0, signed(-1), Globals{}, false, maxLiq)
	require.NoError(t, err)
	require.False(t, flipped, "nonzero to lesser nonzero")

	flipped, err = Update(s, 0, 0, signed(-1), Globals{}, false, maxLiq)
	require.NoError(t, err)
	require.True(t, flipped, "nonzero to zero")
}

func TestUpdateAboveMaxLeavesTickUnchanged(t *testing.T) {
	maxLiq := uint128.From64(3)
	s := Map{}
	_, err := Update(s, 0, 0, signed(2), Globals{}, false, maxLiq)
	require.NoError(t, err)
	_, err = Update(s, 0, 0, signed(1), Globals{}, true, maxLiq)
	require.NoError(t, err)

	before := s.Get(0)
	_, err = Update(s, 0, 0, signed(1), Globals{}, false, maxLiq)
	require.True(t, errors.Is(err, types.ErrOverflow))
	require.Equal(t, before, s.Get(0))
}

func TestUpdateNetsByUpperFlag(t *testing.T) {
	maxLiq := uint128.From64(10)
	s := Map{}
	for _, u := range []struct {
		delta int64
		upper bool
	}{{2, false}, {1, true}, {3, true}, {1, false}} {
		_, err := Update(s, 0, 0, signed(u.delta), Globals{}, u.upper, maxLiq)
		require.NoError(t, err)
	}
	info := s.Get(0)
	require.Equal(t, uint64(7), info.LiquidityGross.Lo)
	require.Equal(t, "-1", fullmath.SignedString(&info.LiquidityNet))
}

func TestUpdateNetOverflow(t *testing.T) {
	half := new(uint256.Int).Rsh(fullmath.MaxUint128, 1)
	half.SubUint64(half, 1)

	s := Map{}
	_, err := Update(s, 0, 0, half, Globals{}, false, uint128.Max)
	require.NoError(t, err)
	_, err = Update(s, 0, 0, half, Globals{}, false, uint128.Max)
	require.True(t, errors.Is(err, types.ErrOverflow))
}

func globals(fg0, fg1, spl uint64, tickCumulative int64, time uint32) Globals {
	return Globals{
		FeeGrowth0X128:                    *uint256.NewInt(fg0),
		FeeGrowth1X128:                    *uint256.NewInt(fg1),
		SecondsPerLiquidityCumulativeX128: *uint256.NewInt(spl),
		TickCumulative:                    tickCumulative,
		Time:                              time,
	}
}

func requireOutside(t *testing.T, info Info, fg0, fg1, spl uint64, tickCumulative int64, secs uint32) {
	t.Helper()
	require.Equal(t, fg0, info.FeeGrowthOutside0X128.Uint64())
	require.Equal(t, fg1, info.FeeGrowthOutside1X128.Uint64())
	require.Equal(t, spl, info.SecondsPerLiquidityOutsideX128.Uint64())
	require.Equal(t, tickCumulative, info.TickCumulativeOutside)
	require.Equal(t, secs, info.SecondsOutside)
}

func TestUpdateSeedsGrowthBelowCurrentTick(t *testing.T) {
	s := Map{}
	_, err := Update(s, 1, 1, signed(1), globals(1, 2, 3, 4, 5), false, uint128.Max)
	require.NoError(t, err)
	requireOutside(t, s.Get(1), 1, 2, 3, 4, 5)
	require.True(t, s.Get(1).Initialized)

	// already initialized: not reseeded
	_, err = Update(s, 1, 1, signed(1), globals(6, 7, 8, 9, 10), false, uint128.Max)
	require.NoError(t, err)
	requireOutside(t, s.Get(1), 1, 2, 3, 4, 5)
}

func TestUpdateDoesNotSeedAboveCurrentTick(t *testing.T) {
	s := Map{}
	_, err := Update(s, 2, 1, signed(1), globals(1, 2, 3, 4, 5), false, uint128.Max)
	require.NoError(t, err)
	requireOutside(t, s.Get(2), 0, 0, 0, 0, 0)
	require.True(t, s.Get(2).Initialized)
}

func TestClear(t *testing.T) {
	s := Map{2: {
		LiquidityGross:                 uint128.From64(3),
		LiquidityNet:                   *signed(4),
		FeeGrowthOutside0X128:          *uint256.NewInt(1),
		FeeGrowthOutside1X128:          *uint256.NewInt(2),
		SecondsPerLiquidityOutsideX128: *uint256.NewInt(5),
		TickCumulativeOutside:          6,
		SecondsOutside:                 7,
		Initialized:                    true,
	}}
	Clear(s, 2)
	require.Equal(t, Info{}, s.Get(2))
}

func TestCross(t *testing.T) {
	seed := func() Map {
		return Map{2: {
			LiquidityGross:                 uint128.From64(3),
			LiquidityNet:                   *signed(4),
			FeeGrowthOutside0X128:          *uint256.NewInt(1),
			FeeGrowthOutside1X128:          *uint256.NewInt(2),
			SecondsPerLiquidityOutsideX128: *uint256.NewInt(5),
			TickCumulativeOutside:          6,
			SecondsOutside:                 7,
			Initialized:                    true,
		}}
	}

	s := seed()
	net := Cross(s, 2, globals(7, 9, 8, 15, 10))
	require.Equal(t, "4", fullmath.SignedString(net))
	requireOutside(t, s.Get(2), 6, 7, 3, 9, 3)

	s = seed()
	Cross(s, 2, globals(7, 9, 8, 15, 10))
	Cross(s, 2, globals(7, 9, 8, 15, 10))
	requireOutside(t, s.Get(2), 1, 2, 5, 6, 7)
}

func TestLiquidityNetSumsToZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Map{}
		maxLiq := TickSpacingToMaxLiquidityPerTick(1)
		type rng struct {
			lower, upper int32
			liq          int64
		}
		var ranges []rng
		n := rapid.IntRange(1, 20).Draw(t, "positions")
		for i := 0; i < n; i++ {
			lower := rapid.Int32Range(-50, 49).Draw(t, "lower")
			upper := rapid.Int32Range(lower+1, 50).Draw(t, "upper")
			liq := rapid.Int64Range(1, 1<<40).Draw(t, "liquidity")
			_, err := Update(s, lower, 0, signed(liq), Globals{}, false, maxLiq)
			require.NoError(t, err)
			_, err = Update(s, upper, 0, signed(liq), Globals{}, true, maxLiq)
			require.NoError(t, err)
			ranges = append(ranges, rng{lower, upper, liq})
		}
		sum := func() *uint256.Int {
			total := new(uint256.Int)
			for _, info := range s {
				total.Add(total, &info.LiquidityNet)
			}
			return total
		}
		require.True(t, sum().IsZero())

		// remove half of them again
		for _, r := range ranges[:len(ranges)/2] {
			_, err := Update(s, r.lower, 0, signed(-r.liq), Globals{}, false, maxLiq)
			require.NoError(t, err)
			_, err = Update(s, r.upper, 0, signed(-r.liq), Globals{}, true, maxLiq)
			require.NoError(t, err)
		}
		require.True(t, sum().IsZero())
	})
}

func TestFeeGrowthInsideIgnoresOtherTicks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Map{}
		maxLiq := TickSpacingToMaxLiquidityPerTick(1)
		current := rapid.Int32Range(-100, 100).Draw(t, "current")
		lower := rapid.Int32Range(-100, 99).Draw(t, "lower")
		upper := rapid.Int32Range(lower+1, 100).Draw(t, "upper")

		var seed Globals
		seed.FeeGrowth0X128.SetUint64(rapid.Uint64().Draw(t, "seed0"))
		seed.FeeGrowth1X128.SetUint64(rapid.Uint64().Draw(t, "seed1"))
		_, err := Update(s, lower, current, signed(1000), seed, false, maxLiq)
		require.NoError(t, err)
		_, err = Update(s, upper, current, signed(1000), seed, true, maxLiq)
		require.NoError(t, err)

		var now Globals
		now.FeeGrowth0X128.AddUint64(&seed.FeeGrowth0X128, rapid.Uint64().Draw(t, "accrued0"))
		now.FeeGrowth1X128.AddUint64(&seed.FeeGrowth1X128, rapid.Uint64().Draw(t, "accrued1"))
		want0, want1 := FeeGrowthInside(s, lower, upper, current, &now.FeeGrowth0X128, &now.FeeGrowth1X128)

		check := func(stage string) {
			in0, in1 := FeeGrowthInside(s, lower, upper, current, &now.FeeGrowth0X128, &now.FeeGrowth1X128)
			require.Equal(t, want0, in0, stage)
			require.Equal(t, want1, in1, stage)
		}

		extra := rapid.SliceOfNDistinct(rapid.Int32Range(-200, 200).Filter(func(v int32) bool {
			return v != lower && v != upper
		}), 1, 10, rapid.ID[int32]).Draw(t, "extra")
		for _, tk := range extra {
			_, err := Update(s, tk, current, signed(7), now, tk > 0, maxLiq)
			require.NoError(t, err)
		}
		check("after adding ticks")

		for _, tk := range extra {
			flipped, err := Update(s, tk, current, signed(-7), now, tk > 0, maxLiq)
			require.NoError(t, err)
			require.True(t, flipped)
			Clear(s, tk)
		}
		check("after removing ticks")
	})
}
