// Package tick keeps the per-tick liquidity and fee-growth records of a pool together with the
// bitmap index of initialized ticks.
package tick

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/liquiditymath"
	"liquidityEngine/internal/tickmath"
	"liquidityEngine/internal/types"
)

// Info is the record kept for an initialized tick. The outside values are relative to the
// current tick and are only meaningful once Initialized is set.
type Info struct {
	LiquidityGross uint128.Uint128
	// LiquidityNet is a two's complement int128.
	LiquidityNet                   uint256.Int
	FeeGrowthOutside0X128          uint256.Int
	FeeGrowthOutside1X128          uint256.Int
	TickCumulativeOutside          int64
	SecondsPerLiquidityOutsideX128 uint256.Int
	SecondsOutside                 uint32
	Initialized                    bool
}

// Store holds tick records. A missing tick reads as the zero Info.
type Store interface {
	Get(tick int32) Info
	Set(tick int32, info Info)
	Delete(tick int32)
}

// Map is the plain in-memory Store.
type Map map[int32]Info

func (m Map) Get(tick int32) Info { return m[tick] }

func (m Map) Set(tick int32, info Info) { m[tick] = info }

func (m Map) Delete(tick int32) { delete(m, tick) }

// Globals are the pool-wide accumulators at the moment a tick is touched.
type Globals struct {
	FeeGrowth0X128                    uint256.Int
	FeeGrowth1X128                    uint256.Int
	SecondsPerLiquidityCumulativeX128 uint256.Int
	TickCumulative                    int64
	Time                              uint32
}

// TickSpacingToMaxLiquidityPerTick bounds liquidityGross so that the liquidity of every usable
// tick summed together still fits a uint128.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int32) uint128.Uint128 {
	minTick := (tickmath.MinTick / tickSpacing) * tickSpacing
	maxTick := (tickmath.MaxTick / tickSpacing) * tickSpacing
	numTicks := uint64((maxTick-minTick)/tickSpacing) + 1
	return uint128.Max.Div64(numTicks)
}

// FeeGrowthInside returns the fee growth per unit of liquidity accrued between the two ticks.
// All subtraction wraps modulo 2^256.
func FeeGrowthInside(s Store, tickLower, tickUpper, tickCurrent int32, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) (inside0, inside1 *uint256.Int) {
	lower := s.Get(tickLower)
	upper := s.Get(tickUpper)

	var below0, below1, above0, above1 uint256.Int
	if tickCurrent >= tickLower {
		below0, below1 = lower.FeeGrowthOutside0X128, lower.FeeGrowthOutside1X128
	} else {
		below0.Sub(feeGrowthGlobal0X128, &lower.FeeGrowthOutside0X128)
		below1.Sub(feeGrowthGlobal1X128, &lower.FeeGrowthOutside1X128)
	}
	if tickCurrent < tickUpper {
		above0, above1 = upper.FeeGrowthOutside0X128, upper.FeeGrowthOutside1X128
	} else {
		above0.Sub(feeGrowthGlobal0X128, &upper.FeeGrowthOutside0X128)
		above1.Sub(feeGrowthGlobal1X128, &upper.FeeGrowthOutside1X128)
	}

	inside0 = new(uint256.Int).Sub(feeGrowthGlobal0X128, &below0)
	inside0.Sub(inside0, &above0)
	inside1 = new(uint256.Int).Sub(feeGrowthGlobal1X128, &below1)
	inside1.Sub(inside1, &above1)
	return inside0, inside1
}

// Update applies a signed liquidity delta to a tick and reports whether the tick flipped
// between initialized and uninitialized. On error the stored record is left untouched.
func Update(s Store, tick, tickCurrent int32, liquidityDelta *uint256.Int, g Globals, upper bool, maxLiquidity uint128.Uint128) (bool, error) {
	info := s.Get(tick)

	grossBefore := info.LiquidityGross
	grossAfter, err := liquiditymath.AddDelta(grossBefore, liquidityDelta)
	if err != nil {
		return false, errorsmod.Wrapf(err, "tick %d", tick)
	}
	if grossAfter.Cmp(maxLiquidity) > 0 {
		return false, errorsmod.Wrapf(types.ErrOverflow, "tick %d liquidity %s above max %s", tick, grossAfter, maxLiquidity)
	}

	var net uint256.Int
	if upper {
		net.Sub(&info.LiquidityNet, liquidityDelta)
	} else {
		net.Add(&info.LiquidityNet, liquidityDelta)
	}
	if !fullmath.FitsInt128(&net) {
		return false, errorsmod.Wrapf(types.ErrOverflow, "tick %d liquidity net out of int128 range", tick)
	}

	flipped := grossAfter.IsZero() != grossBefore.IsZero()

	if grossBefore.IsZero() {
		// growth before a tick is initialized is assumed to have happened below it
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128 = g.FeeGrowth0X128
			info.FeeGrowthOutside1X128 = g.FeeGrowth1X128
			info.SecondsPerLiquidityOutsideX128 = g.SecondsPerLiquidityCumulativeX128
			info.TickCumulativeOutside = g.TickCumulative
			info.SecondsOutside = g.Time
		}
		info.Initialized = true
	}

	info.LiquidityGross = grossAfter
	info.LiquidityNet = net
	s.Set(tick, info)
	return flipped, nil
}

// Clear removes all data of a tick.
func Clear(s Store, tick int32) {
	s.Delete(tick)
}

// Cross flips the outside values of a tick as the price moves across it and returns its
// liquidityNet.
func Cross(s Store, tick int32, g Globals) *uint256.Int {
	info := s.Get(tick)
	info.FeeGrowthOutside0X128.Sub(&g.FeeGrowth0X128, &info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(&g.FeeGrowth1X128, &info.FeeGrowthOutside1X128)
	fullmath.WrapUint160(info.SecondsPerLiquidityOutsideX128.Sub(&g.SecondsPerLiquidityCumulativeX128, &info.SecondsPerLiquidityOutsideX128))
	info.TickCumulativeOutside = fullmath.WrapInt56(g.TickCumulative - info.TickCumulativeOutside)
	info.SecondsOutside = g.Time - info.SecondsOutside
	s.Set(tick, info)
	return new(uint256.Int).Set(&info.LiquidityNet)
}
