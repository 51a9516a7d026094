// Package oracle records time-weighted tick and liquidity history in a fixed capacity ring of
// observations. Timestamps are 32-bit and may wrap; cumulative values wrap at their width.
package oracle

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/types"
)

// MaxCardinality is the largest number of observations a ring can hold.
const MaxCardinality = 65535

// placeholderTimestamp marks slots allocated by Grow that have never been written.
const placeholderTimestamp = 1

// Observation is one slot of the ring.
type Observation struct {
	BlockTimestamp uint32
	// TickCumulative is tick * elapsed seconds, wrapping as a signed 56-bit value.
	TickCumulative int64
	// SecondsPerLiquidityCumulativeX128 is elapsed seconds / max(1, liquidity), wrapping at 160 bits.
	SecondsPerLiquidityCumulativeX128 uint256.Int
	Initialized                       bool
}

// Store holds observations by ring index. A missing slot reads as the zero Observation.
type Store interface {
	Observation(index uint16) Observation
	SetObservation(index uint16, o Observation)
}

// Ring is the plain in-memory Store.
type Ring map[uint16]Observation

func (r Ring) Observation(index uint16) Observation { return r[index] }

func (r Ring) SetObservation(index uint16, o Observation) { r[index] = o }

// transform extrapolates last to time assuming tick and liquidity held since last was written.
func transform(last Observation, time uint32, tick int32, liquidity uint128.Uint128) Observation {
	delta := time - last.BlockTimestamp

	liq := fullmath.FromUint128(liquidity)
	if liq.IsZero() {
		liq.SetOne()
	}
	perLiquidity := new(uint256.Int).Lsh(uint256.NewInt(uint64(delta)), 128)
	perLiquidity.Div(perLiquidity, liq)

	next := Observation{
		BlockTimestamp: time,
		TickCumulative: fullmath.WrapInt56(last.TickCumulative + int64(tick)*int64(delta)),
		Initialized:    true,
	}
	next.SecondsPerLiquidityCumulativeX128.Add(&last.SecondsPerLiquidityCumulativeX128, perLiquidity)
	fullmath.WrapUint160(&next.SecondsPerLiquidityCumulativeX128)
	return next
}

// Initialize writes the first observation and returns the starting cardinality and
// cardinalityNext.
func Initialize(s Store, time uint32) (cardinality, cardinalityNext uint16) {
	s.SetObservation(0, Observation{BlockTimestamp: time, Initialized: true})
	return 1, 1
}

// Write records an observation for time using the tick and liquidity that held since the
// previous one. At most one observation is written per timestamp. The ring grows into
// cardinalityNext once the write reaches the end of the current cardinality.
func Write(s Store, index uint16, time uint32, tick int32, liquidity uint128.Uint128, cardinality, cardinalityNext uint16) (indexUpdated, cardinalityUpdated uint16) {
	last := s.Observation(index)
	if last.BlockTimestamp == time {
		return index, cardinality
	}

	cardinalityUpdated = cardinality
	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	}
	indexUpdated = uint16((uint32(index) + 1) % uint32(cardinalityUpdated))
	s.SetObservation(indexUpdated, transform(last, time, tick, liquidity))
	return indexUpdated, cardinalityUpdated
}

// Grow prepares slots up to next so later writes do not allocate. It returns the new
// cardinalityNext, which is unchanged when next is not larger.
func Grow(s Store, current, next uint16) (uint16, error) {
	if current == 0 {
		return 0, errorsmod.Wrap(types.ErrNotInitialized, "oracle")
	}
	if next <= current {
		return current, nil
	}
	for i := uint32(current); i < uint32(next); i++ {
		s.SetObservation(uint16(i), Observation{BlockTimestamp: placeholderTimestamp})
	}
	return next, nil
}

// lte orders two timestamps relative to time, treating values above time as being from
// before the last 32-bit wrap. Both a and b must be at or before time.
func lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}
	aAdjusted, bAdjusted := uint64(a), uint64(b)
	if a <= time {
		aAdjusted += 1 << 32
	}
	if b <= time {
		bAdjusted += 1 << 32
	}
	return aAdjusted <= bAdjusted
}

// binarySearch finds the initialized observations bracketing target. The caller guarantees
// target lies within the ring's history.
func binarySearch(s Store, time, target uint32, index, cardinality uint16) (beforeOrAt, atOrAfter Observation) {
	card := uint32(cardinality)
	l := (uint32(index) + 1) % card // oldest
	r := l + card - 1               // newest

	for {
		i := (l + r) / 2
		beforeOrAt = s.Observation(uint16(i % card))
		// slots never written sit between the newest and the oldest
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}
		atOrAfter = s.Observation(uint16((i + 1) % card))

		targetAtOrAfter := lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(time, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter
		}
		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
	}
}

func surroundingObservations(s Store, time, target uint32, tick int32, index uint16, liquidity uint128.Uint128, cardinality uint16) (beforeOrAt, atOrAfter Observation, err error) {
	beforeOrAt = s.Observation(index)
	if lte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, atOrAfter, nil
		}
		return beforeOrAt, transform(beforeOrAt, target, tick, liquidity), nil
	}

	beforeOrAt = s.Observation(uint16((uint32(index) + 1) % uint32(cardinality)))
	if !beforeOrAt.Initialized {
		beforeOrAt = s.Observation(0)
	}
	if !lte(time, beforeOrAt.BlockTimestamp, target) {
		return Observation{}, Observation{}, errorsmod.Wrapf(types.ErrTooOld, "target %d before oldest observation %d", target, beforeOrAt.BlockTimestamp)
	}
	beforeOrAt, atOrAfter = binarySearch(s, time, target, index, cardinality)
	return beforeOrAt, atOrAfter, nil
}

// ObserveSingle returns the cumulatives as of secondsAgo before time, interpolating between
// observations or extrapolating past the newest one.
func ObserveSingle(s Store, time, secondsAgo uint32, tick int32, index uint16, liquidity uint128.Uint128, cardinality uint16) (int64, *uint256.Int, error) {
	if secondsAgo == 0 {
		last := s.Observation(index)
		if last.BlockTimestamp != time {
			last = transform(last, time, tick, liquidity)
		}
		return last.TickCumulative, new(uint256.Int).Set(&last.SecondsPerLiquidityCumulativeX128), nil
	}

	target := time - secondsAgo
	beforeOrAt, atOrAfter, err := surroundingObservations(s, time, target, tick, index, liquidity, cardinality)
	if err != nil {
		return 0, nil, err
	}

	switch target {
	case beforeOrAt.BlockTimestamp:
		return beforeOrAt.TickCumulative, new(uint256.Int).Set(&beforeOrAt.SecondsPerLiquidityCumulativeX128), nil
	case atOrAfter.BlockTimestamp:
		return atOrAfter.TickCumulative, new(uint256.Int).Set(&atOrAfter.SecondsPerLiquidityCumulativeX128), nil
	}

	observationDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
	targetDelta := target - beforeOrAt.BlockTimestamp

	tickSlope := fullmath.WrapInt56(atOrAfter.TickCumulative-beforeOrAt.TickCumulative) / int64(observationDelta)
	tickCumulative := fullmath.WrapInt56(beforeOrAt.TickCumulative + tickSlope*int64(targetDelta))

	spl := new(uint256.Int).Sub(&atOrAfter.SecondsPerLiquidityCumulativeX128, &beforeOrAt.SecondsPerLiquidityCumulativeX128)
	fullmath.WrapUint160(spl)
	spl.Mul(spl, uint256.NewInt(uint64(targetDelta)))
	spl.Div(spl, uint256.NewInt(uint64(observationDelta)))
	fullmath.WrapUint160(spl)
	spl.Add(spl, &beforeOrAt.SecondsPerLiquidityCumulativeX128)
	return tickCumulative, fullmath.WrapUint160(spl), nil
}

// Observe maps ObserveSingle over secondsAgos, preserving their order.
func Observe(s Store, time uint32, secondsAgos []uint32, tick int32, index uint16, liquidity uint128.Uint128, cardinality uint16) ([]int64, []*uint256.Int, error) {
	if cardinality == 0 {
		return nil, nil, errorsmod.Wrap(types.ErrNotInitialized, "oracle")
	}
	tickCumulatives := make([]int64, len(secondsAgos))
	secondsPerLiquidity := make([]*uint256.Int, len(secondsAgos))
	for i, ago := range secondsAgos {
		tc, spl, err := ObserveSingle(s, time, ago, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, errorsmod.Wrapf(err, "secondsAgo %d", ago)
		}
		tickCumulatives[i] = tc
		secondsPerLiquidity[i] = spl
	}
	return tickCumulatives, secondsPerLiquidity, nil
}
