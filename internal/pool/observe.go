package pool

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/oracle"
	"liquidityEngine/internal/types"
)

// Observe returns the tick and seconds-per-liquidity accumulators as of each secondsAgo before
// the current block time. It does not take the operation lock and may be called from callbacks.
func (e *Engine) Observe(secondsAgos []uint32) (tickCumulatives []int64, secondsPerLiquidityCumulativeX128s []*uint256.Int, err error) {
	if err := e.requireInitialized(); err != nil {
		return nil, nil, err
	}
	slot0 := e.head.slot0
	return oracle.Observe(
		e.observations,
		e.clock.BlockTimestamp(),
		secondsAgos,
		slot0.Tick,
		slot0.ObservationIndex,
		e.head.liquidity,
		slot0.ObservationCardinality,
	)
}

// CumulativesInside is a snapshot of the accumulators within a tick range. Only differences
// between two snapshots of the same range, taken while the range had liquidity, are meaningful.
type CumulativesInside struct {
	TickCumulative                int64
	SecondsPerLiquidityInsideX128 *uint256.Int
	SecondsInside                 uint32
}

// SnapshotCumulativesInside snapshots the range [tickLower, tickUpper). Both ticks must be
// initialized.
func (e *Engine) SnapshotCumulativesInside(tickLower, tickUpper int32) (CumulativesInside, error) {
	if err := e.requireInitialized(); err != nil {
		return CumulativesInside{}, err
	}
	if err := e.checkTicks(tickLower, tickUpper); err != nil {
		return CumulativesInside{}, err
	}
	lower, upper := e.ticks.Get(tickLower), e.ticks.Get(tickUpper)
	if !lower.Initialized {
		return CumulativesInside{}, errorsmod.Wrapf(types.ErrInvalidInput, "tick %d not initialized", tickLower)
	}
	if !upper.Initialized {
		return CumulativesInside{}, errorsmod.Wrapf(types.ErrInvalidInput, "tick %d not initialized", tickUpper)
	}

	spl := new(uint256.Int)
	slot0 := e.head.slot0
	switch {
	case slot0.Tick < tickLower:
		spl.Sub(&lower.SecondsPerLiquidityOutsideX128, &upper.SecondsPerLiquidityOutsideX128)
		return CumulativesInside{
			TickCumulative:                fullmath.WrapInt56(lower.TickCumulativeOutside - upper.TickCumulativeOutside),
			SecondsPerLiquidityInsideX128: fullmath.WrapUint160(spl),
			SecondsInside:                 lower.SecondsOutside - upper.SecondsOutside,
		}, nil
	case slot0.Tick < tickUpper:
		now := e.clock.BlockTimestamp()
		tickCumulative, secondsPerLiquidity, err := oracle.ObserveSingle(
			e.observations, now, 0, slot0.Tick, slot0.ObservationIndex, e.head.liquidity, slot0.ObservationCardinality,
		)
		if err != nil {
			return CumulativesInside{}, err
		}
		spl.Sub(secondsPerLiquidity, &lower.SecondsPerLiquidityOutsideX128)
		spl.Sub(spl, &upper.SecondsPerLiquidityOutsideX128)
		return CumulativesInside{
			TickCumulative:                fullmath.WrapInt56(tickCumulative - lower.TickCumulativeOutside - upper.TickCumulativeOutside),
			SecondsPerLiquidityInsideX128: fullmath.WrapUint160(spl),
			SecondsInside:                 now - lower.SecondsOutside - upper.SecondsOutside,
		}, nil
	default:
		spl.Sub(&upper.SecondsPerLiquidityOutsideX128, &lower.SecondsPerLiquidityOutsideX128)
		return CumulativesInside{
			TickCumulative:                fullmath.WrapInt56(upper.TickCumulativeOutside - lower.TickCumulativeOutside),
			SecondsPerLiquidityInsideX128: fullmath.WrapUint160(spl),
			SecondsInside:                 upper.SecondsOutside - lower.SecondsOutside,
		}, nil
	}
}

// IncreaseObservationCardinalityNext grows the oracle ring to hold at least next observations.
// The new slots are filled in as observations are written.
func (e *Engine) IncreaseObservationCardinalityNext(next uint16) error {
	return e.execute("increase_observation_cardinality_next", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		old := e.head.slot0.ObservationCardinalityNext
		grown, err := oracle.Grow(e.observations, old, next)
		if err != nil {
			return err
		}
		e.head.slot0.ObservationCardinalityNext = grown
		if grown != old {
			e.emit(IncreaseObservationCardinalityNextEvent{
				ObservationCardinalityNextOld: old,
				ObservationCardinalityNextNew: grown,
			})
		}
		return nil
	})
}
