package oracle

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/types"
)

// harness drives the ring the way a pool does: every update writes an observation for the
// tick and liquidity that were active until now, then switches to the new values.
type harness struct {
	ring            Ring
	time            uint32
	tick            int32
	liquidity       uint128.Uint128
	index           uint16
	cardinality     uint16
	cardinalityNext uint16
}

func newHarness(time uint32, tick int32, liquidity uint128.Uint128) *harness {
	h := &harness{ring: Ring{}, time: time, tick: tick, liquidity: liquidity}
	h.cardinality, h.cardinalityNext = Initialize(h.ring, time)
	return h
}

func (h *harness) grow(t *testing.T, next uint16) {
	t.Helper()
	var err error
	h.cardinalityNext, err = Grow(h.ring, h.cardinalityNext, next)
	require.NoError(t, err)
}

func (h *harness) update(advance uint32, tick int32, liquidity uint128.Uint128) {
	h.time += advance
	h.index, h.cardinality = Write(h.ring, h.index, h.time, h.tick, h.liquidity, h.cardinality, h.cardinalityNext)
	h.tick = tick
	h.liquidity = liquidity
}

func (h *harness) observeSingle(secondsAgo uint32) (int64, *uint256.Int, error) {
	tcs, spls, err := Observe(h.ring, h.time, []uint32{secondsAgo}, h.tick, h.index, h.liquidity, h.cardinality)
	if err != nil {
		return 0, nil, err
	}
	return tcs[0], spls[0], nil
}

func (h *harness) requireObserve(t *testing.T, secondsAgo uint32, tickCumulative int64, spl string) {
	t.Helper()
	tc, got, err := h.observeSingle(secondsAgo)
	require.NoError(t, err)
	require.Equal(t, tickCumulative, tc, "tickCumulative %d seconds ago", secondsAgo)
	require.Equal(t, spl, got.Dec(), "secondsPerLiquidity %d seconds ago", secondsAgo)
}

func l(v uint64) uint128.Uint128 { return uint128.From64(v) }

func shl128(v uint64) string {
	return new(uint256.Int).Lsh(uint256.NewInt(v), 128).Dec()
}

func requireObservation(t *testing.T, o Observation, ts uint32, tc int64, spl string, initialized bool) {
	t.Helper()
	require.Equal(t, ts, o.BlockTimestamp)
	require.Equal(t, tc, o.TickCumulative)
	require.Equal(t, spl, o.SecondsPerLiquidityCumulativeX128.Dec())
	require.Equal(t, initialized, o.Initialized)
}

func TestInitialize(t *testing.T) {
	h := newHarness(1, 1, l(1))
	require.Equal(t, uint16(0), h.index)
	require.Equal(t, uint16(1), h.cardinality)
	require.Equal(t, uint16(1), h.cardinalityNext)
	requireObservation(t, h.ring.Observation(0), 1, 0, "0", true)
}

func TestGrow(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 5)
	require.Equal(t, uint16(0), h.index)
	require.Equal(t, uint16(1), h.cardinality)
	require.Equal(t, uint16(5), h.cardinalityNext)
	requireObservation(t, h.ring.Observation(0), 0, 0, "0", true)
	for i := uint16(1); i < 5; i++ {
		requireObservation(t, h.ring.Observation(i), placeholderTimestamp, 0, "0", false)
	}

	h.grow(t, 3)
	require.Equal(t, uint16(5), h.cardinalityNext)

	_, err := Grow(Ring{}, 0, 3)
	require.True(t, errors.Is(err, types.ErrNotInitialized))
}

func TestGrowAfterWrap(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 2)
	h.update(2, 1, l(1))
	h.update(2, 1, l(1))
	require.Equal(t, uint16(0), h.index)
	h.grow(t, 3)
	require.Equal(t, uint16(0), h.index)
	require.Equal(t, uint16(2), h.cardinality)
	require.Equal(t, uint16(3), h.cardinalityNext)
}

func TestWriteSingleSlot(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.update(1, 2, l(5))
	require.Equal(t, uint16(0), h.index)
	requireObservation(t, h.ring.Observation(0), 1, 0, "340282366920938463463374607431768211456", true)

	h.update(5, -1, l(8))
	require.Equal(t, uint16(0), h.index)
	requireObservation(t, h.ring.Observation(0), 6, 10, "680564733841876926926749214863536422912", true)

	h.update(3, 2, l(3))
	require.Equal(t, uint16(0), h.index)
	requireObservation(t, h.ring.Observation(0), 9, 7, "808170621437228850725514692650449502208", true)
}

func TestWriteSameTimestampIsNoop(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 2)
	h.update(1, 3, l(2))
	require.Equal(t, uint16(1), h.index)
	h.update(0, -5, l(9))
	require.Equal(t, uint16(1), h.index)
}

func TestWriteAdvancesIndex(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 3)
	h.update(6, 3, l(2))
	require.Equal(t, uint16(1), h.index)
	h.update(4, -5, l(9))
	require.Equal(t, uint16(2), h.index)
	requireObservation(t, h.ring.Observation(1), 6, 0, "2041694201525630780780247644590609268736", true)
}

func TestWriteGrowsCardinality(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 2)
	h.grow(t, 4)
	require.Equal(t, uint16(1), h.cardinality)
	h.update(3, 5, l(6))
	require.Equal(t, uint16(4), h.cardinality)
	h.update(4, 6, l(4))
	require.Equal(t, uint16(4), h.cardinality)
	require.Equal(t, uint16(2), h.index)
	requireObservation(t, h.ring.Observation(2), 7, 20, "1247702012043441032699040227249816775338", true)
}

func TestWriteWrapsAround(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 3)
	h.update(3, 1, l(2))
	h.update(4, 2, l(3))
	h.update(5, 3, l(4))
	require.Equal(t, uint16(0), h.index)
	requireObservation(t, h.ring.Observation(0), 12, 14, "2268549112806256423089164049545121409706", true)
}

func TestWriteAccumulatesLiquidity(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 4)
	h.update(3, 3, l(2))
	h.update(4, -7, l(6))
	h.update(5, -2, l(4))
	require.Equal(t, uint16(3), h.index)
	requireObservation(t, h.ring.Observation(1), 3, 0, "1020847100762815390390123822295304634368", true)
	requireObservation(t, h.ring.Observation(2), 7, 12, "1701411834604692317316873037158841057280", true)
	requireObservation(t, h.ring.Observation(3), 12, -23, "1984980473705474370203018543351981233493", true)
	requireObservation(t, h.ring.Observation(4), 0, 0, "0", false)
}

func TestObserveBeforeInitialize(t *testing.T) {
	_, _, err := Observe(Ring{}, 0, []uint32{0}, 0, 0, l(0), 0)
	require.True(t, errors.Is(err, types.ErrNotInitialized))
}

func TestObserveOlderThanHistory(t *testing.T) {
	h := newHarness(5, 2, l(4))
	_, _, err := h.observeSingle(1)
	require.True(t, errors.Is(err, types.ErrTooOld))

	h.time += 3
	_, _, err = h.observeSingle(4)
	require.True(t, errors.Is(err, types.ErrTooOld))
}

func TestObserveAcrossTimestampOverflow(t *testing.T) {
	h := newHarness(1<<32-1, 2, l(4))
	h.time += 2
	h.requireObserve(t, 1, 2, "85070591730234615865843651857942052864")
}

func TestObserveInterpolatesAtLiquidityBounds(t *testing.T) {
	h := newHarness(0, 0, uint128.Max)
	h.grow(t, 2)
	h.update(13, 0, l(0))
	h.requireObserve(t, 0, 0, "13")
	h.requireObserve(t, 6, 0, "7")
	h.requireObserve(t, 12, 0, "1")
	h.requireObserve(t, 13, 0, "0")

	for _, start := range []uint64{0, 1} {
		h = newHarness(0, 0, l(start))
		h.grow(t, 2)
		h.update(13, 0, uint128.Max)
		h.requireObserve(t, 0, 0, shl128(13))
		h.requireObserve(t, 6, 0, shl128(7))
		h.requireObserve(t, 12, 0, shl128(1))
		h.requireObserve(t, 13, 0, "0")
	}
}

func TestObserveAcrossSecondsBoundary(t *testing.T) {
	h := newHarness(0, 0, l(0))
	h.grow(t, 2)
	h.update(1<<32-6, 0, l(0))
	h.requireObserve(t, 0, 0, shl128(1<<32-6))
	h.update(13, 0, l(0))
	h.requireObserve(t, 0, 0, shl128(7))
	h.requireObserve(t, 3, 0, shl128(4))
	h.requireObserve(t, 8, 0, shl128(1<<32-1))
}

func TestObserveSingleObservation(t *testing.T) {
	h := newHarness(5, 2, l(4))
	h.requireObserve(t, 0, 0, "0")

	h.time += 3
	h.requireObserve(t, 3, 0, "0")
	h.requireObserve(t, 1, 4, "170141183460469231731687303715884105728")
	h.requireObserve(t, 0, 6, "255211775190703847597530955573826158592")
}

func TestObserveTwoObservationsChronological(t *testing.T) {
	h := newHarness(5, -5, l(5))
	h.grow(t, 2)
	h.update(4, 1, l(2))
	h.requireObserve(t, 0, -20, "272225893536750770770699685945414569164")

	h.time += 7
	h.requireObserve(t, 0, -13, "1463214177760035392892510811956603309260")
	h.requireObserve(t, 11, 0, "0")
	h.requireObserve(t, 9, -10, "136112946768375385385349842972707284582")
}

func TestObserveTwoObservationsReversed(t *testing.T) {
	h := newHarness(5, -5, l(5))
	h.grow(t, 2)
	h.update(4, 1, l(2))
	h.update(3, -5, l(4))
	h.requireObserve(t, 0, -17, "782649443918158465965761597093066886348")

	h.time += 7
	h.requireObserve(t, 0, -52, "1378143586029800777026667160098661256396")
	h.requireObserve(t, 10, -20, "272225893536750770770699685945414569164")
	h.requireObserve(t, 9, -19, "442367076997220002502386989661298674892")
}

func TestObserveMany(t *testing.T) {
	h := newHarness(5, 2, l(1<<15))
	h.grow(t, 4)
	h.update(13, 6, l(1<<12))
	h.time += 5

	tcs, spls, err := Observe(h.ring, h.time, []uint32{0, 3, 8, 13, 15, 18}, h.tick, h.index, h.liquidity, h.cardinality)
	require.NoError(t, err)
	require.Equal(t, []int64{56, 38, 20, 10, 6, 0}, tcs)
	want := []string{
		"550383467004691728624232610897330176",
		"301153217795020002454768787094765568",
		"103845937170696552570609926584401920",
		"51922968585348276285304963292200960",
		"31153781151208965771182977975320576",
		"0",
	}
	for i, spl := range spls {
		require.Equal(t, want[i], spl.Dec(), "index %d", i)
	}
}

func fiveObservations(t *testing.T, start uint32) *harness {
	h := newHarness(start, -5, l(5))
	h.grow(t, 5)
	h.update(3, 1, l(2))
	h.update(2, -6, l(4))
	h.update(4, -2, l(4))
	h.update(1, -2, l(9))
	h.update(3, 4, l(2))
	h.update(6, 6, l(7))
	return h
}

func TestObserveFullRing(t *testing.T) {
	for _, start := range []uint32{5, 1<<32 - 5} {
		h := fiveObservations(t, start)
		require.Equal(t, uint16(1), h.index)
		require.Equal(t, uint16(5), h.cardinality)
		require.Equal(t, uint16(5), h.cardinalityNext)

		h.requireObserve(t, 0, -21, "2104079302127802832415199655953100107502")
		h.requireObserve(t, 3, -33, "1593655751746395137220137744805447790318")
		h.requireObserve(t, 14, -13, "544451787073501541541399371890829138329")
		_, _, err := h.observeSingle(15)
		require.True(t, errors.Is(err, types.ErrTooOld), "start %d", start)

		h.time += 5
		h.requireObserve(t, 5, -21, "2104079302127802832415199655953100107502")
		h.requireObserve(t, 0, 9, "2347138135642758877746181518404363115684")
		h.requireObserve(t, 8, -33, "1593655751746395137220137744805447790318")
		_, _, err = h.observeSingle(20)
		require.True(t, errors.Is(err, types.ErrTooOld), "start %d", start)

		h = fiveObservations(t, start)
		h.time += 6
		h.requireObserve(t, 20, -13, "544451787073501541541399371890829138329")

		tcs, spls, err := Observe(h.ring, h.time, []uint32{20, 17, 13, 10, 5, 1, 0}, h.tick, h.index, h.liquidity, h.cardinality)
		require.NoError(t, err)
		require.Equal(t, []int64{-13, -31, -43, -37, -15, 9, 15}, tcs)
		want := []string{
			"544451787073501541541399371890829138329",
			"799663562264205389138930327464655296921",
			"1045423049484883168306923099498710116305",
			"1423514568285925905488450441089563684590",
			"2152691068830794041481396028443352709138",
			"2347138135642758877746181518404363115684",
			"2395749902345750086812377890894615717321",
		}
		for i, spl := range spls {
			require.Equal(t, want[i], spl.Dec(), "start %d index %d", start, i)
		}
	}
}

func TestLte(t *testing.T) {
	require.True(t, lte(10, 3, 5))
	require.False(t, lte(10, 5, 3))
	// 1<<32-2 happened before the wrap, 2 after it
	require.True(t, lte(5, 1<<32-2, 2))
	require.False(t, lte(5, 2, 1<<32-2))
	require.True(t, lte(5, 1<<32-3, 1<<32-2))
}
