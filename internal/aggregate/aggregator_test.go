package aggregate

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
)

type memoryWriter struct {
	metrics []model.PoolWindowMetrics
	calls   int
}

func (w *memoryWriter) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	w.calls++
	w.metrics = append(w.metrics, metrics...)
	return nil
}

var (
	testPool = common.HexToAddress("0x1111111111111111111111111111111111111111")
	q96      = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
)

func newTestAggregator(t *testing.T, w *memoryWriter) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(Config{WindowSeconds: 60}, w, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	agg.Register(PoolInfo{
		ChainID: 31337,
		Address: testPool,
		Token0:  common.HexToAddress("0xa"),
		Token1:  common.HexToAddress("0xb"),
		Fee:     3000,
	})
	return agg
}

func observe(t *testing.T, agg *Aggregator, ts uint32, ev pool.Event) {
	t.Helper()
	if err := agg.Observe(context.Background(), pool.Record{Pool: testPool, Timestamp: ts, Event: ev}, 0); err != nil {
		t.Fatalf("observe %s: %v", ev.EventName(), err)
	}
}

func TestAggregatorWindows(t *testing.T) {
	w := &memoryWriter{}
	agg := newTestAggregator(t, w)

	observe(t, agg, 1000, pool.InitializeEvent{SqrtPriceX96: q96, Tick: 0})
	observe(t, agg, 1000, pool.MintEvent{Amount: uint128.From64(1000), Amount0: uint256.NewInt(1000), Amount1: uint256.NewInt(1000)})
	observe(t, agg, 1010, pool.SwapEvent{
		Amount0:      uint256.NewInt(100),
		Amount1:      fullmath.FromInt64(-99),
		SqrtPriceX96: q96,
		FeeAmount:    uint256.NewInt(1),
		TicksCrossed: 1,
	})
	if len(w.metrics) != 0 {
		t.Fatalf("window flushed early")
	}
	observe(t, agg, 1075, pool.SwapEvent{
		Amount0:      fullmath.FromInt64(-50),
		Amount1:      uint256.NewInt(60),
		SqrtPriceX96: new(uint256.Int).Lsh(uint256.NewInt(1), 97),
		Tick:         13863,
		FeeAmount:    uint256.NewInt(2),
	})
	if err := agg.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(w.metrics) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(w.metrics))
	}

	first := w.metrics[0]
	if first.WindowStart.Unix() != 960 || first.WindowEnd.Unix() != 1020 {
		t.Fatalf("window bounds: %v %v", first.WindowStart, first.WindowEnd)
	}
	if first.SwapCount != 1 || first.TicksCrossed != 1 {
		t.Fatalf("counts: %+v", first)
	}
	if first.Volume0 != "100" || first.Volume1 != "99" || first.Fee0 != "1" || first.Fee1 != "0" {
		t.Fatalf("volumes: %+v", first)
	}
	if first.TVL0 == nil || *first.TVL0 != "1100" || first.TVL1 == nil || *first.TVL1 != "901" {
		t.Fatalf("tvl: %v %v", first.TVL0, first.TVL1)
	}
	if first.FeeRate0 == nil || *first.FeeRate0 != "0.000909090909090909" || first.FeeRate1 != nil {
		t.Fatalf("fee rates: %v %v", first.FeeRate0, first.FeeRate1)
	}
	if first.APR == nil {
		t.Fatalf("apr missing")
	}
	if first.OpenPrice != "1.000000000000000000" || first.ClosePrice != "1.000000000000000000" {
		t.Fatalf("prices: %s %s", first.OpenPrice, first.ClosePrice)
	}
	if first.FeeMethod != feeMethodExact || first.TVLMethod != tvlMethodEvents {
		t.Fatalf("methods: %s %s", first.FeeMethod, first.TVLMethod)
	}

	second := w.metrics[1]
	if second.OpenPrice != "1.000000000000000000" || second.ClosePrice != "4.000000000000000000" {
		t.Fatalf("second prices: %s %s", second.OpenPrice, second.ClosePrice)
	}
	if second.CloseTick != 13863 || second.Fee1 != "2" || second.Fee0 != "0" {
		t.Fatalf("second window: %+v", second)
	}
	if *second.TVL0 != "1050" || *second.TVL1 != "961" {
		t.Fatalf("second tvl: %s %s", *second.TVL0, *second.TVL1)
	}
}

func TestAggregatorApproximatesMissingFee(t *testing.T) {
	w := &memoryWriter{}
	agg := newTestAggregator(t, w)
	observe(t, agg, 10, pool.SwapEvent{
		Amount0:      uint256.NewInt(1_000_000),
		Amount1:      fullmath.FromInt64(-990_000),
		SqrtPriceX96: q96,
	})
	if err := agg.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(w.metrics) != 1 {
		t.Fatalf("expected 1 window, got %d", len(w.metrics))
	}
	m := w.metrics[0]
	if m.Fee0 != "3000" || m.FeeMethod != feeMethodApprox {
		t.Fatalf("approx fee: %s %s", m.Fee0, m.FeeMethod)
	}
	if m.OpenPrice != "0" {
		t.Fatalf("open price before initialize: %s", m.OpenPrice)
	}
}

func TestAggregatorRejects(t *testing.T) {
	w := &memoryWriter{}
	agg := newTestAggregator(t, w)
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")
	if err := agg.Observe(context.Background(), pool.Record{Pool: other, Event: pool.CollectEvent{}}, 0); err == nil {
		t.Fatalf("expected unregistered pool error")
	}
	observe(t, agg, 200, pool.CollectEvent{})
	if err := agg.Observe(context.Background(), pool.Record{Pool: testPool, Timestamp: 100, Event: pool.CollectEvent{}}, 0); err == nil {
		t.Fatalf("expected out of order error")
	}
}

func TestAggregatorSinkKeepsFirstError(t *testing.T) {
	w := &memoryWriter{}
	agg := newTestAggregator(t, w)
	sink := agg.Sink(context.Background())
	sink.Publish(pool.Record{Pool: common.HexToAddress("0x3"), Event: pool.CollectEvent{}})
	first := agg.Err()
	if first == nil {
		t.Fatalf("expected error")
	}
	sink.Publish(pool.Record{Pool: testPool, Timestamp: 5, Event: pool.CollectEvent{}})
	if agg.Err() != first {
		t.Fatalf("error replaced")
	}
}

func TestPriceFromSqrtX96Decimals(t *testing.T) {
	price, err := PriceFromSqrtX96(q96, 18, 6)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.String() != "1000000000000.000000000000000000" {
		t.Fatalf("price %s", price)
	}
	if _, err := PriceFromSqrtX96(new(uint256.Int).Lsh(uint256.NewInt(1), 159), 18, 0); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestComputeAPR(t *testing.T) {
	r0, r1 := computeFeeRates(big.NewInt(1), big.NewInt(1), big.NewInt(100), big.NewInt(100))
	if computeAPR(r0, r1, 60) != nil {
		t.Fatalf("apr defined with fees in both tokens")
	}
	apr := computeAPR(r0, nil, uint64(yearSeconds))
	if apr == nil || apr.String() != "0.010000000000000000" {
		t.Fatalf("apr %v", apr)
	}
	if computeRate(big.NewInt(1), big.NewInt(0)) != nil {
		t.Fatalf("rate over zero tvl")
	}
}

func TestFormatTokenAmount(t *testing.T) {
	if got := formatTokenAmount(big.NewInt(-1500), 3); got != "-1.500" {
		t.Fatalf("got %s", got)
	}
	if got := formatTokenAmount(big.NewInt(42), 0); got != "42" {
		t.Fatalf("got %s", got)
	}
}
