package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

// Event names, matching the V3 pool event names.
const (
	EventInitialize                         = "Initialize"
	EventMint                               = "Mint"
	EventBurn                               = "Burn"
	EventCollect                            = "Collect"
	EventSwap                               = "Swap"
	EventFlash                              = "Flash"
	EventSetFeeProtocol                     = "SetFeeProtocol"
	EventCollectProtocol                    = "CollectProtocol"
	EventIncreaseObservationCardinalityNext = "IncreaseObservationCardinalityNext"
)

// Event is emitted by a committed operation.
type Event interface {
	EventName() string
}

// Record wraps an event with the pool and time it was emitted at. Sequence counts events of
// one engine starting at zero.
type Record struct {
	Pool      common.Address
	Timestamp uint32
	Sequence  uint64
	Event     Event
}

// EventSink receives the events of an operation after it commits.
type EventSink interface {
	Publish(rec Record)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(rec Record)

func (f EventSinkFunc) Publish(rec Record) { f(rec) }

type InitializeEvent struct {
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

type MintEvent struct {
	Sender    common.Address
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Amount    uint128.Uint128
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

type BurnEvent struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Amount    uint128.Uint128
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

type CollectEvent struct {
	Owner     common.Address
	Recipient common.Address
	TickLower int32
	TickUpper int32
	Amount0   uint128.Uint128
	Amount1   uint128.Uint128
}

// SwapEvent amounts are two's complement: positive is paid into the pool. FeeAmount and
// TicksCrossed are not part of the on-chain log; FeeAmount is the whole fee charged in the
// input asset, protocol share included.
type SwapEvent struct {
	Sender       common.Address
	Recipient    common.Address
	Amount0      *uint256.Int
	Amount1      *uint256.Int
	SqrtPriceX96 *uint256.Int
	Liquidity    uint128.Uint128
	Tick         int32
	FeeAmount    *uint256.Int
	TicksCrossed int
}

type FlashEvent struct {
	Sender    common.Address
	Recipient common.Address
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Paid0     *uint256.Int
	Paid1     *uint256.Int
}

type SetFeeProtocolEvent struct {
	FeeProtocol0Old uint8
	FeeProtocol1Old uint8
	FeeProtocol0New uint8
	FeeProtocol1New uint8
}

type CollectProtocolEvent struct {
	Sender    common.Address
	Recipient common.Address
	Amount0   uint128.Uint128
	Amount1   uint128.Uint128
}

type IncreaseObservationCardinalityNextEvent struct {
	ObservationCardinalityNextOld uint16
	ObservationCardinalityNextNew uint16
}

func (InitializeEvent) EventName() string { return EventInitialize }
func (MintEvent) EventName() string { return EventMint }
func (BurnEvent) EventName() string { return EventBurn }
func (CollectEvent) EventName() string { return EventCollect }
func (SwapEvent) EventName() string { return EventSwap }
func (FlashEvent) EventName() string { return EventFlash }
func (SetFeeProtocolEvent) EventName() string { return EventSetFeeProtocol }
func (CollectProtocolEvent) EventName() string { return EventCollectProtocol }
func (IncreaseObservationCardinalityNextEvent) EventName() string {
	return EventIncreaseObservationCardinalityNext
}

// MultiSink publishes every record to each sink in order.
type MultiSink []EventSink

func (m MultiSink) Publish(rec Record) {
	for _, s := range m {
		if s != nil {
			s.Publish(rec)
		}
	}
}
