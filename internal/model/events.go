package model

import (
	"encoding/json"
	"fmt"
)

// SwapEventData is the decoded Swap event payload.
type SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// MintEventData is the decoded Mint event payload.
type MintEventData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// BurnEventData is the decoded Burn event payload.
type BurnEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// CollectEventData is the decoded Collect event payload.
type CollectEventData struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// InitializeEventData is the decoded Initialize event payload.
type InitializeEventData struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// FlashEventData is the decoded Flash event payload. Paid amounts are what came back on top
// of the loan.
type FlashEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Paid0     string `json:"paid0"`
	Paid1     string `json:"paid1"`
}

type SetFeeProtocolEventData struct {
	FeeProtocol0Old uint8 `json:"fee_protocol0_old"`
	FeeProtocol1Old uint8 `json:"fee_protocol1_old"`
	FeeProtocol0New uint8 `json:"fee_protocol0_new"`
	FeeProtocol1New uint8 `json:"fee_protocol1_new"`
}

type CollectProtocolEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

type IncreaseObservationCardinalityNextEventData struct {
	ObservationCardinalityNextOld uint16 `json:"observation_cardinality_next_old"`
	ObservationCardinalityNextNew uint16 `json:"observation_cardinality_next_new"`
}

// DecodePayload parses the decoded field of a typed event record into the payload type for
// its event name. Payloads are returned by value, as the decoder produces them.
func DecodePayload(eventName string, raw json.RawMessage) (interface{}, error) {
	switch eventName {
	case "Initialize":
		return decodeAs[InitializeEventData](eventName, raw)
	case "Swap":
		return decodeAs[SwapEventData](eventName, raw)
	case "Mint":
		return decodeAs[MintEventData](eventName, raw)
	case "Burn":
		return decodeAs[BurnEventData](eventName, raw)
	case "Collect":
		return decodeAs[CollectEventData](eventName, raw)
	case "Flash":
		return decodeAs[FlashEventData](eventName, raw)
	case "SetFeeProtocol":
		return decodeAs[SetFeeProtocolEventData](eventName, raw)
	case "CollectProtocol":
		return decodeAs[CollectProtocolEventData](eventName, raw)
	case "IncreaseObservationCardinalityNext":
		return decodeAs[IncreaseObservationCardinalityNextEventData](eventName, raw)
	default:
		return nil, fmt.Errorf("unknown event %q", eventName)
	}
}

func decodeAs[T any](eventName string, raw json.RawMessage) (interface{}, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventName, err)
	}
	return v, nil
}
