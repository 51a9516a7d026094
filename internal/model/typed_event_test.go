package model

import (
	"encoding/json"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:       "0x1111111111111111111111111111111111111111",
		Recipient:    "0x2222222222222222222222222222222222222222",
		Amount0:      "12345678901234567890",
		Amount1:      "-42",
		SqrtPriceX96: "79228162514264337593543950336",
		Liquidity:    "5000000000000000000",
		Tick:         10,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount0", "amount1", "sqrt_price_x96", "liquidity"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestTypedEventRecordTyped(t *testing.T) {
	line := []byte(`{"chain_id":1,"block_number":7,"log_index":3,"address":"0xabc","event_name":"Flash",` +
		`"timestamp":1000,"decoded":{"sender":"0x1","recipient":"0x2","amount0":"10","amount1":"0","paid0":"1","paid1":"0"}}`)

	var rec TypedEventRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	ev, err := rec.Typed()
	if err != nil {
		t.Fatalf("typed failed: %v", err)
	}
	flash, ok := ev.Decoded.(FlashEventData)
	if !ok {
		t.Fatalf("decoded is %T, want FlashEventData", ev.Decoded)
	}
	if flash.Amount0 != "10" || flash.Paid0 != "1" {
		t.Fatalf("unexpected flash payload %+v", flash)
	}
	if ev.BlockNumber != 7 || ev.LogIndex != 3 {
		t.Fatalf("position lost: %+v", ev)
	}
}

func TestDecodePayloadUnknownEvent(t *testing.T) {
	if _, err := DecodePayload("Sync", json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for unknown event")
	}
}
