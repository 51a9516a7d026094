package model

import (
	"encoding/json"
	"sort"
	"testing"
)

func TestLogRecordJSONFieldNames(t *testing.T) {
	rec := LogRecord{
		ChainID:     56,
		BlockNumber: 36000000,
		LogIndex:    12,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		Timestamp:   1700000000,
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"chain_id", "block_number", "log_index", "topics", "data", "timestamp"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing field %q in %s", key, b)
		}
	}
}

func TestLogRecordTopic0(t *testing.T) {
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("anonymous log topic0 = %q", got)
	}
	if got := (LogRecord{Topics: []string{"0xaaa", "0xbbb"}}).Topic0(); got != "0xaaa" {
		t.Fatalf("topic0 = %q", got)
	}
}

func TestLogRecordBefore(t *testing.T) {
	logs := []LogRecord{
		{BlockNumber: 2, LogIndex: 0},
		{BlockNumber: 1, LogIndex: 5},
		{BlockNumber: 1, LogIndex: 2},
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Before(logs[j]) })

	want := [][2]uint64{{1, 2}, {1, 5}, {2, 0}}
	for i, w := range want {
		if logs[i].BlockNumber != w[0] || logs[i].LogIndex != w[1] {
			t.Fatalf("position %d: got block %d index %d", i, logs[i].BlockNumber, logs[i].LogIndex)
		}
	}
}
