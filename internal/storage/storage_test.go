package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
)

func TestJsonlStorageAppendsAndReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")
	s := NewJsonlStorage(path)

	if err := s.PutLogBatch([]model.LogRecord{{LogIndex: 0}, {LogIndex: 1}}); err != nil {
		t.Fatalf("put logs: %v", err)
	}
	if err := s.UpsertWindowMetrics(context.Background(), []model.PoolWindowMetrics{{SwapCount: 3}}); err != nil {
		t.Fatalf("put metrics: %v", err)
	}

	var lines []int
	err := ReadJSONL(path, func(lineNo int, line []byte) error {
		var fields map[string]interface{}
		if err := json.Unmarshal(line, &fields); err != nil {
			return err
		}
		lines = append(lines, lineNo)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
}

func TestReadJSONLStopsOnCallbackError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	s := NewJsonlStorage(path)
	if err := s.PutLogBatch([]model.LogRecord{{}, {}, {}}); err != nil {
		t.Fatalf("put logs: %v", err)
	}
	stop := errors.New("stop")
	calls := 0
	err := ReadJSONL(path, func(int, []byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

type failingStorage struct{ calls int }

func (f *failingStorage) PutLogBatch([]model.LogRecord) error {
	f.calls++
	return errors.New("disk full")
}

type memoryStorage struct{ logs []model.LogRecord }

func (m *memoryStorage) PutLogBatch(logs []model.LogRecord) error {
	m.logs = append(m.logs, logs...)
	return nil
}

func initializeRecord(seq uint64) pool.Record {
	return pool.Record{
		Pool:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Sequence: seq,
		Event:    pool.InitializeEvent{SqrtPriceX96: uint256.NewInt(1 << 40), Tick: -100},
	}
}

func TestLogSinkBatches(t *testing.T) {
	encoder, err := dex.NewEncoder(1)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	out := &memoryStorage{}
	sink := NewLogSink(encoder, out, 2)

	for i := uint64(0); i < 3; i++ {
		sink.Publish(initializeRecord(i))
	}
	if len(out.logs) != 2 {
		t.Fatalf("expected one full batch written, got %d logs", len(out.logs))
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if sink.Written() != 3 || out.logs[2].LogIndex != 2 {
		t.Fatalf("written=%d logs=%+v", sink.Written(), out.logs)
	}
}

func TestLogSinkKeepsFirstError(t *testing.T) {
	encoder, err := dex.NewEncoder(1)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	out := &failingStorage{}
	sink := NewLogSink(encoder, out, 1)
	sink.Publish(initializeRecord(0))
	sink.Publish(initializeRecord(1))

	if err := sink.Flush(); err == nil {
		t.Fatalf("expected error")
	}
	if out.calls != 1 {
		t.Fatalf("storage called %d times after failing", out.calls)
	}
}
