package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityEngine/internal/model"
)

type fakeSource struct {
	head       uint64
	logs       []types.Log
	failFilter int
	// maxSpan rejects larger queries the way providers cap results
	maxSpan uint64
	filters [][2]uint64
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(5), nil }

func (f *fakeSource) SafeBlockNumber(_ context.Context, confirmations uint64) (uint64, error) {
	if f.head < confirmations {
		return 0, nil
	}
	return f.head - confirmations, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	if f.failFilter > 0 {
		f.failFilter--
		return nil, errors.New("rpc unavailable")
	}
	if f.maxSpan > 0 && to-from+1 > f.maxSpan {
		return nil, errors.New("query returned more than 10000 results")
	}
	f.filters = append(f.filters, [2]uint64{from, to})
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_000 + number*12, nil
}

var runnerPool = common.HexToAddress("0x1111111111111111111111111111111111111111")

func testLog(block uint64, index uint, tx byte) types.Log {
	return types.Log{
		Address:     runnerPool,
		Topics:      []common.Hash{common.HexToHash("0x01")},
		BlockNumber: block,
		TxHash:      common.Hash{tx},
		Index:       index,
	}
}

func TestRunnerDeliversOrderedBatches(t *testing.T) {
	source := &fakeSource{
		head: 20,
		logs: []types.Log{
			testLog(11, 3, 2),
			testLog(11, 1, 1),
			testLog(11, 1, 1),
			testLog(14, 0, 3),
		},
	}
	var got []model.LogRecord
	handler := HandlerFunc(func(_ context.Context, records []model.LogRecord) error {
		got = append(got, records...)
		return nil
	})
	cp := NewFileCheckpointStore(filepath.Join(t.TempDir(), "cp.json"))
	runner := NewRunner(RunConfig{
		FromBlock:     10,
		Addresses:     []common.Address{runnerPool},
		BatchSize:     3,
		Confirmations: 5,
		RetryBackoff:  time.Millisecond,
	}, source, handler, WithCheckpoint(cp))

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(source.filters) != 2 || source.filters[1] != [2]uint64{13, 15} {
		t.Fatalf("ranges %v", source.filters)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].LogIndex != 1 || got[1].LogIndex != 3 || got[2].BlockNumber != 14 {
		t.Fatalf("order mismatch: %+v", got)
	}
	if got[0].ChainID != 5 || got[0].Timestamp != 1_132 {
		t.Fatalf("record fields: %+v", got[0])
	}

	last, ok, err := cp.Load(context.Background())
	if err != nil || !ok || last != 15 {
		t.Fatalf("checkpoint %d %v %v", last, ok, err)
	}

	// a second run resumes after the checkpoint
	source.head = 23
	source.filters = nil
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(source.filters) != 1 || source.filters[0] != [2]uint64{16, 18} {
		t.Fatalf("resume ranges %v", source.filters)
	}
}

func TestRunnerRetriesFilterLogs(t *testing.T) {
	source := &fakeSource{head: 3, failFilter: 2}
	calls := 0
	runner := NewRunner(RunConfig{
		Addresses:    []common.Address{runnerPool},
		BatchSize:    10,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, source, HandlerFunc(func(context.Context, []model.LogRecord) error {
		calls++
		return nil
	}))
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler calls %d", calls)
	}

	source = &fakeSource{head: 3, failFilter: 5}
	runner = NewRunner(RunConfig{
		Addresses:    []common.Address{runnerPool},
		BatchSize:    10,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, source, HandlerFunc(func(context.Context, []model.LogRecord) error { return nil }))
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected retry exhaustion")
	}
}

func TestRunnerSplitsOversizedRange(t *testing.T) {
	source := &fakeSource{
		head:    9,
		maxSpan: 3,
		logs:    []types.Log{testLog(1, 0, 1), testLog(5, 2, 2), testLog(9, 0, 3)},
	}
	var got []model.LogRecord
	runner := NewRunner(RunConfig{
		Addresses: []common.Address{runnerPool},
		BatchSize: 10,
	}, source, HandlerFunc(func(_ context.Context, records []model.LogRecord) error {
		got = append(got, records...)
		return nil
	}))
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := [][2]uint64{{0, 2}, {3, 4}, {5, 7}, {8, 9}}
	if len(source.filters) != len(want) {
		t.Fatalf("ranges %v", source.filters)
	}
	for i := range want {
		if source.filters[i] != want[i] {
			t.Fatalf("ranges %v, want %v", source.filters, want)
		}
	}
	if len(got) != 3 || got[2].BlockNumber != 9 {
		t.Fatalf("records %+v", got)
	}
}

func TestRunnerHandlerErrorStopsBeforeCheckpoint(t *testing.T) {
	source := &fakeSource{head: 5, logs: []types.Log{testLog(2, 0, 1)}}
	cp := NewFileCheckpointStore(filepath.Join(t.TempDir(), "cp.json"))
	runner := NewRunner(RunConfig{
		Addresses: []common.Address{runnerPool},
		BatchSize: 10,
	}, source, HandlerFunc(func(context.Context, []model.LogRecord) error {
		return errors.New("mismatch")
	}), WithCheckpoint(cp))
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected handler error")
	}
	if _, ok, _ := cp.Load(context.Background()); ok {
		t.Fatalf("checkpoint saved after failed batch")
	}
}

func TestRunnerFollowStopsOnCancel(t *testing.T) {
	source := &fakeSource{head: 1}
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(RunConfig{
		Addresses:    []common.Address{runnerPool},
		BatchSize:    10,
		Follow:       true,
		PollInterval: time.Millisecond,
	}, source, HandlerFunc(func(context.Context, []model.LogRecord) error {
		cancel()
		return nil
	}))
	if err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancel, got %v", err)
	}
}

type memoryState map[string]uint64

func (m memoryState) LoadState(_ context.Context, name string) (uint64, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

func (m memoryState) SaveState(_ context.Context, name string, block uint64) error {
	m[name] = block
	return nil
}

func TestDBCheckpointStore(t *testing.T) {
	state := memoryState{}
	cp := NewDBCheckpointStore(state, "follow:pool")
	if _, ok, err := cp.Load(context.Background()); ok || err != nil {
		t.Fatalf("unexpected checkpoint")
	}
	if err := cp.Save(context.Background(), 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	if state["follow:pool"] != 42 {
		t.Fatalf("state %v", state)
	}
}

func TestParseTopic0(t *testing.T) {
	topics, err := ParseTopic0([]string{"swap", " ", "0xab" + strings.Repeat("00", 31)})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("topics %v", topics)
	}
	if topics[0].Hex() != "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67" {
		t.Fatalf("swap topic %s", topics[0].Hex())
	}
	if _, err := ParseTopic0([]string{"Transfer"}); err == nil {
		t.Fatalf("expected unknown event error")
	}
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected length error")
	}
}
