package indexer

import (
	"fmt"
	"strings"
)

// BlockRange is an inclusive span of blocks.
type BlockRange struct {
	From uint64
	To   uint64
}

func (r BlockRange) Len() uint64 { return r.To - r.From + 1 }

// Halves splits r at its midpoint. A single block cannot be split.
func (r BlockRange) Halves() (BlockRange, BlockRange, bool) {
	if r.From >= r.To {
		return r, BlockRange{}, false
	}
	mid := r.From + (r.To-r.From)/2
	return BlockRange{From: r.From, To: mid}, BlockRange{From: mid + 1, To: r.To}, true
}

// SplitRange cuts [from, to] into consecutive ranges of at most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d before from block %d", to, from)
	}

	out := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == to {
			return out, nil
		}
	}
}

// rangeTooLarge reports whether a provider refused a log query for its size rather than
// failing outright.
func rangeTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"query returned more than",
		"block range",
		"too many results",
		"response size exceeded",
		"limit exceeded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
