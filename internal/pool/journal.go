package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/oracle"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/tick"
)

// journal records how to undo every write made by the operation in flight.
type journal struct {
	undo []func()
}

func (j *journal) record(f func()) {
	j.undo = append(j.undo, f)
}

func (j *journal) revert() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:0]
}

func (j *journal) commit() {
	j.undo = j.undo[:0]
}

// journaledMap is a map whose writes can be rolled back through the journal.
type journaledMap[K comparable, V any] struct {
	m map[K]V
	j *journal
}

func newJournaledMap[K comparable, V any](j *journal) journaledMap[K, V] {
	return journaledMap[K, V]{m: make(map[K]V), j: j}
}

func (jm journaledMap[K, V]) get(k K) V {
	return jm.m[k]
}

func (jm journaledMap[K, V]) remember(k K) {
	prev, ok := jm.m[k]
	jm.j.record(func() {
		if ok {
			jm.m[k] = prev
		} else {
			delete(jm.m, k)
		}
	})
}

func (jm journaledMap[K, V]) set(k K, v V) {
	jm.remember(k)
	jm.m[k] = v
}

func (jm journaledMap[K, V]) del(k K) {
	if _, ok := jm.m[k]; !ok {
		return
	}
	jm.remember(k)
	delete(jm.m, k)
}

type tickStore struct{ journaledMap[int32, tick.Info] }

func (s tickStore) Get(t int32) tick.Info { return s.get(t) }

func (s tickStore) Set(t int32, info tick.Info) { s.set(t, info) }

func (s tickStore) Delete(t int32) { s.del(t) }

type bitmapStore struct{ journaledMap[int16, uint256.Int] }

func (s bitmapStore) Word(pos int16) uint256.Int { return s.get(pos) }

func (s bitmapStore) SetWord(pos int16, word uint256.Int) {
	if word.IsZero() {
		s.del(pos)
		return
	}
	s.set(pos, word)
}

type observationStore struct{ journaledMap[uint16, oracle.Observation] }

func (s observationStore) Observation(i uint16) oracle.Observation { return s.get(i) }

func (s observationStore) SetObservation(i uint16, o oracle.Observation) { s.set(i, o) }

type positionStore struct{ journaledMap[common.Hash, position.Info] }

func (s positionStore) Get(key common.Hash) position.Info { return s.get(key) }

func (s positionStore) Set(key common.Hash, info position.Info) { s.set(key, info) }
