// Package ledger is the asset boundary of a pool: balances of fungible assets per account,
// with snapshots so a failed pool operation can undo the transfers it caused.
package ledger

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/types"
)

// Ledger moves assets between accounts.
type Ledger interface {
	BalanceOf(asset, account common.Address) *uint256.Int
	Transfer(asset, from, to common.Address, amount *uint256.Int) error
	// Snapshot returns an id that RevertToSnapshot rolls back to.
	Snapshot() int
	RevertToSnapshot(id int)
}

type balanceKey struct {
	asset   common.Address
	account common.Address
}

type journalEntry struct {
	key  balanceKey
	prev uint256.Int
}

// Memory is an in-memory Ledger. It is not safe for concurrent use.
type Memory struct {
	balances map[balanceKey]uint256.Int
	journal  []journalEntry
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[balanceKey]uint256.Int)}
}

func (m *Memory) BalanceOf(asset, account common.Address) *uint256.Int {
	b := m.balances[balanceKey{asset, account}]
	return &b
}

func (m *Memory) set(key balanceKey, value *uint256.Int) {
	m.journal = append(m.journal, journalEntry{key: key, prev: m.balances[key]})
	if value.IsZero() {
		delete(m.balances, key)
		return
	}
	m.balances[key] = *value
}

// Mint credits amount of asset to account out of thin air.
func (m *Memory) Mint(asset, account common.Address, amount *uint256.Int) error {
	key := balanceKey{asset, account}
	cur := m.balances[key]
	next, overflow := new(uint256.Int).AddOverflow(&cur, amount)
	if overflow {
		return errorsmod.Wrapf(types.ErrOverflow, "balance of %s in %s", account, asset)
	}
	m.set(key, next)
	return nil
}

func (m *Memory) Transfer(asset, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() || from == to {
		return nil
	}
	fromKey, toKey := balanceKey{asset, from}, balanceKey{asset, to}
	fromBal, toBal := m.balances[fromKey], m.balances[toKey]
	if fromBal.Lt(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "%s holds %s of %s, transfer of %s", from, fromBal.Dec(), asset, amount.Dec())
	}
	toNext, overflow := new(uint256.Int).AddOverflow(&toBal, amount)
	if overflow {
		return errorsmod.Wrapf(types.ErrOverflow, "balance of %s in %s", to, asset)
	}
	m.set(fromKey, new(uint256.Int).Sub(&fromBal, amount))
	m.set(toKey, toNext)
	return nil
}

func (m *Memory) Snapshot() int {
	return len(m.journal)
}

func (m *Memory) RevertToSnapshot(id int) {
	for i := len(m.journal) - 1; i >= id; i-- {
		e := m.journal[i]
		if e.prev.IsZero() {
			delete(m.balances, e.key)
		} else {
			m.balances[e.key] = e.prev
		}
	}
	m.journal = m.journal[:id]
}

// Commit drops the journal; earlier snapshot ids become invalid.
func (m *Memory) Commit() {
	m.journal = m.journal[:0]
}

// Balance is one non-zero holding.
type Balance struct {
	Asset   common.Address `json:"asset"`
	Account common.Address `json:"account"`
	Amount  string         `json:"amount"`
}

// Balances lists every non-zero holding ordered by asset then account.
func (m *Memory) Balances() []Balance {
	out := make([]Balance, 0, len(m.balances))
	for k, v := range m.balances {
		out = append(out, Balance{Asset: k.asset, Account: k.account, Amount: v.Dec()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset.Cmp(out[j].Asset) < 0
		}
		return out[i].Account.Cmp(out[j].Account) < 0
	})
	return out
}
