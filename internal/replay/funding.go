package replay

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/tickmath"
)

// payInto mints the amounts to payer and transfers them to the pool. Both moves are journaled,
// so a failing operation takes them back.
func payInto(l *ledger.Memory, cfg pool.Config, payer common.Address, amount0, amount1 *uint256.Int) error {
	for _, leg := range []struct {
		asset  common.Address
		amount *uint256.Int
	}{{cfg.Token0, amount0}, {cfg.Token1, amount1}} {
		if leg.amount == nil || leg.amount.IsZero() {
			continue
		}
		if err := l.Mint(leg.asset, payer, leg.amount); err != nil {
			return err
		}
		if err := l.Transfer(leg.asset, payer, cfg.Address, leg.amount); err != nil {
			return err
		}
	}
	return nil
}

// positive returns the owed part of a swap delta, zero when the delta was paid out.
func positive(delta *uint256.Int) *uint256.Int {
	if fullmath.IsNegative(delta) {
		return new(uint256.Int)
	}
	return delta
}

func extremeLimit(zeroForOne bool) *uint256.Int {
	if zeroForOne {
		return new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1)
	}
	return new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
}
