package aggregate

import (
	"context"
	"fmt"
	"math/big"

	"liquidityEngine/internal/dex"
)

const (
	tvlMethodEvents = "event_balance"
	tvlMethodBlock  = "balance_of_block"
	tvlMethodLatest = "balance_of_latest"
	tvlMethodNone   = "unavailable"
)

// TVLSource reports the token balances held by a pool at a block.
type TVLSource interface {
	PoolBalances(ctx context.Context, info PoolInfo, blockNumber uint64) (balance0, balance1 *big.Int, method string, err error)
}

// ChainTVL reads balanceOf from the token contracts, at the block and then at latest.
type ChainTVL struct {
	Client dex.ContractCaller
}

func (c ChainTVL) PoolBalances(ctx context.Context, info PoolInfo, blockNumber uint64) (*big.Int, *big.Int, string, error) {
	if c.Client == nil {
		return nil, nil, tvlMethodNone, fmt.Errorf("chain client is nil")
	}
	if blockNumber > 0 {
		block := new(big.Int).SetUint64(blockNumber)
		bal0, err0 := dex.FetchBalanceOf(ctx, c.Client, info.Token0, info.Address, block)
		bal1, err1 := dex.FetchBalanceOf(ctx, c.Client, info.Token1, info.Address, block)
		if err0 == nil && err1 == nil {
			return bal0, bal1, tvlMethodBlock, nil
		}
	}

	bal0, err := dex.FetchBalanceOf(ctx, c.Client, info.Token0, info.Address, nil)
	if err != nil {
		return nil, nil, tvlMethodNone, err
	}
	bal1, err := dex.FetchBalanceOf(ctx, c.Client, info.Token1, info.Address, nil)
	if err != nil {
		return nil, nil, tvlMethodNone, err
	}
	return bal0, bal1, tvlMethodLatest, nil
}

// eventBalances tracks pool balances from the token movements its events describe.
type eventBalances struct {
	balance0 *big.Int
	balance1 *big.Int
}

func newEventBalances() eventBalances {
	return eventBalances{balance0: big.NewInt(0), balance1: big.NewInt(0)}
}

func (b eventBalances) add(delta0, delta1 *big.Int) {
	b.balance0.Add(b.balance0, delta0)
	b.balance1.Add(b.balance1, delta1)
}

func (b eventBalances) copy() (*big.Int, *big.Int) {
	return new(big.Int).Set(b.balance0), new(big.Int).Set(b.balance1)
}
