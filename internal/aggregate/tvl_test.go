package aggregate

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// prunedNode serves balanceOf at latest only, like a node without archive state.
type prunedNode struct {
	balances map[common.Address]int64
	archive  bool
}

func (n prunedNode) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if block != nil && !n.archive {
		return nil, fmt.Errorf("missing trie node")
	}
	bal, ok := n.balances[*msg.To]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return common.LeftPadBytes(big.NewInt(bal).Bytes(), 32), nil
}

func TestChainTVLFallsBackToLatest(t *testing.T) {
	info := PoolInfo{
		Address: testPool,
		Token0:  common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Token1:  common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
	}
	node := prunedNode{balances: map[common.Address]int64{info.Token0: 10, info.Token1: 20}}

	bal0, bal1, method, err := ChainTVL{Client: node}.PoolBalances(context.Background(), info, 100)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if method != tvlMethodLatest || bal0.Int64() != 10 || bal1.Int64() != 20 {
		t.Fatalf("got %s %s via %s", bal0, bal1, method)
	}

	node.archive = true
	_, _, method, err = ChainTVL{Client: node}.PoolBalances(context.Background(), info, 100)
	if err != nil || method != tvlMethodBlock {
		t.Fatalf("archive node: method %s err %v", method, err)
	}

	if _, _, method, err = (ChainTVL{}).PoolBalances(context.Background(), info, 100); err == nil || method != tvlMethodNone {
		t.Fatalf("expected unavailable without a client, got %s %v", method, err)
	}
}
