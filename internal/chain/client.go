// Package chain is the RPC boundary used to follow a deployed pool.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const blockTimesSize = 4096

// Client reads logs, heads and contract state from one endpoint.
type Client struct {
	rpc   *rpc.Client
	eth   *ethclient.Client
	times *lru.Cache[uint64, uint64]
}

// NewClient dials rpcURL. http, ws and ipc endpoints are accepted.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &Client{rpc: rc, eth: ethclient.NewClient(rc), times: lru.NewCache[uint64, uint64](blockTimesSize)}, nil
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

// SafeBlockNumber is the head minus confirmations, floored at zero.
func (c *Client) SafeBlockNumber(ctx context.Context, confirmations uint64) (uint64, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return head - min(head, confirmations), nil
}

// BlockTimestamp returns the header time of a block. Recent lookups are cached since every
// log of a block shares one.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if ts, ok := c.times.Get(number); ok {
		return ts, nil
	}
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}
	c.times.Add(number, header.Time)
	return header.Time, nil
}

// FilterLogs fetches logs of [fromBlock, toBlock] emitted by addresses with a topic0 in
// topic0. An empty topic0 matches every event.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		q.Topics = [][]common.Hash{topic0}
	}
	return c.eth.FilterLogs(ctx, q)
}

// CallContract runs eth_call at blockNumber, nil meaning latest.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, blockNumber)
}
