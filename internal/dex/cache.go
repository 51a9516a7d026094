package dex

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// metaCache is an address keyed store shared by the decoder and the follow loop.
type metaCache[V any] struct {
	mu      sync.RWMutex
	entries map[common.Address]V
}

func (c *metaCache[V]) Get(addr common.Address) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[addr]
	return v, ok
}

func (c *metaCache[V]) Set(addr common.Address, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[common.Address]V)
	}
	c.entries[addr] = v
}

// PoolMetaCache holds immutable pool parameters by pool address.
type PoolMetaCache struct {
	metaCache[model.PoolMeta]
}

func NewPoolMetaCache() *PoolMetaCache { return &PoolMetaCache{} }

// TokenMetaCache holds ERC20 metadata by token address.
type TokenMetaCache struct {
	metaCache[model.TokenMeta]
}

func NewTokenMetaCache() *TokenMetaCache { return &TokenMetaCache{} }

// fill fetches a token once. Failures are cached too, with whatever fields were read, so a
// broken token does not cost an RPC round trip per log.
func (c *TokenMetaCache) fill(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) {
	if _, ok := c.Get(token); ok {
		return
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil {
		logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	c.Set(token, meta)
}
