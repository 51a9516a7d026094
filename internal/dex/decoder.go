package dex

import (
	"context"

	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders. Chain may be nil when every pool
// of the input is already in PoolMetaCache.
type DecodeContext struct {
	Context         context.Context
	Chain           ContractCaller
	PoolMetaCache   *PoolMetaCache
	TokenMetaCache  *TokenMetaCache
	Logger          *zap.Logger
	IncludeLiveMeta bool
}
