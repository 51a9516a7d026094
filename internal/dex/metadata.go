package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

func poolContract(caller ContractCaller, pool common.Address, blockNumber uint64) (boundContract, error) {
	if caller == nil {
		return boundContract{}, fmt.Errorf("chain client is nil")
	}
	parsed, err := V3PoolABI()
	if err != nil {
		return boundContract{}, fmt.Errorf("parse pool abi: %w", err)
	}
	c := boundContract{caller: caller, addr: pool, abi: parsed}
	if blockNumber > 0 {
		c.block = new(big.Int).SetUint64(blockNumber)
	}
	return c, nil
}

// FetchPoolMeta reads the immutable parameters an engine is configured with. When tokens is
// set both assets are looked up and cached as well.
func FetchPoolMeta(ctx context.Context, caller ContractCaller, pool common.Address, tokens *TokenMetaCache, logger *zap.Logger) (model.PoolMeta, error) {
	c, err := poolContract(caller, pool, 0)
	if err != nil {
		return model.PoolMeta{}, err
	}

	var assets [2]common.Address
	for i, method := range [2]string{"token0", "token1"} {
		values, err := c.call(ctx, method)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if assets[i], err = asAddress(values[0]); err != nil {
			return model.PoolMeta{}, fmt.Errorf("%s: %w", method, err)
		}
	}

	fee, err := c.number(ctx, "fee")
	if err != nil {
		return model.PoolMeta{}, err
	}
	if !fee.IsUint64() || fee.Uint64() >= 1<<24 {
		return model.PoolMeta{}, fmt.Errorf("fee out of range: %s", fee)
	}
	spacing, err := c.number(ctx, "tickSpacing")
	if err != nil {
		return model.PoolMeta{}, err
	}
	tickSpacing, err := int24FromBig(spacing)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tickSpacing: %w", err)
	}

	if tokens != nil {
		if logger == nil {
			logger = zap.NewNop()
		}
		for _, token := range assets {
			tokens.fill(ctx, caller, token, logger)
		}
	}

	return model.PoolMeta{
		Token0:      assets[0].Hex(),
		Token1:      assets[1].Hex(),
		Fee:         uint32(fee.Uint64()),
		TickSpacing: tickSpacing,
	}, nil
}

// FetchPoolState reads the mutable pool state at a block height, 0 meaning latest. Every
// getter must succeed since the result is diffed against an engine.
func FetchPoolState(ctx context.Context, caller ContractCaller, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	c, err := poolContract(caller, pool, blockNumber)
	if err != nil {
		return model.PoolMeta{}, err
	}

	var meta model.PoolMeta
	for _, getter := range []struct {
		method string
		dst    *string
	}{
		{"liquidity", &meta.Liquidity},
		{"feeGrowthGlobal0X128", &meta.FeeGrowthGlobal0X128},
		{"feeGrowthGlobal1X128", &meta.FeeGrowthGlobal1X128},
	} {
		n, err := c.number(ctx, getter.method)
		if err != nil {
			return model.PoolMeta{}, err
		}
		*getter.dst = n.String()
	}

	var slot0 struct {
		SqrtPriceX96               *big.Int
		Tick                       *big.Int
		ObservationIndex           uint16
		ObservationCardinality     uint16
		ObservationCardinalityNext uint16
		FeeProtocol                uint8
		Unlocked                   bool
	}
	if err := c.into(ctx, &slot0, "slot0"); err != nil {
		return model.PoolMeta{}, err
	}
	if slot0.SqrtPriceX96 == nil || slot0.Tick == nil {
		return model.PoolMeta{}, fmt.Errorf("slot0: incomplete result")
	}
	tick, err := int24FromBig(slot0.Tick)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("slot0 tick: %w", err)
	}
	meta.Slot0 = &model.PoolSlot0{
		SqrtPriceX96:               slot0.SqrtPriceX96.String(),
		Tick:                       tick,
		ObservationIndex:           slot0.ObservationIndex,
		ObservationCardinality:     slot0.ObservationCardinality,
		ObservationCardinalityNext: slot0.ObservationCardinalityNext,
		FeeProtocol:                slot0.FeeProtocol,
		Unlocked:                   slot0.Unlocked,
	}
	return meta, nil
}

// FetchTokenMeta reads decimals, symbol and name of an ERC20. Only decimals is required;
// tokens that encode symbol and name as bytes32 are handled.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	standard, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	legacy, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	erc20 := boundContract{caller: caller, addr: token, abi: standard}
	decimals, err := erc20.number(ctx, "decimals")
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(decimals); err != nil {
		return meta, fmt.Errorf("decimals: %w", err)
	}

	old := boundContract{caller: caller, addr: token, abi: legacy}
	meta.Symbol = readText(ctx, erc20, old, "symbol", logger)
	meta.Name = readText(ctx, erc20, old, "name", logger)
	return meta, nil
}

func readText(ctx context.Context, erc20, old boundContract, method string, logger *zap.Logger) string {
	if values, err := erc20.call(ctx, method); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	values, err := old.call(ctx, method)
	if err != nil {
		logger.Debug("token text getter failed",
			zap.String("token", erc20.addr.Hex()),
			zap.String("method", method),
			zap.Error(err),
		)
		return ""
	}
	if raw, ok := values[0].([32]byte); ok {
		return string(bytes.TrimRight(raw[:], "\x00"))
	}
	return ""
}

// FetchBalanceOf reads an ERC20 balance at a block height, nil meaning latest.
func FetchBalanceOf(ctx context.Context, caller ContractCaller, token, account common.Address, block *big.Int) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return boundContract{caller: caller, addr: token, abi: parsed, block: block}.number(ctx, "balanceOf", account)
}
