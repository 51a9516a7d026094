// Package replay drives a pool engine from outside input: scripted scenarios for simulation
// and decoded chain events for replay and follow.
package replay

import (
	"fmt"
	"strconv"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/types"
)

// SnapshotInfo places a snapshot.
type SnapshotInfo struct {
	ChainID     uint64
	BlockNumber uint64
	Timestamp   uint32
	Decimals0   uint8
	Decimals1   uint8
}

// TakeSnapshot captures the head state of e. Balances are read from l.
func TakeSnapshot(e *pool.Engine, l ledger.Ledger, at SnapshotInfo) model.PoolSnapshot {
	cfg := e.Config()
	slot0 := e.Slot0()
	fg0, fg1 := e.FeeGrowthGlobal()
	fees := e.ProtocolFees()

	price := "0"
	if slot0.Initialized {
		if p, err := aggregate.PriceFromSqrtX96(&slot0.SqrtPriceX96, at.Decimals0, at.Decimals1); err == nil {
			price = p.String()
		}
	}

	return model.PoolSnapshot{
		ChainID:              at.ChainID,
		PoolAddress:          cfg.Address.Hex(),
		BlockNumber:          at.BlockNumber,
		Timestamp:            uint64(at.Timestamp),
		Slot0:                modelSlot0(slot0),
		Liquidity:            e.Liquidity().String(),
		FeeGrowthGlobal0X128: fg0.Dec(),
		FeeGrowthGlobal1X128: fg1.Dec(),
		ProtocolFees0:        fees.Token0.String(),
		ProtocolFees1:        fees.Token1.String(),
		Balance0:             l.BalanceOf(cfg.Token0, cfg.Address).Dec(),
		Balance1:             l.BalanceOf(cfg.Token1, cfg.Address).Dec(),
		InitializedTicks:     len(e.InitializedTicks()),
		Price:                price,
		TakenAt:              time.Now().UTC(),
	}
}

func modelSlot0(s pool.Slot0) model.PoolSlot0 {
	return model.PoolSlot0{
		SqrtPriceX96:               s.SqrtPriceX96.Dec(),
		Tick:                       s.Tick,
		ObservationIndex:           s.ObservationIndex,
		ObservationCardinality:     s.ObservationCardinality,
		ObservationCardinalityNext: s.ObservationCardinalityNext,
		FeeProtocol:                s.FeeProtocol,
		Unlocked:                   true,
	}
}

// StateDiff lists the fields where the engine head differs from a pool state read from chain.
func StateDiff(e *pool.Engine, live model.PoolMeta) []string {
	var diffs []string
	add := func(field, local, remote string) {
		if local != remote {
			diffs = append(diffs, fmt.Sprintf("%s: local %s chain %s", field, local, remote))
		}
	}
	if live.Slot0 != nil {
		local := modelSlot0(e.Slot0())
		add("sqrt_price_x96", local.SqrtPriceX96, live.Slot0.SqrtPriceX96)
		add("tick", strconv.Itoa(int(local.Tick)), strconv.Itoa(int(live.Slot0.Tick)))
		add("observation_index", strconv.Itoa(int(local.ObservationIndex)), strconv.Itoa(int(live.Slot0.ObservationIndex)))
		add("observation_cardinality", strconv.Itoa(int(local.ObservationCardinality)), strconv.Itoa(int(live.Slot0.ObservationCardinality)))
		add("fee_protocol", strconv.Itoa(int(local.FeeProtocol)), strconv.Itoa(int(live.Slot0.FeeProtocol)))
	}
	if live.Liquidity != "" {
		add("liquidity", e.Liquidity().String(), live.Liquidity)
	}
	fg0, fg1 := e.FeeGrowthGlobal()
	if live.FeeGrowthGlobal0X128 != "" {
		add("fee_growth_global0_x128", fg0.Dec(), live.FeeGrowthGlobal0X128)
	}
	if live.FeeGrowthGlobal1X128 != "" {
		add("fee_growth_global1_x128", fg1.Dec(), live.FeeGrowthGlobal1X128)
	}
	return diffs
}

func parseAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "%s %q: %v", field, s, err)
	}
	return v, nil
}

func parseLiquidity(field, s string) (uint128.Uint128, error) {
	if s == "" {
		return uint128.Zero, nil
	}
	v, err := fullmath.ParseUint128(s)
	if err != nil {
		return uint128.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func parseAddress(field, s string, fallback common.Address) (common.Address, error) {
	if s == "" {
		return fallback, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, errorsmod.Wrapf(types.ErrInvalidInput, "%s %q is not an address", field, s)
	}
	return common.HexToAddress(s), nil
}
