package model

import "time"

// Pool is the registry record of a pool the engine has run, locally or against a chain.
type Pool struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Fee            uint32 `json:"fee"`
	TickSpacing    int32  `json:"tick_spacing"`
	Owner          string `json:"owner"`
	Source         string `json:"source"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}

// Pool sources.
const (
	SourceSimulation = "simulation"
	SourceReplay     = "replay"
	SourceFollow     = "follow"
)

// PoolSnapshot is the head state of an engine at a point in time. Price is token1 per
// token0 in display units.
type PoolSnapshot struct {
	ChainID              uint64    `json:"chain_id"`
	PoolAddress          string    `json:"pool_address"`
	BlockNumber          uint64    `json:"block_number"`
	Timestamp            uint64    `json:"timestamp"`
	Slot0                PoolSlot0 `json:"slot0"`
	Liquidity            string    `json:"liquidity"`
	FeeGrowthGlobal0X128 string    `json:"fee_growth_global0_x128"`
	FeeGrowthGlobal1X128 string    `json:"fee_growth_global1_x128"`
	ProtocolFees0        string    `json:"protocol_fees0"`
	ProtocolFees1        string    `json:"protocol_fees1"`
	Balance0             string    `json:"balance0"`
	Balance1             string    `json:"balance1"`
	InitializedTicks     int       `json:"initialized_ticks"`
	Price                string    `json:"price"`
	TakenAt              time.Time `json:"taken_at"`
}
