package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window. Amounts are in display units
// of each token; rates and APR are fractions.
type PoolWindowMetrics struct {
	ChainID        uint64    `json:"chain_id"`
	PoolAddress    string    `json:"pool_address"`
	WindowSizeSecs int64     `json:"window_size_secs"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	TicksCrossed   uint64    `json:"ticks_crossed"`
	Volume0        string    `json:"volume0"`
	Volume1        string    `json:"volume1"`
	Fee0           string    `json:"fee0"`
	Fee1           string    `json:"fee1"`
	FeeRate0       *string   `json:"fee_rate0,omitempty"`
	FeeRate1       *string   `json:"fee_rate1,omitempty"`
	TVL0           *string   `json:"tvl0,omitempty"`
	TVL1           *string   `json:"tvl1,omitempty"`
	APR            *string   `json:"apr,omitempty"`
	OpenPrice      string    `json:"open_price"`
	ClosePrice     string    `json:"close_price"`
	CloseTick      int32     `json:"close_tick"`
	FeeMethod      string    `json:"fee_method"`
	TVLMethod      string    `json:"tvl_method"`
}
