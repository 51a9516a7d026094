package model

// Scenario op names.
const (
	OpInitialize          = "initialize"
	OpMint                = "mint"
	OpBurn                = "burn"
	OpCollect             = "collect"
	OpSwap                = "swap"
	OpFlash               = "flash"
	OpAdvance             = "advance"
	OpObserve             = "observe"
	OpSnapshot            = "snapshot"
	OpSetFeeProtocol      = "set_fee_protocol"
	OpCollectProtocol     = "collect_protocol"
	OpIncreaseCardinality = "increase_cardinality"
)

// ScenarioOp is one line of a simulation script. Fields not used by an op are ignored.
// Amounts are decimal strings; AmountSpecified is signed (negative means exact output).
type ScenarioOp struct {
	Op                string   `json:"op"`
	Sender            string   `json:"sender,omitempty"`
	Recipient         string   `json:"recipient,omitempty"`
	TickLower         int32    `json:"tick_lower,omitempty"`
	TickUpper         int32    `json:"tick_upper,omitempty"`
	Amount            string   `json:"amount,omitempty"`
	Amount0           string   `json:"amount0,omitempty"`
	Amount1           string   `json:"amount1,omitempty"`
	ZeroForOne        bool     `json:"zero_for_one,omitempty"`
	AmountSpecified   string   `json:"amount_specified,omitempty"`
	SqrtPriceLimitX96 string   `json:"sqrt_price_limit_x96,omitempty"`
	SqrtPriceX96      string   `json:"sqrt_price_x96,omitempty"`
	Seconds           uint32   `json:"seconds,omitempty"`
	SecondsAgos       []uint32 `json:"seconds_agos,omitempty"`
	FeeProtocol0      uint8    `json:"fee_protocol0,omitempty"`
	FeeProtocol1      uint8    `json:"fee_protocol1,omitempty"`
	CardinalityNext   uint16   `json:"cardinality_next,omitempty"`
	// ExpectError names the error kind the op must fail with, e.g. "insufficient liquidity".
	ExpectError string `json:"expect_error,omitempty"`
}

// OpResult is the outcome of one scenario op.
type OpResult struct {
	Index                              int      `json:"index"`
	Op                                 string   `json:"op"`
	Amount0                            string   `json:"amount0,omitempty"`
	Amount1                            string   `json:"amount1,omitempty"`
	TickCumulatives                    []int64  `json:"tick_cumulatives,omitempty"`
	SecondsPerLiquidityCumulativeX128s []string `json:"seconds_per_liquidity_cumulative_x128s,omitempty"`
	SecondsInside                      uint32   `json:"seconds_inside,omitempty"`
	Timestamp                          uint32   `json:"timestamp"`
	Tick                               int32    `json:"tick"`
	SqrtPriceX96                       string   `json:"sqrt_price_x96"`
	Liquidity                          string   `json:"liquidity"`
	Error                              string   `json:"error,omitempty"`
}
