package aggregate

import (
	"math/big"
	"time"

	sdkmath "cosmossdk.io/math"
)

var yearSeconds = int64(365 * 24 * time.Hour / time.Second)

// formatTokenAmount renders a raw amount in display units. Raw amounts may use all 256 bits,
// beyond what LegacyDec holds, so this stays on big.Rat.
func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	rat := new(big.Rat).SetFrac(abs, pow10(int(decimals)))
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeFeeRates(fee0, fee1, tvl0, tvl1 *big.Int) (*sdkmath.LegacyDec, *sdkmath.LegacyDec) {
	return computeRate(fee0, tvl0), computeRate(fee1, tvl1)
}

// computeRate is fee/tvl, or nil when undefined or too large to represent.
func computeRate(fee, tvl *big.Int) *sdkmath.LegacyDec {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return nil
	}
	if fee.BitLen() > maxDecBits-60 || tvl.BitLen() > maxDecBits-60 {
		return nil
	}
	rate := sdkmath.LegacyNewDecFromBigInt(fee).Quo(sdkmath.LegacyNewDecFromBigInt(tvl))
	return &rate
}

// computeAPR annualizes a window fee rate. It is only defined when fees accrued in a single
// token, since the two rates are not comparable without prices.
func computeAPR(feeRate0, feeRate1 *sdkmath.LegacyDec, windowSeconds uint64) *sdkmath.LegacyDec {
	if windowSeconds == 0 {
		return nil
	}
	var selected sdkmath.LegacyDec
	switch {
	case feeRate0 != nil && feeRate1 == nil:
		selected = *feeRate0
	case feeRate1 != nil && feeRate0 == nil:
		selected = *feeRate1
	default:
		return nil
	}
	apr := selected.MulInt64(yearSeconds).QuoInt64(int64(windowSeconds))
	return &apr
}

func decString(d *sdkmath.LegacyDec) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
