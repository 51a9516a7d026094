package aggregate

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
)

// largest integer part LegacyDec arithmetic here is allowed to carry
const maxDecBits = 240

// PriceFromSqrtX96 converts a Q64.96 square root price into the price of token0 in token1,
// adjusted for token decimals, truncated to 18 decimal places.
func PriceFromSqrtX96(sqrtPriceX96 *uint256.Int, decimals0, decimals1 uint8) (sdkmath.LegacyDec, error) {
	sqrt := sqrtPriceX96.ToBig()
	num := new(big.Int).Mul(sqrt, sqrt)
	num.Mul(num, pow10(sdkmath.LegacyPrecision+int(decimals0)))
	den := new(big.Int).Lsh(big.NewInt(1), 192)
	den.Mul(den, pow10(int(decimals1)))
	num.Quo(num, den)
	if num.BitLen() > maxDecBits {
		return sdkmath.LegacyDec{}, fmt.Errorf("price of sqrt %s out of range", sqrtPriceX96.Dec())
	}
	return sdkmath.LegacyNewDecFromBigIntWithPrec(num, sdkmath.LegacyPrecision), nil
}

// priceString renders a price, or "0" when it cannot be represented.
func priceString(sqrtPriceX96 *uint256.Int, decimals0, decimals1 uint8) string {
	if sqrtPriceX96 == nil {
		return "0"
	}
	price, err := PriceFromSqrtX96(sqrtPriceX96, decimals0, decimals1)
	if err != nil {
		return "0"
	}
	return price.String()
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
