package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of decimal places kept for derived prices.
const PricePrecision int32 = 30

// SqrtPriceToTokenPrices returns token0Price = (sqrtPriceX96/Q96)^2 * 10^(dec0-dec1)
// and token1Price = 1/token0Price. A zero sqrt price yields zero for both.
func SqrtPriceToTokenPrices(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (decimal.Decimal, decimal.Decimal) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}

	num := decimal.NewFromBigInt(new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96), 0)
	den := decimal.NewFromBigInt(Q192, 0)
	shift := int32(decimals0) - int32(decimals1)

	token0Price := num.Shift(shift).DivRound(den, PricePrecision)
	token1Price := den.Shift(-shift).DivRound(num, PricePrecision)
	return token0Price, token1Price
}

// ConvertTokenToDecimal scales a raw token amount by its decimals.
func ConvertTokenToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// SafeDiv returns a/b, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, PricePrecision)
}
