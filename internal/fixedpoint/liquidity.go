package fixedpoint

import "math/big"

// AmountsForLiquidity converts liquidity over [sqrtLower, sqrtUpper] into raw token
// amounts at the current sqrt price. All prices are Q96. Degenerate inputs yield zeros.
func AmountsForLiquidity(sqrtCurrent, sqrtLower, sqrtUpper, liquidity *big.Int) (*big.Int, *big.Int) {
	amount0, amount1 := new(big.Int), new(big.Int)
	if sqrtCurrent == nil || sqrtLower == nil || sqrtUpper == nil || liquidity == nil {
		return amount0, amount1
	}
	if sqrtLower.Sign() <= 0 || sqrtUpper.Sign() <= 0 || liquidity.Sign() <= 0 {
		return amount0, amount1
	}

	lower, upper := sqrtLower, sqrtUpper
	if lower.Cmp(upper) > 0 {
		lower, upper = upper, lower
	}

	switch {
	case sqrtCurrent.Cmp(lower) <= 0:
		amount0 = Amount0ForLiquidity(lower, upper, liquidity)
	case sqrtCurrent.Cmp(upper) < 0:
		amount0 = Amount0ForLiquidity(sqrtCurrent, upper, liquidity)
		amount1 = Amount1ForLiquidity(lower, sqrtCurrent, liquidity)
	default:
		amount1 = Amount1ForLiquidity(lower, upper, liquidity)
	}
	return amount0, amount1
}

// Amount0ForLiquidity returns liquidity*Q96*(upper-lower)/(upper*lower).
func Amount0ForLiquidity(sqrtLower, sqrtUpper, liquidity *big.Int) *big.Int {
	if sqrtLower.Sign() <= 0 || sqrtUpper.Sign() <= 0 || liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	lower, upper := sqrtLower, sqrtUpper
	if lower.Cmp(upper) > 0 {
		lower, upper = upper, lower
	}

	num := new(big.Int).Lsh(liquidity, 96)
	num.Mul(num, new(big.Int).Sub(upper, lower))
	den := new(big.Int).Mul(upper, lower)
	return num.Quo(num, den)
}

// Amount1ForLiquidity returns liquidity*(upper-lower)/Q96.
func Amount1ForLiquidity(sqrtLower, sqrtUpper, liquidity *big.Int) *big.Int {
	if sqrtLower.Sign() <= 0 || sqrtUpper.Sign() <= 0 || liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	lower, upper := sqrtLower, sqrtUpper
	if lower.Cmp(upper) > 0 {
		lower, upper = upper, lower
	}

	out := new(big.Int).Sub(upper, lower)
	out.Mul(out, liquidity)
	return out.Rsh(out, 96)
}
