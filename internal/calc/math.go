// Package calc holds the integer and decimal math shared by the reduction handlers.
// Nothing in here touches floating point.
package calc

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// HealthFactorPrecision is the number of decimal places kept when dividing by debt.
const HealthFactorPrecision = 18

var (
	// PriceScale is the 1e18 fixed-point scale of collateral prices.
	PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// PercentageScale turns a ratio into a percentage (100 = 1.0x).
	PercentageScale = big.NewInt(100)

	hundred = decimal.NewFromInt(100)
)

// Zero returns a fresh zero value.
func Zero() *big.Int { return new(big.Int) }

// Add returns a+b without touching either argument. Nil counts as zero.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(orZero(a), orZero(b))
}

// SaturatingSub returns max(a-b, 0).
//
// Balances derived from events can drift from the chain (missed events, rounding on the
// contract side); the reduction clamps at zero instead of failing the event.
func SaturatingSub(a, b *big.Int) *big.Int {
	a, b = orZero(a), orZero(b)
	if a.Cmp(b) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(a, b)
}

// Neg returns -v.
func Neg(v *big.Int) *big.Int {
	return new(big.Int).Neg(orZero(v))
}

// IsPositive reports v > 0.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// HealthFactor computes (collateral*price/PriceScale)*100/debt.
// It is zero when debt, price or the collateral value is zero.
func HealthFactor(collateral, debt, price *big.Int) decimal.Decimal {
	if !IsPositive(debt) || !IsPositive(price) {
		return decimal.Zero
	}
	value := new(big.Int).Mul(orZero(collateral), price)
	value.Quo(value, PriceScale)
	if value.Sign() == 0 {
		return decimal.Zero
	}
	numerator := value.Mul(value, PercentageScale)
	return decimal.NewFromBigInt(numerator, 0).DivRound(decimal.NewFromBigInt(debt, 0), HealthFactorPrecision)
}

// PoolShare returns the provider's claim on both reserves using truncating division.
func PoolShare(provided, totalLiquidity, reserveMUSD, reserveRWA *big.Int) (amountMUSD, amountRWA *big.Int) {
	if !IsPositive(totalLiquidity) || !IsPositive(provided) {
		return new(big.Int), new(big.Int)
	}
	amountMUSD = new(big.Int).Mul(orZero(reserveMUSD), provided)
	amountMUSD.Quo(amountMUSD, totalLiquidity)
	amountRWA = new(big.Int).Mul(orZero(reserveRWA), provided)
	amountRWA.Quo(amountRWA, totalLiquidity)
	return amountMUSD, amountRWA
}

// ToPercentage renders a percentage-scaled integer as a ratio (v/100).
func ToPercentage(v *big.Int) decimal.Decimal {
	if v == nil || v.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0).Div(hundred)
}

// ParseAmount parses a base-10 unsigned integer.
func ParseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
