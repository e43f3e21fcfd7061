package predictor

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// KellyFraction returns the fraction of bankroll to stake on decimal odds
// given an estimated win probability p. The raw Kelly fraction
// (b*p - q) / b with b = odds - 1 and q = 1 - p is clamped to [0, cap] and
// then scaled by the safety fraction. Odds at or below 1.00, or a negative
// edge, return zero.
func KellyFraction(p, odds, cap, safety decimal.Decimal) decimal.Decimal {
	b := odds.Sub(one)
	if !b.IsPositive() {
		return decimal.Zero
	}

	q := one.Sub(p)
	raw := p.Mul(b).Sub(q).Div(b)

	if raw.IsNegative() {
		return decimal.Zero
	}
	if raw.GreaterThan(cap) {
		raw = cap
	}
	return raw.Mul(safety)
}
