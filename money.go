package lottery

import "github.com/shopspring/decimal"

// ToCents converts a coin amount to integer cents, rounding half away from zero
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(StakeDecimalPlaces).Round(0).IntPart()
}

// FromCents converts integer cents back to a two-place coin amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -StakeDecimalPlaces)
}

// clampNonNegative floors a balance at zero and rounds it to cents
func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	d = d.Round(StakeDecimalPlaces)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
