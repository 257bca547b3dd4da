package pricing

import "github.com/shopspring/decimal"

// Money amounts are quantized to a fixed scale as an explicit final step of
// every calculation, with banker's rounding. Nothing on the pricing path
// goes through floating point.

// Quantize124 rounds to the (12,4) settlement scale.
func Quantize124(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(4)
}

// Quantize102 rounds to the (10,2) display scale.
func Quantize102(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
