package pricing

import "math"

// Quote is the tax breakdown for one booking amount.
type Quote struct {
	BaseAmount  float64 `json:"base_amount"`
	VATAmount   float64 `json:"vat_amount"`
	TotalAmount float64 `json:"total_amount"`
}

type DepositMode string

const (
	// DepositFlatFee charges a configured flat fee regardless of the total.
	DepositFlatFee DepositMode = "flat_fee"
	// DepositMaxOf charges max(fixed amount, total * percent).
	DepositMaxOf DepositMode = "max_of"
)

type DepositPolicy struct {
	Mode        DepositMode
	FlatFee     float64
	FixedAmount float64
	Percent     float64 // fraction, e.g. 0.20 for 20%
}

// Round2 rounds a monetary value to 2 decimal places, half up. Applied only
// at output boundaries; intermediate math stays unrounded.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// AddVAT returns the tax-inclusive total for a base amount.
func AddVAT(base, rate float64) float64 {
	return Round2(base * (1 + rate))
}

// ExtractVAT returns the tax portion contained in a tax-inclusive total.
// Inverse of AddVAT: total*rate/(1+rate).
func ExtractVAT(total, rate float64) float64 {
	return Round2(total * rate / (1 + rate))
}

// QuoteBooking computes the tax breakdown for a new booking. When VAT is
// disabled the total equals the base amount.
func QuoteBooking(baseAmount float64, vatEnabled bool, vatRate float64) Quote {
	if !vatEnabled || vatRate <= 0 {
		return Quote{
			BaseAmount:  Round2(baseAmount),
			VATAmount:   0,
			TotalAmount: Round2(baseAmount),
		}
	}
	return Quote{
		BaseAmount:  Round2(baseAmount),
		VATAmount:   Round2(baseAmount * vatRate),
		TotalAmount: Round2(baseAmount * (1 + vatRate)),
	}
}

// DepositAmount returns the up-front amount due for a booking total under
// the given policy. Never exceeds the total.
func DepositAmount(totalAmount float64, policy DepositPolicy) float64 {
	var deposit float64
	switch policy.Mode {
	case DepositFlatFee:
		deposit = policy.FlatFee
	case DepositMaxOf:
		deposit = math.Max(policy.FixedAmount, totalAmount*policy.Percent)
	default:
		deposit = 0
	}
	if deposit > totalAmount {
		deposit = totalAmount
	}
	return Round2(deposit)
}
