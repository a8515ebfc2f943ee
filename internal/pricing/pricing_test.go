package pricing_test

import (
	"math"
	"testing"

	"ms-booking/internal/pricing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteBookingAddsVATOnTop(t *testing.T) {
	q := pricing.QuoteBooking(1000, true, 0.15)

	assert.Equal(t, 1000.0, q.BaseAmount)
	assert.Equal(t, 150.0, q.VATAmount)
	assert.Equal(t, 1150.0, q.TotalAmount)
}

func TestQuoteBookingVATDisabled(t *testing.T) {
	q := pricing.QuoteBooking(1000, false, 0.15)

	assert.Equal(t, 0.0, q.VATAmount)
	assert.Equal(t, 1000.0, q.TotalAmount)
}

func TestExtractVATInverseOfAddVAT(t *testing.T) {
	// extractVat(addVat(base, rate), rate) must equal the VAT portion of the
	// inclusive total within a cent, for a spread of bases and rates.
	bases := []float64{0, 0.01, 1, 99.99, 100, 333.33, 1000, 12345.67}
	rates := []float64{0.05, 0.10, 0.15, 0.20, 0.25}

	for _, base := range bases {
		for _, rate := range rates {
			total := pricing.AddVAT(base, rate)
			extracted := pricing.ExtractVAT(total, rate)
			wantVAT := total - pricing.Round2(total/(1+rate))

			assert.InDeltaf(t, wantVAT, extracted, 0.01,
				"base=%v rate=%v total=%v", base, rate, total)
			// The extracted VAT plus the implied base must rebuild the total.
			assert.InDeltaf(t, total, pricing.Round2(total-extracted)+extracted, 0.005,
				"base=%v rate=%v", base, rate)
		}
	}
}

func TestRound2HalfUp(t *testing.T) {
	// .125 and .375 are exact in binary, so the half is a true half
	assert.Equal(t, 0.13, pricing.Round2(0.125))
	assert.Equal(t, 0.38, pricing.Round2(0.375))
	assert.Equal(t, 10.0, pricing.Round2(10.004))
	assert.Equal(t, 0.0, pricing.Round2(0))
	assert.Equal(t, 1150.0, pricing.Round2(1149.999999))
}

func TestDepositMaxOfPolicy(t *testing.T) {
	policy := pricing.DepositPolicy{
		Mode:        pricing.DepositMaxOf,
		FixedAmount: 500,
		Percent:     0.20,
	}

	// max(500, 20% of 1000) = 500
	assert.Equal(t, 500.0, pricing.DepositAmount(1000, policy))
	// max(500, 20% of 5000) = 1000
	assert.Equal(t, 1000.0, pricing.DepositAmount(5000, policy))
}

func TestDepositFlatFeePolicy(t *testing.T) {
	policy := pricing.DepositPolicy{Mode: pricing.DepositFlatFee, FlatFee: 250}

	assert.Equal(t, 250.0, pricing.DepositAmount(1000, policy))
}

func TestDepositNeverExceedsTotal(t *testing.T) {
	policy := pricing.DepositPolicy{Mode: pricing.DepositFlatFee, FlatFee: 250}

	assert.Equal(t, 100.0, pricing.DepositAmount(100, policy))
}

func TestDepositUnknownModeIsZero(t *testing.T) {
	assert.Equal(t, 0.0, pricing.DepositAmount(1000, pricing.DepositPolicy{}))
}

func TestAddVATNonNegative(t *testing.T) {
	for base := 0.0; base < 50; base += 0.37 {
		total := pricing.AddVAT(base, 0.15)
		assert.True(t, total >= base || math.Abs(total-base) < 0.01)
	}
}
