package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount    = errors.New("payment amount must be positive")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingCancelled = errors.New("booking is cancelled")
	ErrPaymentDeclined  = errors.New("payment declined by gateway")
	ErrPaymentExpired   = errors.New("checkout session expired before verification")
	ErrBookingBusy      = errors.New("booking is being updated by another request")

	// ErrDuplicateReference is the store-level signal that a ledger row with
	// the same (booking_id, gateway_reference) already exists. The service
	// turns it into a no-op success.
	ErrDuplicateReference = errors.New("gateway reference already recorded")
)

// OverpaymentError reports a payment that would push paid_amount past
// total_amount, with the largest amount the booking can still accept.
type OverpaymentError struct {
	BookingID     string
	Attempted     float64
	MaxAcceptable float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %.2f would overpay booking %s (max acceptable: %.2f)",
		e.Attempted, e.BookingID, e.MaxAcceptable)
}
