package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
	MethodCash     PaymentMethod = "cash"
)

// PaymentLogEntry is one immutable row in the booking ledger. Entries are
// only ever inserted; paid_amount on the booking is derived from their sum.
type PaymentLogEntry struct {
	bun.BaseModel `bun:"table:payment_logs"`

	EntryID          string        `bun:"entry_id,pk" json:"id"`
	BookingID        string        `bun:"booking_id,notnull,unique:payment_logs_booking_reference" json:"booking_id"`
	Amount           float64       `bun:"amount,notnull" json:"amount"`
	Method           PaymentMethod `bun:"payment_method,notnull" json:"payment_method"`
	Notes            string        `bun:"notes,nullzero" json:"notes,omitempty"`
	GatewayReference string        `bun:"gateway_reference,nullzero,unique:payment_logs_booking_reference" json:"gateway_reference,omitempty"`
	CreatedAt        time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type PaymentRequest struct {
	Amount float64       `json:"amount"`
	Method PaymentMethod `json:"payment_method"`
	Notes  string        `json:"notes,omitempty"`
}

type PaymentEvent struct {
	Type      string           `json:"type"`
	BookingID string           `json:"booking_id"`
	Entry     *PaymentLogEntry `json:"entry,omitempty"`
	Booking   *Booking         `json:"booking,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
