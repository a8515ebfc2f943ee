package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentState string

const (
	PaymentUnpaid  PaymentState = "unpaid"
	PaymentPartial PaymentState = "partial"
	PaymentPaid    PaymentState = "paid"
)

type AssetType string

const (
	AssetHall      AssetType = "hall"
	AssetChalet    AssetType = "chalet"
	AssetService   AssetType = "service"
	AssetStoreItem AssetType = "store_item"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID     string        `bun:"booking_id,pk" json:"booking_id"`
	AssetID       string        `bun:"asset_id,notnull" json:"asset_id"`
	AssetType     AssetType     `bun:"asset_type,notnull" json:"asset_type"`
	VendorID      string        `bun:"vendor_id,notnull" json:"vendor_id"`
	PayerID       string        `bun:"payer_id,nullzero" json:"payer_id,omitempty"` // empty for guest bookings
	TotalAmount   float64       `bun:"total_amount,notnull" json:"total_amount"`
	VATAmount     float64       `bun:"vat_amount,notnull" json:"vat_amount"`
	PaidAmount    float64       `bun:"paid_amount,notnull,default:0" json:"paid_amount"`
	Status        BookingStatus `bun:"status,notnull" json:"status"`
	PaymentStatus PaymentState  `bun:"payment_status,notnull" json:"payment_status"`
	CouponCode    string        `bun:"coupon_code,nullzero" json:"coupon_code,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type BookingRequest struct {
	AssetID    string    `json:"asset_id"`
	AssetType  AssetType `json:"asset_type"`
	VendorID   string    `json:"vendor_id"`
	PayerID    string    `json:"payer_id,omitempty"`
	BaseAmount float64   `json:"base_amount"`
	CouponCode string    `json:"coupon_code,omitempty"`
}

type BookingResponse struct {
	BookingID      string        `json:"booking_id"`
	TotalAmount    float64       `json:"total_amount"`
	VATAmount      float64       `json:"vat_amount"`
	DiscountAmount float64       `json:"discount_amount,omitempty"`
	DepositAmount  float64       `json:"deposit_amount,omitempty"`
	Status         BookingStatus `json:"status"`
	PaymentStatus  PaymentState  `json:"payment_status"`
}
