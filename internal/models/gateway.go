package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GatewayMode string

const (
	GatewayModeTest GatewayMode = "test"
	GatewayModeLive GatewayMode = "live"
)

// GatewayConfig is the read-only configuration for one checkout or
// verification call. It is loaded by the caller (platform defaults or a
// vendor override) and passed explicitly; the core never reads it from
// ambient state.
type GatewayConfig struct {
	Enabled     bool
	EntityID    string
	AccessToken string
	BaseURL     string
	ServerURL   string // trusted intermediary for the primary checkout path
	Mode        GatewayMode
	CardEnabled bool
}

// Configured reports whether the config carries enough to talk to the
// gateway at all.
func (c GatewayConfig) Configured() bool {
	return c.Enabled && c.EntityID != "" && c.AccessToken != "" && c.BaseURL != ""
}

// VendorGatewayConfig is a per-vendor override of the platform gateway
// settings, managed by the settings collaborator.
type VendorGatewayConfig struct {
	bun.BaseModel `bun:"table:vendor_gateway_configs"`

	VendorID    string      `bun:"vendor_id,pk" json:"vendor_id"`
	Enabled     bool        `bun:"enabled,notnull,default:false" json:"enabled"`
	EntityID    string      `bun:"entity_id,nullzero" json:"entity_id,omitempty"`
	AccessToken string      `bun:"access_token,nullzero" json:"-"`
	BaseURL     string      `bun:"base_url,nullzero" json:"base_url,omitempty"`
	Mode        GatewayMode `bun:"mode,nullzero" json:"mode,omitempty"`
}

// CheckoutSession is one attempt to pay via the hosted gateway widget. It
// lives in Redis with a TTL; once the TTL elapses the attempt is terminal.
type CheckoutSession struct {
	CheckoutID   string    `json:"checkout_id"`
	BookingID    string    `json:"booking_id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	MerchantTxID string    `json:"merchant_tx_id"`
	Strategy     string    `json:"strategy"` // which checkout path produced the session
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *CheckoutSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// VerificationResult is the classified outcome of fetching a checkout's
// final status from the gateway. A decline is a valid result, not an error.
type VerificationResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Code          string `json:"code"`
	Description   string `json:"description,omitempty"`
}
