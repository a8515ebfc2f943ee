package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// TargetRef identifies one asset a coupon applies to. The pair is compared
// as a whole so a hall id can never match a service with the same raw id.
type TargetRef struct {
	Type AssetType `json:"type"`
	ID   string    `json:"id"`
}

type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	CouponID      string       `bun:"coupon_id,pk" json:"coupon_id"`
	OwnerID       string       `bun:"owner_id,notnull,unique:coupons_owner_code" json:"owner_id"`
	Code          string       `bun:"code,notnull,unique:coupons_owner_code" json:"code"`
	DiscountType  DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue float64      `bun:"discount_value,notnull" json:"discount_value"`
	MinPurchase   float64      `bun:"min_purchase,notnull,default:0" json:"min_purchase"`
	MaxDiscount   *float64     `bun:"max_discount,nullzero" json:"max_discount,omitempty"` // percentage coupons only
	UsageLimit    *int         `bun:"usage_limit,nullzero" json:"usage_limit,omitempty"`
	UsageCount    int          `bun:"usage_count,notnull,default:0" json:"usage_count"`
	StartDate     time.Time    `bun:"start_date,notnull" json:"start_date"`
	EndDate       *time.Time   `bun:"end_date,nullzero" json:"end_date,omitempty"`
	IsActive      bool         `bun:"is_active,notnull,default:true" json:"is_active"`
	Targets       []TargetRef  `bun:"targets,type:jsonb" json:"targets"` // empty = all assets of the owner
	CreatedAt     time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// AppliesTo reports whether the coupon covers the given asset. An empty
// target set means the coupon covers everything the owner sells.
func (c *Coupon) AppliesTo(target TargetRef) bool {
	if len(c.Targets) == 0 {
		return true
	}
	for _, t := range c.Targets {
		if t.Type == target.Type && t.ID == target.ID {
			return true
		}
	}
	return false
}
