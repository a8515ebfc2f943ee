package coupon

import "errors"

var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponExpired      = errors.New("coupon is outside its validity window")
	ErrCouponExhausted    = errors.New("coupon usage limit has been reached")
	ErrCouponBelowMinimum = errors.New("purchase amount is below the coupon minimum")
	ErrCouponNotApplicable = errors.New("coupon does not apply to this asset")

	// ErrRedemptionConflict is returned when the usage counter keeps moving
	// under concurrent redemptions and the bounded retry gives up.
	ErrRedemptionConflict = errors.New("coupon redemption conflicted with concurrent use")
)
