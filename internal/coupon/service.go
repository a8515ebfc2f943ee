package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/pricing"
)

// redeemRetries bounds the compare-and-increment loop under contention.
const redeemRetries = 3

type Store interface {
	GetCouponByCode(ctx context.Context, ownerID, code string) (*models.Coupon, error)
	// IncrementUsage bumps usage_count by one only if it still equals
	// expectedCount. Returns false when another redemption won the race.
	IncrementUsage(ctx context.Context, couponID string, expectedCount int) (bool, error)
	// ReleaseUsage undoes one increment, used to compensate a redemption
	// whose surrounding operation failed.
	ReleaseUsage(ctx context.Context, couponID string) error
}

type Service struct {
	DB     Store
	logger *logger.Logger
}

func NewService(db Store, log *logger.Logger) *Service {
	return &Service{DB: db, logger: log}
}

// Resolve validates the coupon against a target asset and purchase amount
// and returns the discount it would grant. Pure preview: no side effects.
// Checks run in a fixed order and the first failure wins.
func Resolve(c *models.Coupon, target models.TargetRef, purchaseAmount float64, now time.Time) (float64, error) {
	if c == nil || !c.IsActive {
		return 0, ErrCouponNotFound
	}
	if now.Before(c.StartDate) {
		return 0, ErrCouponExpired
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return 0, ErrCouponExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return 0, ErrCouponExhausted
	}
	if purchaseAmount < c.MinPurchase {
		return 0, ErrCouponBelowMinimum
	}
	if !c.AppliesTo(target) {
		return 0, ErrCouponNotApplicable
	}

	var discount float64
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = purchaseAmount * c.DiscountValue / 100
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
	case models.DiscountFixed:
		discount = c.DiscountValue
		if discount > purchaseAmount {
			discount = purchaseAmount
		}
	default:
		return 0, fmt.Errorf("unsupported discount type: %s", c.DiscountType)
	}

	if discount < 0 {
		discount = 0
	}
	return pricing.Round2(discount), nil
}

// Preview resolves a coupon by code without consuming it.
func (s *Service) Preview(ctx context.Context, ownerID, code string, target models.TargetRef, purchaseAmount float64) (float64, error) {
	c, err := s.fetch(ctx, ownerID, code)
	if err != nil {
		return 0, err
	}
	return Resolve(c, target, purchaseAmount, time.Now())
}

// Redeem consumes one use of the coupon and returns the discount. The usage
// counter is advanced with an optimistic compare-and-increment so concurrent
// redemptions near the limit can never push usage_count past usage_limit.
func (s *Service) Redeem(ctx context.Context, ownerID, code string, target models.TargetRef, purchaseAmount float64) (float64, error) {
	for attempt := 0; attempt < redeemRetries; attempt++ {
		c, err := s.fetch(ctx, ownerID, code)
		if err != nil {
			return 0, err
		}

		discount, err := Resolve(c, target, purchaseAmount, time.Now())
		if err != nil {
			return 0, err
		}

		ok, err := s.DB.IncrementUsage(ctx, c.CouponID, c.UsageCount)
		if err != nil {
			return 0, fmt.Errorf("failed to increment coupon usage: %w", err)
		}
		if ok {
			s.logger.Info("COUPON", fmt.Sprintf("Redeemed coupon %s (owner %s), discount %.2f", code, ownerID, discount))
			return discount, nil
		}

		// Counter moved under us; re-read and re-validate.
		s.logger.Debug("COUPON", fmt.Sprintf("Usage conflict on coupon %s, retrying (attempt %d)", code, attempt+1))
	}

	// Every attempt lost the race. Re-read once more to tell exhaustion
	// apart from live contention: callers who lost because the limit was
	// reached see ErrCouponExhausted, not a retryable conflict.
	c, err := s.fetch(ctx, ownerID, code)
	if err != nil {
		return 0, err
	}
	if _, err := Resolve(c, target, purchaseAmount, time.Now()); err != nil {
		return 0, err
	}
	return 0, ErrRedemptionConflict
}

// Release compensates a redemption whose surrounding operation failed, so
// the use is handed back.
func (s *Service) Release(ctx context.Context, couponID string) error {
	if err := s.DB.ReleaseUsage(ctx, couponID); err != nil {
		return fmt.Errorf("failed to release coupon usage: %w", err)
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, ownerID, code string) (*models.Coupon, error) {
	c, err := s.DB.GetCouponByCode(ctx, ownerID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to load coupon %s: %w", code, err)
	}
	if c == nil {
		return nil, ErrCouponNotFound
	}
	return c, nil
}
