package db

import (
	"context"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetCouponByCode → fetch one coupon scoped to its owner
func (d *DB) GetCouponByCode(ctx context.Context, ownerID, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := d.Bun.NewSelect().
		Model(&c).
		Where("owner_id = ?", ownerID).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementUsage → optimistic compare-and-increment on usage_count.
// The WHERE clause on the old count makes concurrent redemptions lose
// cleanly instead of double-counting.
func (d *DB) IncrementUsage(ctx context.Context, couponID string, expectedCount int) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("usage_count = usage_count + 1").
		Where("coupon_id = ?", couponID).
		Where("usage_count = ?", expectedCount).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ReleaseUsage → hand one use back after a failed surrounding operation
func (d *DB) ReleaseUsage(ctx context.Context, couponID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("usage_count = usage_count - 1").
		Where("coupon_id = ?", couponID).
		Where("usage_count > 0").
		Exec(ctx)
	return err
}

// CreateCoupon → insert new coupon
func (d *DB) CreateCoupon(ctx context.Context, c models.Coupon) error {
	_, err := d.Bun.NewInsert().Model(&c).Exec(ctx)
	return err
}
