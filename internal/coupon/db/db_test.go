package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-booking/internal/coupon/db"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Coupon)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create coupons table: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func testCoupon() models.Coupon {
	limit := 2
	return models.Coupon{
		CouponID:      "cpn-1",
		OwnerID:       "vendor-1",
		Code:          "WELCOME",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 25,
		UsageLimit:    &limit,
		StartDate:     time.Now().Add(-time.Hour),
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
}

func TestGetCouponByCode(t *testing.T) {
	couponDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, couponDB.CreateCoupon(context.Background(), testCoupon()))

	c, err := couponDB.GetCouponByCode(context.Background(), "vendor-1", "WELCOME")
	require.NoError(t, err)
	assert.Equal(t, "cpn-1", c.CouponID)
	assert.Equal(t, models.DiscountFixed, c.DiscountType)

	// Same code under a different owner scope is not found
	_, err = couponDB.GetCouponByCode(context.Background(), "vendor-2", "WELCOME")
	assert.Error(t, err)
}

func TestIncrementUsageCompareAndSwap(t *testing.T) {
	couponDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, couponDB.CreateCoupon(context.Background(), testCoupon()))

	// First increment against the observed count succeeds
	ok, err := couponDB.IncrementUsage(context.Background(), "cpn-1", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second increment against the stale count loses the race
	ok, err = couponDB.IncrementUsage(context.Background(), "cpn-1", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// Against the fresh count it succeeds again
	ok, err = couponDB.IncrementUsage(context.Background(), "cpn-1", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	c, err := couponDB.GetCouponByCode(context.Background(), "vendor-1", "WELCOME")
	require.NoError(t, err)
	assert.Equal(t, 2, c.UsageCount)
}

func TestReleaseUsageNeverGoesNegative(t *testing.T) {
	couponDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, couponDB.CreateCoupon(context.Background(), testCoupon()))

	require.NoError(t, couponDB.ReleaseUsage(context.Background(), "cpn-1"))

	c, err := couponDB.GetCouponByCode(context.Background(), "vendor-1", "WELCOME")
	require.NoError(t, err)
	assert.Equal(t, 0, c.UsageCount)
}
