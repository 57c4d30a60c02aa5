package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
)

func seedCoupon(t *testing.T, db *gorm.DB, coupon models.Coupon) models.Coupon {
	t.Helper()
	if coupon.StartsAt.IsZero() {
		coupon.StartsAt = time.Now().Add(-time.Hour)
	}
	require.NoError(t, db.Create(&coupon).Error)
	return coupon
}

func TestValidateUnknownCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)

	_, err := svc.Validate(context.Background(), "NOPE", 100)

	var rejection *CouponRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "invalid or expired coupon", rejection.Reason)
}

func TestValidateNormalizesCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	seedCoupon(t, db, models.Coupon{
		Code:          "WELCOME",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 50,
	})

	quote, err := svc.Validate(context.Background(), "  welcome ", 200)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", quote.Coupon.Code)
	assert.Equal(t, 50.0, quote.DiscountAmount)
}

func TestValidateOutsideWindow(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)

	seedCoupon(t, db, models.Coupon{
		Code:          "SOON",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 10,
		StartsAt:      time.Now().Add(time.Hour),
	})

	expired := time.Now().Add(-time.Minute)
	seedCoupon(t, db, models.Coupon{
		Code:          "GONE",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 10,
		ExpiresAt:     &expired,
	})

	for _, code := range []string{"SOON", "GONE"} {
		_, err := svc.Validate(context.Background(), code, 100)
		var rejection *CouponRejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, "invalid or expired coupon", rejection.Reason)
	}
}

func TestValidateUsageCapReached(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	seedCoupon(t, db, models.Coupon{
		Code:           "SAVE10",
		DiscountType:   models.DiscountTypePercentage,
		DiscountValue:  10,
		MinOrderAmount: 500,
		MaxUsage:       5,
		UsedCount:      5,
	})

	_, err := svc.Validate(context.Background(), "SAVE10", 1000)

	var rejection *CouponRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "coupon usage limit reached", rejection.Reason)
}

func TestValidateMinimumAmount(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	seedCoupon(t, db, models.Coupon{
		Code:           "BIGCART",
		DiscountType:   models.DiscountTypePercentage,
		DiscountValue:  10,
		MinOrderAmount: 500,
	})

	_, err := svc.Validate(context.Background(), "BIGCART", 499.99)

	var rejection *CouponRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "minimum order amount is 500.00", rejection.Reason)
}

func TestValidatePercentageDiscount(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	seedCoupon(t, db, models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
	})

	quote, err := svc.Validate(context.Background(), "SAVE10", 1000)
	require.NoError(t, err)
	assert.Equal(t, 100.0, quote.DiscountAmount)
}

func TestValidateFixedDiscountCappedAtAmount(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	seedCoupon(t, db, models.Coupon{
		Code:          "FLAT150",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 150,
	})

	quote, err := svc.Validate(context.Background(), "FLAT150", 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, quote.DiscountAmount)
}

func TestRedeemRespectsCap(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	seedCoupon(t, db, models.Coupon{
		Code:          "ONCE",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 10,
		MaxUsage:      1,
	})

	require.NoError(t, svc.Redeem(context.Background(), "ONCE"))

	err := svc.Redeem(context.Background(), "ONCE")
	require.True(t, errors.Is(err, ErrCouponExhausted))

	var coupon models.Coupon
	require.NoError(t, db.First(&coupon, "code = ?", "ONCE").Error)
	assert.Equal(t, 1, coupon.UsedCount)
}

func TestRedeemUnlimited(t *testing.T) {
	db := newTestDB(t)
	svc := NewCouponService(db)
	seedCoupon(t, db, models.Coupon{
		Code:          "FOREVER",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 10,
		MaxUsage:      0,
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Redeem(context.Background(), "FOREVER"))
	}

	var coupon models.Coupon
	require.NoError(t, db.First(&coupon, "code = ?", "FOREVER").Error)
	assert.Equal(t, 3, coupon.UsedCount)
}
