package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
)

// CouponRejection is a user-facing validation failure, not a system error.
type CouponRejection struct {
	Reason string
}

func (e *CouponRejection) Error() string {
	return e.Reason
}

// ErrCouponExhausted is returned by Redeem when the usage cap is hit.
var ErrCouponExhausted = errors.New("coupon usage limit reached")

// CouponService validates and redeems promo codes.
type CouponService struct {
	db *gorm.DB
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db}
}

// CouponQuote is a validated discount descriptor for a candidate amount.
type CouponQuote struct {
	Coupon         models.Coupon
	DiscountAmount float64
}

// Validate checks a code against its time window, usage cap and minimum
// order amount. It has no side effects; used_count is only touched by Redeem.
func (s *CouponService) Validate(ctx context.Context, code string, amount float64) (*CouponQuote, error) {
	normalized := NormalizeCouponCode(code)
	now := time.Now()

	var coupon models.Coupon
	if err := s.db.WithContext(ctx).Where("code = ?", normalized).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &CouponRejection{Reason: "invalid or expired coupon"}
		}
		return nil, err
	}

	if now.Before(coupon.StartsAt) || (coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt)) {
		return nil, &CouponRejection{Reason: "invalid or expired coupon"}
	}

	if coupon.MaxUsage > 0 && coupon.UsedCount >= coupon.MaxUsage {
		return nil, &CouponRejection{Reason: "coupon usage limit reached"}
	}

	if coupon.MinOrderAmount > 0 && amount < coupon.MinOrderAmount {
		return nil, &CouponRejection{Reason: fmt.Sprintf("minimum order amount is %.2f", coupon.MinOrderAmount)}
	}

	return &CouponQuote{
		Coupon:         coupon,
		DiscountAmount: computeDiscount(coupon, amount),
	}, nil
}

// Redeem increments used_count at order finalization. The cap check lives in
// the UPDATE itself so concurrent redemptions cannot overshoot the limit.
func (s *CouponService) Redeem(ctx context.Context, code string) error {
	return RedeemCoupon(s.db.WithContext(ctx), code)
}

// RedeemCoupon is the transaction-scoped form of Redeem, for callers that
// need the increment inside an enclosing transaction.
func RedeemCoupon(tx *gorm.DB, code string) error {
	res := tx.Model(&models.Coupon{}).
		Where("code = ? AND (max_usage = 0 OR used_count < max_usage)", NormalizeCouponCode(code)).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCouponExhausted
	}
	return nil
}

// NormalizeCouponCode upper-cases and trims a code for case-insensitive match.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func computeDiscount(coupon models.Coupon, amount float64) float64 {
	amt := decimal.NewFromFloat(amount)

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = amt.
			Mul(decimal.NewFromFloat(coupon.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(2)
	default:
		discount = decimal.NewFromFloat(coupon.DiscountValue)
	}

	if discount.GreaterThan(amt) {
		discount = amt
	}

	value, _ := discount.Float64()
	return value
}
