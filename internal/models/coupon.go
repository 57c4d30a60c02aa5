package models

import (
	"time"
)

const (
	DiscountTypeFixed      = "fixed"
	DiscountTypePercentage = "percentage"
)

// Coupon codes are stored upper-cased; lookups normalize the same way.
type Coupon struct {
	BaseModel
	Code           string     `gorm:"uniqueIndex" json:"code"`
	DiscountType   string     `json:"discount_type"`
	DiscountValue  float64    `json:"discount_value"`
	MinOrderAmount float64    `json:"min_order_amount"`
	MaxUsage       int        `json:"max_usage"` // 0 means unlimited
	UsedCount      int        `json:"used_count"`
	StartsAt       time.Time  `json:"starts_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
}
