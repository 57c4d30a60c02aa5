package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// CouponHandler manages coupon admin CRUD and the public validate endpoint.
type CouponHandler struct {
	db      *gorm.DB
	coupons *services.CouponService
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(db *gorm.DB, coupons *services.CouponService) *CouponHandler {
	return &CouponHandler{db: db, coupons: coupons}
}

type validateCouponRequest struct {
	Code   string  `json:"code" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// Validate checks a code against a candidate order amount. No side effects.
func (h *CouponHandler) Validate(c *fiber.Ctx) error {
	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	quote, err := h.coupons.Validate(context.Background(), req.Code, req.Amount)
	if err != nil {
		var rejection *services.CouponRejection
		if errors.As(err, &rejection) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"error":   rejection.Reason,
			})
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{
		"code":            quote.Coupon.Code,
		"discount_type":   quote.Coupon.DiscountType,
		"discount_value":  quote.Coupon.DiscountValue,
		"discount_amount": quote.DiscountAmount,
	}})
}

// ListCoupons returns paginated coupons.
func (h *CouponHandler) ListCoupons(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	var total int64
	if err := h.db.Model(&models.Coupon{}).Count(&total).Error; err != nil {
		return err
	}

	var items []models.Coupon
	if err := h.db.Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items, "pagination": fiber.Map{
		"current_page":   pg.Page,
		"items_per_page": pg.Limit,
		"total_items":    total,
	}})
}

type couponRequest struct {
	Code           string     `json:"code" validate:"required"`
	DiscountType   string     `json:"discount_type" validate:"required,oneof=fixed percentage"`
	DiscountValue  float64    `json:"discount_value" validate:"required,gt=0"`
	MinOrderAmount float64    `json:"min_order_amount" validate:"gte=0"`
	MaxUsage       int        `json:"max_usage" validate:"gte=0"`
	StartsAt       time.Time  `json:"starts_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// CreateCoupon persists a new coupon with an upper-cased code.
func (h *CouponHandler) CreateCoupon(c *fiber.Ctx) error {
	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	code := services.NormalizeCouponCode(req.Code)

	var existing models.Coupon
	if err := h.db.Where("code = ?", code).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "coupon code already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	item := models.Coupon{
		Code:           code,
		DiscountType:   req.DiscountType,
		DiscountValue:  req.DiscountValue,
		MinOrderAmount: req.MinOrderAmount,
		MaxUsage:       req.MaxUsage,
		StartsAt:       req.StartsAt,
		ExpiresAt:      req.ExpiresAt,
	}
	if item.StartsAt.IsZero() {
		item.StartsAt = time.Now()
	}

	if err := h.db.Create(&item).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

// UpdateCoupon updates coupon terms. The usage counter is not editable here.
func (h *CouponHandler) UpdateCoupon(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var item models.Coupon
	if err := h.db.First(&item, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "coupon not found")
		}
		return err
	}

	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	updates := map[string]any{
		"code":             services.NormalizeCouponCode(req.Code),
		"discount_type":    req.DiscountType,
		"discount_value":   req.DiscountValue,
		"min_order_amount": req.MinOrderAmount,
		"max_usage":        req.MaxUsage,
		"expires_at":       req.ExpiresAt,
	}
	if !req.StartsAt.IsZero() {
		updates["starts_at"] = req.StartsAt
	}

	if err := h.db.Model(&item).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": item})
}

// DeleteCoupon removes a coupon by ID.
func (h *CouponHandler) DeleteCoupon(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.db.Delete(&models.Coupon{}, "id = ?", id).Error; err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
