package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

// AdminHandler serves dashboard statistics and cross-user listings.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// DashboardStats aggregates headline counts for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var (
		userCount    int64
		orderCount   int64
		productCount int64
		couponCount  int64
		pendingCount int64
		paidCount    int64
		revenue      float64
	)

	if err := h.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Product{}).Where("is_active = ?", true).Count(&productCount).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Coupon{}).Count(&couponCount).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending).Count(&pendingCount).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPaid).Count(&paidCount).Error; err != nil {
		return err
	}

	row := h.db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&revenue); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{
		"users":          userCount,
		"orders":         orderCount,
		"active_products": productCount,
		"coupons":        couponCount,
		"pending_orders": pendingCount,
		"paid_orders":    paidCount,
		"total_revenue":  revenue,
	}})
}

// ListAllOrders returns orders across all users with optional status filter.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("Payments").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// ListAllUsers returns registered users for the admin panel.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	var total int64
	if err := h.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := h.db.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// RecentOrders returns the latest orders for the dashboard feed.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.Preload("Items").
		Order("placed_at desc").
		Limit(10).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders})
}
