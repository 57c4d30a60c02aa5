package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// InventoryHandler manages admin stock operations and audit listings.
type InventoryHandler struct {
	db        *gorm.DB
	inventory *services.InventoryService
}

// NewInventoryHandler constructs InventoryHandler.
func NewInventoryHandler(db *gorm.DB, inventory *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{db: db, inventory: inventory}
}

type stockAdjustRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid4"`
	Delta     int    `json:"delta" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// AdjustStock applies an administrative stock movement.
func (h *InventoryHandler) AdjustStock(c *fiber.Ctx) error {
	adminID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req stockAdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid variant_id")
	}

	result, err := h.inventory.Adjust(context.Background(), services.StockAdjustment{
		VariantID: variantID,
		Delta:     req.Delta,
		Reason:    req.Reason,
		AdminID:   adminID,
	})
	if err != nil {
		if errors.Is(err, services.ErrZeroDelta) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": result})
}

// ListLevels returns paginated inventory levels.
func (h *InventoryHandler) ListLevels(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	var total int64
	if err := h.db.Model(&models.InventoryLevel{}).Count(&total).Error; err != nil {
		return err
	}

	var items []models.InventoryLevel
	if err := h.db.Limit(pg.Limit).Offset(pg.Offset).
		Order("updated_at desc").Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items, "pagination": fiber.Map{
		"current_page":   pg.Page,
		"items_per_page": pg.Limit,
		"total_items":    total,
	}})
}

// ListLedger returns stock ledger entries, optionally filtered by variant.
func (h *InventoryHandler) ListLedger(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.StockLedger{})

	if variantID := c.Query("variant_id"); variantID != "" {
		parsed, err := uuid.Parse(variantID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid variant_id")
		}
		query = query.Where("variant_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.StockLedger
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items, "pagination": fiber.Map{
		"current_page":   pg.Page,
		"items_per_page": pg.Limit,
		"total_items":    total,
	}})
}

// ListAuditLogs returns audit entries, optionally filtered by entity.
func (h *InventoryHandler) ListAuditLogs(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.AuditLog{})

	if entityType := c.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if entityID := c.Query("entity_id"); entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}
	if adminID := c.Query("admin_id"); adminID != "" {
		parsed, err := uuid.Parse(adminID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid admin_id")
		}
		query = query.Where("admin_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.AuditLog
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items, "pagination": fiber.Map{
		"current_page":   pg.Page,
		"items_per_page": pg.Limit,
		"total_items":    total,
	}})
}
