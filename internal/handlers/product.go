package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

// ProductHandler manages catalog product endpoints.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// ListProducts returns active products, optionally filtered by category or search term.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{}).Where("is_active = ?", true)

	if categoryID := c.Query("category_id"); categoryID != "" {
		parsed, err := uuid.Parse(categoryID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid category_id")
		}
		query = query.Where("category_id = ?", parsed)
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Variants", "is_active = ?", true).
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetProduct returns a single product by slug or ID.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	param := c.Params("idOrSlug")

	query := h.db.Preload("Variants").Preload("Category")
	var product models.Product
	var err error
	if id, parseErr := uuid.Parse(param); parseErr == nil {
		err = query.First(&product, "id = ?", id).Error
	} else {
		err = query.First(&product, "slug = ?", param).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productVariantRequest struct {
	SKU         string  `json:"sku" validate:"required"`
	Label       string  `json:"label" validate:"required"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Currency    string  `json:"currency"`
	WeightGrams int     `json:"weight_grams" validate:"gte=0"`
	IsActive    bool    `json:"is_active"`
}

type productRequest struct {
	Slug             string                  `json:"slug" validate:"required"`
	Name             string                  `json:"name" validate:"required"`
	ShortDescription string                  `json:"short_description"`
	LongDescription  string                  `json:"long_description"`
	BasePrice        float64                 `json:"base_price" validate:"gte=0"`
	Currency         string                  `json:"currency"`
	HeroImage        string                  `json:"hero_image"`
	IsActive         bool                    `json:"is_active"`
	CategoryID       string                  `json:"category_id"`
	Variants         []productVariantRequest `json:"variants" validate:"dive"`
}

// CreateProduct persists a product with its variants.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	product := models.Product{
		Slug:             strings.ToLower(strings.TrimSpace(req.Slug)),
		Name:             req.Name,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		BasePrice:        req.BasePrice,
		Currency:         defaultCurrency(req.Currency),
		HeroImage:        req.HeroImage,
		IsActive:         req.IsActive,
	}

	if req.CategoryID != "" {
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid category_id")
		}
		product.CategoryID = &categoryID
	}

	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			SKU:         strings.ToUpper(strings.TrimSpace(v.SKU)),
			Label:       v.Label,
			Price:       v.Price,
			Currency:    defaultCurrency(v.Currency),
			WeightGrams: v.WeightGrams,
			IsActive:    v.IsActive,
		})
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct updates product fields. Variants are managed separately.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	updates := map[string]any{
		"slug":              strings.ToLower(strings.TrimSpace(req.Slug)),
		"name":              req.Name,
		"short_description": req.ShortDescription,
		"long_description":  req.LongDescription,
		"base_price":        req.BasePrice,
		"hero_image":        req.HeroImage,
		"is_active":         req.IsActive,
	}
	if req.Currency != "" {
		updates["currency"] = req.Currency
	}
	if req.CategoryID != "" {
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid category_id")
		}
		updates["category_id"] = categoryID
	}

	if err := h.db.Model(&product).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct soft-hides a product by marking it inactive.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	result := h.db.Model(&models.Product{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CreateVariant adds a variant to an existing product.
func (h *ProductHandler) CreateVariant(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	var req productVariantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	variant := models.ProductVariant{
		ProductID:   product.ID,
		SKU:         strings.ToUpper(strings.TrimSpace(req.SKU)),
		Label:       req.Label,
		Price:       req.Price,
		Currency:    defaultCurrency(req.Currency),
		WeightGrams: req.WeightGrams,
		IsActive:    req.IsActive,
	}
	if err := h.db.Create(&variant).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": variant})
}

// UpdateVariant modifies a product variant.
func (h *ProductHandler) UpdateVariant(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("variantId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var variant models.ProductVariant
	if err := h.db.First(&variant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "variant not found")
		}
		return err
	}

	var req productVariantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	updates := map[string]any{
		"sku":          strings.ToUpper(strings.TrimSpace(req.SKU)),
		"label":        req.Label,
		"price":        req.Price,
		"weight_grams": req.WeightGrams,
		"is_active":    req.IsActive,
	}
	if req.Currency != "" {
		updates["currency"] = req.Currency
	}

	if err := h.db.Model(&variant).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": variant})
}

func defaultCurrency(currency string) string {
	if currency == "" {
		return "INR"
	}
	return currency
}
