package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// CheckoutHandler creates orders and initiates gateway payments.
type CheckoutHandler struct {
	db      *gorm.DB
	phonepe *services.PhonePeService
	coupons *services.CouponService
}

func NewCheckoutHandler(db *gorm.DB, phonepe *services.PhonePeService, coupons *services.CouponService) *CheckoutHandler {
	return &CheckoutHandler{db: db, phonepe: phonepe, coupons: coupons}
}

type checkoutItemRequest struct {
	ProductVariantID string `json:"product_variant_id" validate:"required,uuid4"`
	Quantity         int    `json:"quantity" validate:"required,gt=0"`
}

type checkoutRequest struct {
	Items             []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	CouponCode        string                `json:"coupon_code"`
	DeliveryAddressID string                `json:"delivery_address_id"`
	ContactName       string                `json:"contact_name"`
	ContactPhone      string                `json:"contact_phone"`
	RedirectURL       string                `json:"redirect_url" validate:"required,url"`
	Notes             string                `json:"notes"`
}

// Checkout places an order and returns the hosted payment page URL.
// Authentication is optional: anonymous requests produce guest orders.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if msg := utils.ValidateStruct(req); msg != "" {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	var userIDPtr *uuid.UUID
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		userIDPtr = &userID
	}
	if userIDPtr == nil && strings.TrimSpace(req.ContactPhone) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "contact_phone is required for guest checkout")
	}

	ctx := context.Background()

	orderID := uuid.New()
	order := models.Order{
		UserID:       userIDPtr,
		Status:       models.OrderStatusPending,
		PlacedAt:     time.Now(),
		Currency:     "INR",
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Notes:        req.Notes,
		OrderNumber:  orderNumberFromID(orderID),
	}
	order.ID = orderID

	if userIDPtr != nil {
		var user models.User
		if err := h.db.First(&user, "id = ?", *userIDPtr).Error; err == nil {
			if order.ContactName == "" {
				order.ContactName = user.DisplayName
			}
			if order.ContactPhone == "" {
				order.ContactPhone = user.Phone
			}
		}
	}

	if userIDPtr != nil && req.DeliveryAddressID != "" {
		if id, err := uuid.Parse(req.DeliveryAddressID); err == nil {
			var address models.UserAddress
			if err := h.db.First(&address, "id = ? AND user_id = ?", id, *userIDPtr).Error; err == nil {
				order.DeliveryAddressID = &address.ID
				order.DeliveryAddressLine = address.AddressLine
				order.DeliveryApartment = address.Apartment
				order.DeliveryCity = address.City
				order.DeliveryDistrict = address.District
				order.DeliveryPostalCode = address.PostalCode
			}
		}
	}

	// Snapshot prices from the live catalog; they are immutable afterwards.
	var subtotal float64
	for _, reqItem := range req.Items {
		variantID, err := uuid.Parse(reqItem.ProductVariantID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_variant_id")
		}

		var variant models.ProductVariant
		if err := h.db.First(&variant, "id = ? AND is_active = ?", variantID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnprocessableEntity, "product variant unavailable")
			}
			return err
		}

		var product models.Product
		if err := h.db.First(&product, "id = ?", variant.ProductID).Error; err != nil {
			return err
		}

		lineTotal := variant.Price * float64(reqItem.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:        &variant.ProductID,
			ProductVariantID: &variant.ID,
			ProductName:      product.Name,
			VariantLabel:     variant.Label,
			Quantity:         reqItem.Quantity,
			PriceAtPurchase:  variant.Price,
			LineTotal:        lineTotal,
		})
		subtotal += lineTotal
	}
	order.Subtotal = subtotal
	order.TotalAmount = subtotal

	if req.CouponCode != "" {
		quote, err := h.coupons.Validate(ctx, req.CouponCode, subtotal)
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
		order.CouponCode = quote.Coupon.Code
		order.DiscountAmount = quote.DiscountAmount
		order.TotalAmount = subtotal - quote.DiscountAmount
	}

	payment := models.Payment{
		MerchantTransactionID: generateMerchantTransactionID(),
		Status:                models.PaymentStatusInitiated,
		Amount:                order.TotalAmount,
		Currency:              order.Currency,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		payment.OrderID = order.ID
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if order.CouponCode != "" {
			return services.RedeemCoupon(tx, order.CouponCode)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrCouponExhausted) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"error":   "coupon usage limit reached",
			})
		}
		return err
	}

	merchantUserID := ""
	if userIDPtr != nil {
		merchantUserID = userIDPtr.String()
	}

	payURL, err := h.phonepe.InitiatePayment(services.PaymentRequest{
		MerchantTransactionID: payment.MerchantTransactionID,
		MerchantUserID:        merchantUserID,
		AmountPaise:           amountToPaise(order.TotalAmount),
		RedirectURL:           req.RedirectURL,
	})
	if err != nil {
		log.Printf("[Checkout] payment initiation failed for order %s: %v", order.ID, err)
		if updateErr := h.db.Model(&models.Payment{}).
			Where("id = ?", payment.ID).
			Update("status", models.PaymentStatusFailed).Error; updateErr != nil {
			log.Printf("[Checkout] failed to mark payment failed: %v", updateErr)
		}
		return fiber.NewError(fiber.StatusBadGateway, "payment gateway unavailable")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order_id":                order.ID,
			"order_number":            order.OrderNumber,
			"merchant_transaction_id": payment.MerchantTransactionID,
			"payment_url":             payURL,
			"subtotal":                order.Subtotal,
			"discount_amount":         order.DiscountAmount,
			"total":                   order.TotalAmount,
			"currency":                order.Currency,
		},
	})
}

// orderNumberFromID derives the customer-facing order number from the order's
// own UUID, so uniqueness is inherited rather than clock-dependent.
func orderNumberFromID(id uuid.UUID) string {
	return "#" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:12]
}

func generateMerchantTransactionID() string {
	return "MT" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// amountToPaise converts a rupee amount to the gateway's integer paise,
// rounding so the charged amount matches the stored total to the paise.
func amountToPaise(amount float64) int64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
