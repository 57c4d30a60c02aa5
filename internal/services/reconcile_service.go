package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
)

// ErrPaymentNotFound is returned when a callback references an unknown
// merchant transaction id. The caller answers 404 and nothing is written.
var ErrPaymentNotFound = errors.New("payment not found")

// ReconcileService drives order state from gateway callbacks.
type ReconcileService struct {
	db       *gorm.DB
	shipping *ShiprocketService // nil disables shipment creation
}

func NewReconcileService(db *gorm.DB, shipping *ShiprocketService) *ReconcileService {
	return &ReconcileService{db: db, shipping: shipping}
}

// ReconcileResult reports what a callback changed.
type ReconcileResult struct {
	Payment      models.Payment
	OrderID      uuid.UUID
	Transitioned bool // order moved to paid and stock was decremented
}

// ApplyCallback matches the callback to a payment and applies the state
// transition. On success the order claim, the payment update and the
// inventory decrement share one transaction; the affected-row count of the
// conditional order update is the idempotency guard, so a redelivered
// success callback finds the order already paid and skips the decrement.
func (s *ReconcileService) ApplyCallback(ctx context.Context, cb *GatewayCallback) (*ReconcileResult, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).
		Where("merchant_transaction_id = ?", cb.MerchantTransactionID).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	result := &ReconcileResult{OrderID: payment.OrderID}

	switch {
	case cb.Code == GatewayCodeSuccess:
		if err := s.applySuccess(ctx, &payment, cb, result); err != nil {
			return nil, err
		}
		if result.Transitioned {
			s.createShipment(ctx, payment.OrderID)
		}
	case cb.Code == GatewayCodePending:
		// Ambiguous outcome: record the payload, leave payment and order as-is.
		if err := s.db.WithContext(ctx).Model(&models.Payment{}).
			Where("id = ?", payment.ID).
			Updates(map[string]any{
				"gateway_code": cb.Code,
				"raw_payload":  cb.Raw,
			}).Error; err != nil {
			return nil, err
		}
	default:
		if err := s.applyFailure(ctx, &payment, cb); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).First(&result.Payment, "id = ?", payment.ID).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ReconcileService) applySuccess(ctx context.Context, payment *models.Payment, cb *GatewayCallback, result *ReconcileResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&models.Payment{}).
			Where("id = ?", payment.ID).
			Updates(map[string]any{
				"status":                  models.PaymentStatusCompleted,
				"provider_transaction_id": cb.ProviderTransactionID,
				"gateway_code":            cb.Code,
				"raw_payload":             cb.Raw,
				"paid_at":                 &now,
			}).Error; err != nil {
			return err
		}

		claim := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", payment.OrderID, models.OrderStatusPending).
			Update("status", models.OrderStatusPaid)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			// Already settled by an earlier delivery.
			return nil
		}
		result.Transitioned = true

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", payment.OrderID).Find(&items).Error; err != nil {
			return err
		}

		for _, item := range items {
			if item.ProductVariantID == nil || item.Quantity == 0 {
				continue
			}
			if err := applySaleDecrement(tx, *item.ProductVariantID, item.Quantity, payment.OrderID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ReconcileService) applyFailure(ctx context.Context, payment *models.Payment, cb *GatewayCallback) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).
			Where("id = ?", payment.ID).
			Updates(map[string]any{
				"status":       models.PaymentStatusFailed,
				"gateway_code": cb.Code,
				"raw_payload":  cb.Raw,
			}).Error; err != nil {
			return err
		}

		if IsExplicitFailureCode(cb.Code) {
			if err := tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", payment.OrderID, models.OrderStatusPending).
				Update("status", models.OrderStatusFailed).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// applySaleDecrement applies a relative decrement to the variant's available
// stock and appends the matching ledger entry. Missing level rows are created
// lazily; a negative result is tolerated and surfaces as a data issue later.
func applySaleDecrement(tx *gorm.DB, variantID uuid.UUID, quantity int, orderID uuid.UUID) error {
	res := tx.Model(&models.InventoryLevel{}).
		Where("variant_id = ?", variantID).
		UpdateColumn("available", gorm.Expr("available - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		level := models.InventoryLevel{VariantID: variantID, Available: -quantity}
		if err := tx.Create(&level).Error; err != nil {
			return err
		}
	}

	entry := models.StockLedger{
		VariantID: variantID,
		Delta:     -quantity,
		Reason:    "sale",
		OrderID:   &orderID,
	}
	return tx.Create(&entry).Error
}

// createShipment is best effort: payment confirmation is never undone by a
// downstream shipping failure.
func (s *ReconcileService) createShipment(ctx context.Context, orderID uuid.UUID) {
	if s.shipping == nil {
		return
	}
	if err := s.shipping.CreateShipmentForOrder(ctx, s.db, orderID); err != nil {
		log.Printf("[Reconcile] shipment creation failed for order %s: %v", orderID, err)
	}
}
