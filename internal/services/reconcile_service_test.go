package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
)

type reconcileFixture struct {
	order     models.Order
	payment   models.Payment
	variantID uuid.UUID
}

// seedPaidableOrder creates a pending order with one line item of quantity 2,
// an initiated payment and a stock level of 10 for the variant.
func seedPaidableOrder(t *testing.T, db *gorm.DB) reconcileFixture {
	t.Helper()

	variantID := uuid.New()
	require.NoError(t, db.Create(&models.InventoryLevel{
		VariantID: variantID,
		Available: 10,
	}).Error)

	order := models.Order{
		OrderNumber: "#" + uuid.New().String()[:8],
		Status:      models.OrderStatusPending,
		PlacedAt:    time.Now(),
		Subtotal:    500,
		TotalAmount: 500,
		Currency:    "INR",
		Items: []models.OrderItem{{
			ProductVariantID: &variantID,
			ProductName:      "Ceramic Mug",
			Quantity:         2,
			PriceAtPurchase:  250,
			LineTotal:        500,
		}},
	}
	require.NoError(t, db.Create(&order).Error)

	payment := models.Payment{
		OrderID:               order.ID,
		MerchantTransactionID: "MT" + uuid.New().String()[:12],
		Status:                models.PaymentStatusInitiated,
		Amount:                500,
		Currency:              "INR",
	}
	require.NoError(t, db.Create(&payment).Error)

	return reconcileFixture{order: order, payment: payment, variantID: variantID}
}

func successCallback(mtid string) *GatewayCallback {
	return &GatewayCallback{
		Code:                  GatewayCodeSuccess,
		MerchantTransactionID: mtid,
		ProviderTransactionID: "T123456",
		AmountPaise:           50000,
		State:                 "COMPLETED",
		Raw:                   []byte(`{"code":"PAYMENT_SUCCESS"}`),
	}
}

func TestApplyCallbackSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	result, err := svc.ApplyCallback(context.Background(), successCallback(fx.payment.MerchantTransactionID))
	require.NoError(t, err)
	assert.True(t, result.Transitioned)
	assert.Equal(t, fx.order.ID, result.OrderID)

	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, "T123456", result.Payment.ProviderTransactionID)
	require.NotNil(t, result.Payment.PaidAt)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)

	var level models.InventoryLevel
	require.NoError(t, db.First(&level, "variant_id = ?", fx.variantID).Error)
	assert.Equal(t, 8, level.Available)

	var entries []models.StockLedger
	require.NoError(t, db.Where("variant_id = ?", fx.variantID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, -2, entries[0].Delta)
	assert.Equal(t, "sale", entries[0].Reason)
	require.NotNil(t, entries[0].OrderID)
	assert.Equal(t, fx.order.ID, *entries[0].OrderID)
}

func TestApplyCallbackRedeliveryDecrementsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	first, err := svc.ApplyCallback(context.Background(), successCallback(fx.payment.MerchantTransactionID))
	require.NoError(t, err)
	assert.True(t, first.Transitioned)

	second, err := svc.ApplyCallback(context.Background(), successCallback(fx.payment.MerchantTransactionID))
	require.NoError(t, err)
	assert.False(t, second.Transitioned)

	var level models.InventoryLevel
	require.NoError(t, db.First(&level, "variant_id = ?", fx.variantID).Error)
	assert.Equal(t, 8, level.Available)

	var ledgerCount int64
	require.NoError(t, db.Model(&models.StockLedger{}).
		Where("variant_id = ?", fx.variantID).
		Count(&ledgerCount).Error)
	assert.Equal(t, int64(1), ledgerCount)
}

func TestApplyCallbackConcurrentDuplicateDelivery(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		transitions  int
		deliveryErrs []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ApplyCallback(context.Background(), successCallback(fx.payment.MerchantTransactionID))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				deliveryErrs = append(deliveryErrs, err)
				return
			}
			if result.Transitioned {
				transitions++
			}
		}()
	}
	wg.Wait()

	require.Empty(t, deliveryErrs)
	assert.Equal(t, 1, transitions)

	var level models.InventoryLevel
	require.NoError(t, db.First(&level, "variant_id = ?", fx.variantID).Error)
	assert.Equal(t, 8, level.Available)

	var ledgerCount int64
	require.NoError(t, db.Model(&models.StockLedger{}).
		Where("variant_id = ?", fx.variantID).
		Count(&ledgerCount).Error)
	assert.Equal(t, int64(1), ledgerCount)
}

func TestApplyCallbackUnknownTransaction(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	_, err := svc.ApplyCallback(context.Background(), successCallback("MTUNKNOWN"))
	require.True(t, errors.Is(err, ErrPaymentNotFound))

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	var level models.InventoryLevel
	require.NoError(t, db.First(&level, "variant_id = ?", fx.variantID).Error)
	assert.Equal(t, 10, level.Available)
}

func TestApplyCallbackExplicitFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	result, err := svc.ApplyCallback(context.Background(), &GatewayCallback{
		Code:                  GatewayCodeDeclined,
		MerchantTransactionID: fx.payment.MerchantTransactionID,
		Raw:                   []byte(`{"code":"PAYMENT_DECLINED"}`),
	})
	require.NoError(t, err)
	assert.False(t, result.Transitioned)
	assert.Equal(t, models.PaymentStatusFailed, result.Payment.Status)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	var level models.InventoryLevel
	require.NoError(t, db.First(&level, "variant_id = ?", fx.variantID).Error)
	assert.Equal(t, 10, level.Available)
}

func TestApplyCallbackAmbiguousFailureLeavesOrderPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	result, err := svc.ApplyCallback(context.Background(), &GatewayCallback{
		Code:                  GatewayCodeInternalError,
		MerchantTransactionID: fx.payment.MerchantTransactionID,
		Raw:                   []byte(`{"code":"INTERNAL_SERVER_ERROR"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, result.Payment.Status)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestApplyCallbackPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	result, err := svc.ApplyCallback(context.Background(), &GatewayCallback{
		Code:                  GatewayCodePending,
		MerchantTransactionID: fx.payment.MerchantTransactionID,
		Raw:                   []byte(`{"code":"PAYMENT_PENDING"}`),
	})
	require.NoError(t, err)
	assert.False(t, result.Transitioned)
	assert.Equal(t, models.PaymentStatusInitiated, result.Payment.Status)
	assert.Equal(t, GatewayCodePending, result.Payment.GatewayCode)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	var level models.InventoryLevel
	require.NoError(t, db.First(&level, "variant_id = ?", fx.variantID).Error)
	assert.Equal(t, 10, level.Available)
}

func TestApplyCallbackSuccessCreatesMissingLevel(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconcileService(db, nil)
	fx := seedPaidableOrder(t, db)

	// Remove the seeded level to simulate a variant that never had stock recorded.
	require.NoError(t, db.Delete(&models.InventoryLevel{}, "variant_id = ?", fx.variantID).Error)

	result, err := svc.ApplyCallback(context.Background(), successCallback(fx.payment.MerchantTransactionID))
	require.NoError(t, err)
	assert.True(t, result.Transitioned)

	var level models.InventoryLevel
	require.NoError(t, db.First(&level, "variant_id = ?", fx.variantID).Error)
	assert.Equal(t, -2, level.Available)
}
