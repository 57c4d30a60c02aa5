package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/velora/internal/models"
)

type shiprocketOrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

type shiprocketAdhocOrderRequest struct {
	OrderID             string                `json:"order_id"`
	OrderDate           string                `json:"order_date"`
	PickupLocation      string                `json:"pickup_location"`
	BillingCustomerName string                `json:"billing_customer_name"`
	BillingAddress      string                `json:"billing_address"`
	BillingCity         string                `json:"billing_city"`
	BillingPincode      string                `json:"billing_pincode"`
	BillingState        string                `json:"billing_state"`
	BillingCountry      string                `json:"billing_country"`
	BillingPhone        string                `json:"billing_phone"`
	ShippingIsBilling   bool                  `json:"shipping_is_billing"`
	OrderItems          []shiprocketOrderItem `json:"order_items"`
	PaymentMethod       string                `json:"payment_method"`
	SubTotal            float64               `json:"sub_total"`
	WeightKg            float64               `json:"weight"`
}

type shiprocketAdhocOrderResponse struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
}

type shiprocketAssignAWBRequest struct {
	ShipmentID int64 `json:"shipment_id"`
}

type shiprocketAssignAWBResponse struct {
	AWBAssignStatus int `json:"awb_assign_status"`
	Response        struct {
		Data struct {
			AWBCode     string `json:"awb_code"`
			CourierName string `json:"courier_name"`
		} `json:"data"`
	} `json:"response"`
}

// CreateShipmentForOrder books a shipment for a paid order: adhoc order
// creation followed by AWB assignment, with the courier metadata written back
// to the order row. The row lock is held for the whole booking so a concurrent
// webhook delivery and an admin retry cannot both reach the aggregator; the
// loser of the lock sees the AWB already assigned and skips. Booking failures
// are recorded on the order and returned.
func (s *ShiprocketService) CreateShipmentForOrder(ctx context.Context, db *gorm.DB, orderID uuid.UUID) error {
	if !s.cfg.Enabled {
		return nil
	}

	var bookErr error
	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}

		if order.AWBCode != "" {
			return nil
		}

		adhoc, awb, err := s.bookShipment(&order)

		now := time.Now()
		updates := map[string]any{"shipment_synced_at": &now}
		if err != nil {
			// Commit the failure record; the error itself goes to the caller.
			bookErr = err
			updates["shipment_sync_error"] = truncateSyncError(err)
			return tx.Model(&models.Order{}).
				Where("id = ?", orderID).
				Updates(updates).Error
		}

		updates["aggregator_order_id"] = fmt.Sprintf("%d", adhoc.OrderID)
		updates["shipment_id"] = fmt.Sprintf("%d", adhoc.ShipmentID)
		updates["awb_code"] = awb.Response.Data.AWBCode
		updates["courier_name"] = awb.Response.Data.CourierName
		updates["shipment_sync_error"] = ""

		return tx.Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(updates).Error
	})
	if txErr != nil {
		if bookErr != nil {
			return errors.Join(bookErr, txErr)
		}
		return txErr
	}
	return bookErr
}

func (s *ShiprocketService) bookShipment(order *models.Order) (*shiprocketAdhocOrderResponse, *shiprocketAssignAWBResponse, error) {
	items := make([]shiprocketOrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		sku := ""
		if item.ProductVariantID != nil {
			sku = item.ProductVariantID.String()
		}
		items = append(items, shiprocketOrderItem{
			Name:         item.ProductName,
			SKU:          sku,
			Units:        item.Quantity,
			SellingPrice: item.PriceAtPurchase,
		})
	}

	payload := shiprocketAdhocOrderRequest{
		OrderID:             order.OrderNumber,
		OrderDate:           order.PlacedAt.Format("2006-01-02 15:04"),
		PickupLocation:      s.cfg.PickupLocation,
		BillingCustomerName: order.ContactName,
		BillingAddress:      order.DeliveryAddressLine,
		BillingCity:         order.DeliveryCity,
		BillingPincode:      order.DeliveryPostalCode,
		BillingState:        order.DeliveryDistrict,
		BillingCountry:      "India",
		BillingPhone:        order.ContactPhone,
		ShippingIsBilling:   true,
		OrderItems:          items,
		PaymentMethod:       "Prepaid",
		SubTotal:            order.Subtotal,
		WeightKg:            0.5,
	}

	resp, err := s.doRequest(ShiprocketRequestOpts{
		Method: http.MethodPost,
		Path:   "orders/create/adhoc",
		Body:   payload,
	})
	if err != nil {
		return nil, nil, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, nil, fmt.Errorf("adhoc order creation failed: status %d, body: %s", resp.Status, string(resp.Body))
	}

	var adhoc shiprocketAdhocOrderResponse
	if err := unmarshalResponse(resp.Body, &adhoc); err != nil {
		return nil, nil, err
	}
	if adhoc.ShipmentID == 0 {
		return nil, nil, fmt.Errorf("adhoc order response missing shipment id: %s", string(resp.Body))
	}

	awbResp, err := s.doRequest(ShiprocketRequestOpts{
		Method: http.MethodPost,
		Path:   "courier/assign/awb",
		Body:   shiprocketAssignAWBRequest{ShipmentID: adhoc.ShipmentID},
	})
	if err != nil {
		return nil, nil, err
	}
	if awbResp.Status < 200 || awbResp.Status >= 300 {
		return nil, nil, fmt.Errorf("awb assignment failed: status %d, body: %s", awbResp.Status, string(awbResp.Body))
	}

	var awb shiprocketAssignAWBResponse
	if err := unmarshalResponse(awbResp.Body, &awb); err != nil {
		return nil, nil, err
	}
	if awb.Response.Data.AWBCode == "" {
		return nil, nil, fmt.Errorf("awb assignment response missing awb code: %s", string(awbResp.Body))
	}

	return &adhoc, &awb, nil
}

func unmarshalResponse(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func truncateSyncError(err error) string {
	if err == nil {
		return ""
	}
	const maxLen = 1024
	msg := err.Error()
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen]
}
