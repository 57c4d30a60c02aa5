package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. The happy path is monotonic:
// pending -> paid -> processing -> shipped -> delivered.
// cancelled, failed and refunded are absorbing.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusPaid       = "paid"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusFailed     = "failed"
)

var orderStatusFlow = map[string][]string{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusProcessing, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusShipped, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusFailed, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
}

// CanTransitionOrderStatus reports whether moving an order from one status to
// another is allowed. Terminal statuses have no outgoing transitions.
func CanTransitionOrderStatus(from, to string) bool {
	for _, allowed := range orderStatusFlow[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Order struct {
	BaseModel
	UserID              *uuid.UUID  `gorm:"type:uuid;index" json:"user_id"` // nil for guest checkout
	User                *User       `json:"user,omitempty"`
	OrderNumber         string      `gorm:"uniqueIndex" json:"order_number"`
	Status              string      `gorm:"index" json:"status"`
	PlacedAt            time.Time   `json:"placed_at"`
	Subtotal            float64     `json:"subtotal"`
	CouponCode          string      `json:"coupon_code"`
	DiscountAmount      float64     `json:"discount_amount"`
	ShippingFee         float64     `json:"shipping_fee"`
	TotalAmount         float64     `json:"total_amount"`
	Currency            string      `json:"currency"`
	DeliveryAddressID   *uuid.UUID  `gorm:"type:uuid" json:"delivery_address_id"`
	DeliveryAddressLine string      `json:"delivery_address_line"`
	DeliveryApartment   string      `json:"delivery_apartment"`
	DeliveryCity        string      `json:"delivery_city"`
	DeliveryDistrict    string      `json:"delivery_district"`
	DeliveryPostalCode  string      `json:"delivery_postal_code"`
	ContactName         string      `json:"contact_name"`
	ContactPhone        string      `json:"contact_phone"`
	Notes               string      `json:"notes"`
	CourierName         string      `json:"courier_name"`
	AWBCode             string      `gorm:"column:awb_code" json:"awb_code"`
	ShipmentID          string      `json:"shipment_id"`
	AggregatorOrderID   string      `json:"aggregator_order_id"`
	ShipmentSyncedAt    *time.Time  `json:"shipment_synced_at"`
	ShipmentSyncError   string      `json:"shipment_sync_error"`
	Items               []OrderItem `json:"items,omitempty"`
	Payments            []Payment   `json:"payments,omitempty"`
}

// OrderItem snapshots the purchased variant. Price is locked at purchase time
// and never re-read from the live catalog.
type OrderItem struct {
	BaseModel
	OrderID          uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID        *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductVariantID *uuid.UUID `gorm:"type:uuid" json:"product_variant_id"`
	ProductName      string     `json:"product_name"`
	VariantLabel     string     `json:"variant_label"`
	Quantity         int        `json:"quantity"`
	PriceAtPurchase  float64    `json:"price_at_purchase"`
	LineTotal        float64    `json:"line_total"`
}
