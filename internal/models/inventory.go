package models

import (
	"github.com/google/uuid"
)

// InventoryLevel is the materialized current stock per variant. Rows are
// created lazily on the first stock movement, not at catalog creation.
type InventoryLevel struct {
	BaseModel
	VariantID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"variant_id"`
	Available int       `json:"available"`
	Reserved  int       `json:"reserved"`
}

// StockLedger is the append-only record of stock deltas backing InventoryLevel.
type StockLedger struct {
	BaseModel
	VariantID uuid.UUID  `gorm:"type:uuid;index" json:"variant_id"`
	Delta     int        `json:"delta"`
	Reason    string     `json:"reason"`
	OrderID   *uuid.UUID `gorm:"type:uuid" json:"order_id"`
	AdminID   *uuid.UUID `gorm:"type:uuid" json:"admin_id"`
}
