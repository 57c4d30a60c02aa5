package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
)

// ErrZeroDelta rejects stock adjustments that would not change anything.
var ErrZeroDelta = errors.New("stock delta must be non-zero")

// InventoryService applies administrative stock movements.
type InventoryService struct {
	db *gorm.DB
}

func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db}
}

// StockAdjustment describes a manual stock movement.
type StockAdjustment struct {
	VariantID uuid.UUID
	Delta     int
	Reason    string
	AdminID   uuid.UUID
}

// StockAdjustmentResult reports the level before and after the movement.
type StockAdjustmentResult struct {
	VariantID uuid.UUID `json:"variant_id"`
	Before    int       `json:"before"`
	After     int       `json:"after"`
}

// Adjust upserts the inventory level by a relative delta and appends the
// ledger and audit entries. The three writes are one unit: if any fails,
// all roll back.
func (s *InventoryService) Adjust(ctx context.Context, adj StockAdjustment) (*StockAdjustmentResult, error) {
	if adj.Delta == 0 {
		return nil, ErrZeroDelta
	}

	result := &StockAdjustmentResult{VariantID: adj.VariantID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.InventoryLevel{}).
			Where("variant_id = ?", adj.VariantID).
			UpdateColumn("available", gorm.Expr("available + ?", adj.Delta))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			level := models.InventoryLevel{VariantID: adj.VariantID, Available: adj.Delta}
			if err := tx.Create(&level).Error; err != nil {
				return err
			}
			result.Before = 0
			result.After = adj.Delta
		} else {
			var level models.InventoryLevel
			if err := tx.Where("variant_id = ?", adj.VariantID).First(&level).Error; err != nil {
				return err
			}
			result.Before = level.Available - adj.Delta
			result.After = level.Available
		}

		entry := models.StockLedger{
			VariantID: adj.VariantID,
			Delta:     adj.Delta,
			Reason:    adj.Reason,
			AdminID:   &adj.AdminID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		oldSnap, _ := json.Marshal(map[string]int{"available": result.Before})
		newSnap, _ := json.Marshal(map[string]int{"available": result.After})
		audit := models.AuditLog{
			AdminID:    adj.AdminID,
			EntityType: "inventory_level",
			EntityID:   adj.VariantID.String(),
			Action:     "stock_adjust",
			OldValue:   oldSnap,
			NewValue:   newSnap,
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
