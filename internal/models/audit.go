package models

import (
	"github.com/google/uuid"
)

// AuditLog is an append-only record of admin actions with before/after
// snapshots. The application never updates or deletes rows.
type AuditLog struct {
	BaseModel
	AdminID    uuid.UUID `gorm:"type:uuid;index" json:"admin_id"`
	EntityType string    `gorm:"index" json:"entity_type"`
	EntityID   string    `gorm:"index" json:"entity_id"`
	Action     string    `json:"action"`
	OldValue   []byte    `gorm:"type:jsonb" json:"old_value"`
	NewValue   []byte    `gorm:"type:jsonb" json:"new_value"`
}
