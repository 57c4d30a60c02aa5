package models

import (
	"github.com/google/uuid"
)

type Product struct {
	BaseModel
	Slug             string           `gorm:"uniqueIndex" json:"slug"`
	Name             string           `json:"name"`
	ShortDescription string           `json:"short_description"`
	LongDescription  string           `json:"long_description"`
	BasePrice        float64          `json:"base_price"`
	Currency         string           `json:"currency"`
	HeroImage        string           `json:"hero_image"`
	IsActive         bool             `json:"is_active"`
	CategoryID       *uuid.UUID       `gorm:"type:uuid" json:"category_id"`
	Category         *Category        `json:"category,omitempty"`
	Variants         []ProductVariant `json:"variants,omitempty"`
}

type ProductVariant struct {
	BaseModel
	ProductID   uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	SKU         string    `gorm:"uniqueIndex" json:"sku"`
	Label       string    `json:"label"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	WeightGrams int       `json:"weight_grams"`
	IsActive    bool      `json:"is_active"`
}
