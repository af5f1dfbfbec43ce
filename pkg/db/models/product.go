package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the catalog row this subsystem mutates. Stock is never written
// directly; every change goes through the stock repository under a row lock
// and leaves a StockLog entry behind.
type Product struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	SKU        string         `gorm:"column:sku;not null"`
	Name       string         `gorm:"column:name;not null"`
	PriceCents int            `gorm:"column:price_cents;not null"`
	Stock      int            `gorm:"column:stock;not null;default:0;check:stock >= 0"`
	Tags       pq.StringArray `gorm:"column:tags;type:text[]"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
