package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a cart. PriceAtAddCents snapshots the product price
// when the shopper added the line; checkout validation compares it against the
// current price to detect drift.
type CartItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID          uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	PriceAtAddCents *int      `gorm:"column:price_at_add_cents"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
