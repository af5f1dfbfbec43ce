package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// StockLog is the append-only audit row written inside the same transaction
// as the stock change it records. No field is ever updated after insert.
//
// For decrement/increment rows StockAfter == StockBefore + QuantityDelta.
// For reserve/release rows StockAfter == StockBefore; the delta tracks the
// reservation accounting, not a physical change.
type StockLog struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	OrderID       *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	Operation     enums.StockOperation `gorm:"column:operation;type:stock_operation;not null"`
	QuantityDelta int                  `gorm:"column:quantity_delta;not null"`
	StockBefore   int                  `gorm:"column:stock_before;not null"`
	StockAfter    int                  `gorm:"column:stock_after;not null"`
	Reason        string               `gorm:"column:reason;not null"`
	PerformedBy   *uuid.UUID           `gorm:"column:performed_by;type:uuid"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime;index"`
}
