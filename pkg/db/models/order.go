package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/angelmondragon/stockledger-backend/pkg/types"
)

// MetadataKeyReservationIDs is the order metadata key carrying the ids of
// reservations consumed while creating the order. The payment failure path
// reads this list to release holds; any caller creating orders without
// populating it breaks that recovery path.
const MetadataKeyReservationIDs = "stock_reservation_ids"

// Order is created only after the payment provider confirms the intent is
// payable (payment-first flow).
type Order struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     int64                  `gorm:"column:order_number;not null;uniqueIndex"`
	SessionID       string                 `gorm:"column:session_id;not null;index"`
	UserID          *uuid.UUID             `gorm:"column:user_id;type:uuid"`
	PaymentID       string                 `gorm:"column:payment_id;not null;index"`
	PaymentMethod   enums.PaymentMethod    `gorm:"column:payment_method;type:payment_method;not null;default:'card'"`
	Status          enums.OrderStatus      `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus    `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	TotalCents      int                    `gorm:"column:total_cents;not null"`
	PaidAmountCents *int                   `gorm:"column:paid_amount_cents"`
	Metadata        types.JSONMap          `gorm:"column:metadata;type:jsonb;serializer:json"`
	ShippingAddress *types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Items           []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// ReservationIDs reads the consumed reservation id list out of metadata.
func (o *Order) ReservationIDs() []uuid.UUID {
	raw := o.Metadata.StringSlice(MetadataKeyReservationIDs)
	ids := make([]uuid.UUID, 0, len(raw))
	for _, item := range raw {
		if id, err := uuid.Parse(item); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
