package models

import (
	"time"

	"github.com/google/uuid"
)

// StockReservation is a time-boxed hold against a product's stock. It is
// terminal after one of: conversion (Consumed set, OrderID set), release
// (ReleasedAt set) or expiry (clock only; swept asynchronously). Released and
// expired rows are kept for audit rather than deleted.
type StockReservation struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity   int        `gorm:"column:quantity;not null;check:quantity > 0"`
	SessionID  string     `gorm:"column:session_id;not null;index"`
	UserID     *uuid.UUID `gorm:"column:user_id;type:uuid"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null;index"`
	Consumed   bool       `gorm:"column:consumed;not null;default:false"`
	OrderID    *uuid.UUID `gorm:"column:order_id;type:uuid"`
	ReleasedAt *time.Time `gorm:"column:released_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether the hold lapsed before now.
func (r *StockReservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsActive reports whether the reservation still counts toward reserved
// capacity: unconsumed, unreleased and inside its TTL.
func (r *StockReservation) IsActive(now time.Time) bool {
	return !r.Consumed && r.ReleasedAt == nil && !r.IsExpired(now)
}
