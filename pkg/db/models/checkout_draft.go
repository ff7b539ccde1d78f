package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// CheckoutDraft is a time-boxed checkout session opened from a cart.
type CheckoutDraft struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	CartID        uuid.UUID                 `gorm:"column:cart_id;type:uuid;not null"`
	SubtotalCents int64                     `gorm:"column:subtotal_cents;not null"`
	Status        enums.CheckoutDraftStatus `gorm:"column:status;not null"`
	ExpiresAt     time.Time                 `gorm:"column:expires_at;not null"`
	OrderID       *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	CompletedAt   *time.Time                `gorm:"column:completed_at"`
	ExpiredAt     *time.Time                `gorm:"column:expired_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
