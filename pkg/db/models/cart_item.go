package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// CartItem is unique per (cart_id, product_id); UnitPriceCents is the price at add time.
type CartItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID       `gorm:"column:cart_id;type:uuid;not null"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	PriceType      enums.PriceType `gorm:"column:price_type;not null"`
	UnitPriceCents int64           `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i CartItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}
