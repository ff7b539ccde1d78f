package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsdirect-backend/pkg/types"
)

// Product is the read-only catalog projection checkout needs.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU            string           `gorm:"column:sku;not null"`
	Name           string           `gorm:"column:name;not null"`
	Description    *string          `gorm:"column:description"`
	ImageURL       *string          `gorm:"column:image_url"`
	Price          types.PriceField `gorm:"column:price;type:jsonb;serializer:json"`
	WholesalePrice types.PriceField `gorm:"column:wholesale_price;type:jsonb;serializer:json"`
	GSTRatePercent decimal.Decimal  `gorm:"column:gst_rate_percent;type:numeric(5,2);not null"`
	IsActive       bool             `gorm:"column:is_active;not null"`
	DeletedAt      *time.Time       `gorm:"column:deleted_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Purchasable reports whether the product may be added to a cart or ordered.
func (p Product) Purchasable() bool {
	return p.IsActive && p.DeletedAt == nil
}
