package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// OrderItem snapshots catalog fields so historical orders survive catalog edits.
type OrderItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SKU               string          `gorm:"column:sku;not null"`
	Name              string          `gorm:"column:name;not null"`
	ImageURL          *string         `gorm:"column:image_url"`
	Description       *string         `gorm:"column:description"`
	Quantity          int             `gorm:"column:quantity;not null"`
	PriceType         enums.PriceType `gorm:"column:price_type;not null"`
	UnitPriceCents    int64           `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents int64           `gorm:"column:line_subtotal_cents;not null"`
	TaxRatePercent    decimal.Decimal `gorm:"column:tax_rate_percent;type:numeric(5,2);not null"`
	CGSTCents         int64           `gorm:"column:cgst_cents;not null;default:0"`
	SGSTCents         int64           `gorm:"column:sgst_cents;not null;default:0"`
	IGSTCents         int64           `gorm:"column:igst_cents;not null;default:0"`
	TotalCents        int64           `gorm:"column:total_cents;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}
