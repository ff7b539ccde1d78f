package models

import "time"

// ShippingSettings is the single-row shipping configuration.
type ShippingSettings struct {
	ID                         int       `gorm:"column:id;primaryKey"`
	FlatRateCents              int64     `gorm:"column:flat_rate_cents;not null"`
	FreeShippingThresholdCents int64     `gorm:"column:free_shipping_threshold_cents;not null"`
	UpdatedAt                  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
