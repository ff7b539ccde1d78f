package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// Coupon codes are stored upper-cased. DiscountValue is a percentage for
// percent coupons and an amount in major currency units for flat coupons.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string             `gorm:"column:code;not null"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderCents     *int64             `gorm:"column:min_order_cents"`
	MaxDiscountCents  *int64             `gorm:"column:max_discount_cents"`
	UsageLimitTotal   *int               `gorm:"column:usage_limit_total"`
	UsageLimitPerUser *int               `gorm:"column:usage_limit_per_user"`
	UsedCount         int                `gorm:"column:used_count;not null;default:0"`
	ValidFrom         *time.Time         `gorm:"column:valid_from"`
	ValidTo           *time.Time         `gorm:"column:valid_to"`
	IsActive          bool               `gorm:"column:is_active;not null"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
