package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is keyed by exactly one of UserID or SessionID.
type Cart struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            *uuid.UUID `gorm:"column:user_id;type:uuid"`
	SessionID         *string    `gorm:"column:session_id"`
	AppliedCouponID   *uuid.UUID `gorm:"column:applied_coupon_id;type:uuid"`
	AppliedCouponCode *string    `gorm:"column:applied_coupon_code"`
	DiscountCents     int64      `gorm:"column:discount_cents;not null;default:0"`
	Items             []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// SubtotalCents sums the captured line prices.
func (c Cart) SubtotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotalCents()
	}
	return total
}
