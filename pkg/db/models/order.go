package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/types"
)

// Order totals are snapshotted at placement and never recomputed.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null"`
	CheckoutToken     *string             `gorm:"column:checkout_token"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	ShippingAddressID uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  uuid.UUID           `gorm:"column:billing_address_id;type:uuid;not null"`
	ShippingAddress   types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	SubtotalCents     int64               `gorm:"column:subtotal_cents;not null"`
	DiscountCents     int64               `gorm:"column:discount_cents;not null;default:0"`
	TaxCents          int64               `gorm:"column:tax_cents;not null;default:0"`
	ShippingFeeCents  int64               `gorm:"column:shipping_fee_cents;not null;default:0"`
	GrandTotalCents   int64               `gorm:"column:grand_total_cents;not null"`
	CouponID          *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	CouponCode        *string             `gorm:"column:coupon_code"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;not null"`
	OrderStatus       enums.OrderStatus   `gorm:"column:order_status;not null"`
	PaymentReference  *string             `gorm:"column:payment_reference"`
	AmountPaidCents   int64               `gorm:"column:amount_paid_cents;not null;default:0"`
	PlacedAt          time.Time           `gorm:"column:placed_at;not null"`
	ConfirmedAt       *time.Time          `gorm:"column:confirmed_at"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
