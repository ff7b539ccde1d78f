package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// OrderPlacedEvent is emitted once the order, its items and any coupon usage are committed.
type OrderPlacedEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     string              `json:"order_number"`
	UserID          uuid.UUID           `json:"user_id"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	SubtotalCents   int64               `json:"subtotal_cents"`
	DiscountCents   int64               `json:"discount_cents"`
	TaxCents        int64               `json:"tax_cents"`
	ShippingCents   int64               `json:"shipping_fee_cents"`
	GrandTotalCents int64               `json:"grand_total_cents"`
	ItemCount       int                 `json:"item_count"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	PlacedAt        time.Time           `json:"placed_at"`
}

// OrderPaymentEvent reports a payment status change on an order.
type OrderPaymentEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	OrderNumber      string              `json:"order_number"`
	PaymentReference string              `json:"payment_reference"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	AmountPaidCents  int64               `json:"amount_paid_cents"`
	Source           string              `json:"source"`
}

// OrderStatusEvent reports an order status transition.
type OrderStatusEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Reason      string            `json:"reason,omitempty"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// CouponRedeemedEvent reports a coupon usage recorded with an order.
type CouponRedeemedEvent struct {
	CouponID      uuid.UUID `json:"coupon_id"`
	Code          string    `json:"code"`
	UserID        uuid.UUID `json:"user_id"`
	OrderID       uuid.UUID `json:"order_id"`
	DiscountCents int64     `json:"discount_cents"`
}
