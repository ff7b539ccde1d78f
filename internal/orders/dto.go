package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/types"
)

// OrderItemDTO is the API view of a snapshotted order line.
type OrderItemDTO struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	ImageURL          *string         `json:"image_url,omitempty"`
	Description       *string         `json:"description,omitempty"`
	Quantity          int             `json:"quantity"`
	PriceType         enums.PriceType `json:"price_type"`
	UnitPriceCents    int64           `json:"unit_price_cents"`
	LineSubtotalCents int64           `json:"line_subtotal_cents"`
	TaxRatePercent    decimal.Decimal `json:"tax_rate_percent"`
	CGSTCents         int64           `json:"cgst_cents"`
	SGSTCents         int64           `json:"sgst_cents"`
	IGSTCents         int64           `json:"igst_cents"`
	TotalCents        int64           `json:"total_cents"`
}

// OrderDTO is the API view of an order.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	OrderStatus      enums.OrderStatus   `json:"order_status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	SubtotalCents    int64               `json:"subtotal_cents"`
	DiscountCents    int64               `json:"discount_cents"`
	TaxCents         int64               `json:"tax_cents"`
	ShippingFeeCents int64               `json:"shipping_fee_cents"`
	GrandTotalCents  int64               `json:"grand_total_cents"`
	AmountPaidCents  int64               `json:"amount_paid_cents"`
	CouponCode       *string             `json:"coupon_code,omitempty"`
	ShippingAddress  types.Address       `json:"shipping_address"`
	PlacedAt         time.Time           `json:"placed_at"`
	ConfirmedAt      *time.Time          `json:"confirmed_at,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	Items            []OrderItemDTO      `json:"items,omitempty"`
}

// HistoryPage is one page of a customer's orders.
type HistoryPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// PlaceOrderResult wraps the order and whether it came from an earlier attempt.
type PlaceOrderResult struct {
	Order    OrderDTO `json:"order"`
	Replayed bool     `json:"replayed"`
}

// ToDTO maps a stored order to its API view.
func ToDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		OrderStatus:      order.OrderStatus,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		SubtotalCents:    order.SubtotalCents,
		DiscountCents:    order.DiscountCents,
		TaxCents:         order.TaxCents,
		ShippingFeeCents: order.ShippingFeeCents,
		GrandTotalCents:  order.GrandTotalCents,
		AmountPaidCents:  order.AmountPaidCents,
		CouponCode:       order.CouponCode,
		ShippingAddress:  order.ShippingAddress,
		PlacedAt:         order.PlacedAt,
		ConfirmedAt:      order.ConfirmedAt,
		PaidAt:           order.PaidAt,
		CancelledAt:      order.CancelledAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:                item.ID,
			ProductID:         item.ProductID,
			SKU:               item.SKU,
			Name:              item.Name,
			ImageURL:          item.ImageURL,
			Description:       item.Description,
			Quantity:          item.Quantity,
			PriceType:         item.PriceType,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
			TaxRatePercent:    item.TaxRatePercent,
			CGSTCents:         item.CGSTCents,
			SGSTCents:         item.SGSTCents,
			IGSTCents:         item.IGSTCents,
			TotalCents:        item.TotalCents,
		})
	}
	return dto
}
