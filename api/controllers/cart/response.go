package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// CartResponse is the cart as returned by every cart endpoint.
type CartResponse struct {
	ID                uuid.UUID          `json:"id"`
	Items             []CartItemResponse `json:"items"`
	SubtotalCents     int64              `json:"subtotal_cents"`
	AppliedCouponCode *string            `json:"applied_coupon_code,omitempty"`
	DiscountCents     int64              `json:"discount_cents"`
	TotalCents        int64              `json:"total_cents"`
}

type CartItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       int             `json:"quantity"`
	PriceType      enums.PriceType `json:"price_type"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	LineTotalCents int64           `json:"line_total_cents"`
}

// NewCartResponse renders a cart with its computed subtotal.
func NewCartResponse(record *models.Cart) CartResponse {
	if record == nil {
		return CartResponse{Items: []CartItemResponse{}}
	}
	items := make([]CartItemResponse, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, CartItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			PriceType:      item.PriceType,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents(),
		})
	}
	subtotal := record.SubtotalCents()
	total := subtotal - record.DiscountCents
	if total < 0 {
		total = 0
	}
	return CartResponse{
		ID:                record.ID,
		Items:             items,
		SubtotalCents:     subtotal,
		AppliedCouponCode: record.AppliedCouponCode,
		DiscountCents:     record.DiscountCents,
		TotalCents:        total,
	}
}
