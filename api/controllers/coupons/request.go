package coupons

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	couponsvc "github.com/angelmondragon/partsdirect-backend/internal/coupons"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

type previewRequest struct {
	Code               string `json:"code" validate:"required,coupon_code"`
	OrderSubtotalCents *int64 `json:"order_subtotal_cents" validate:"omitempty,min=0"`
}

type applyRequest struct {
	Code string `json:"code" validate:"required,coupon_code"`
}

type upsertRequest struct {
	Code              string             `json:"code" validate:"required,coupon_code"`
	DiscountType      enums.DiscountType `json:"discount_type" validate:"required,oneof=percent flat"`
	DiscountValue     decimal.Decimal    `json:"discount_value"`
	MinOrderCents     *int64             `json:"min_order_cents"`
	MaxDiscountCents  *int64             `json:"max_discount_cents"`
	UsageLimitTotal   *int               `json:"usage_limit_total"`
	UsageLimitPerUser *int               `json:"usage_limit_per_user"`
	ValidFrom         *time.Time         `json:"valid_from"`
	ValidTo           *time.Time         `json:"valid_to"`
	IsActive          *bool              `json:"is_active"`
}

func (r upsertRequest) toInput() couponsvc.UpsertInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return couponsvc.UpsertInput{
		Code:              r.Code,
		DiscountType:      r.DiscountType,
		DiscountValue:     r.DiscountValue,
		MinOrderCents:     r.MinOrderCents,
		MaxDiscountCents:  r.MaxDiscountCents,
		UsageLimitTotal:   r.UsageLimitTotal,
		UsageLimitPerUser: r.UsageLimitPerUser,
		ValidFrom:         r.ValidFrom,
		ValidTo:           r.ValidTo,
		IsActive:          active,
	}
}

type couponResponse struct {
	ID                uuid.UUID          `json:"id"`
	Code              string             `json:"code"`
	DiscountType      enums.DiscountType `json:"discount_type"`
	DiscountValue     decimal.Decimal    `json:"discount_value"`
	MinOrderCents     *int64             `json:"min_order_cents,omitempty"`
	MaxDiscountCents  *int64             `json:"max_discount_cents,omitempty"`
	UsageLimitTotal   *int               `json:"usage_limit_total,omitempty"`
	UsageLimitPerUser *int               `json:"usage_limit_per_user,omitempty"`
	UsedCount         int                `json:"used_count"`
	ValidFrom         *time.Time         `json:"valid_from,omitempty"`
	ValidTo           *time.Time         `json:"valid_to,omitempty"`
	IsActive          bool               `json:"is_active"`
}

func newCouponResponse(c *models.Coupon) couponResponse {
	return couponResponse{
		ID:                c.ID,
		Code:              c.Code,
		DiscountType:      c.DiscountType,
		DiscountValue:     c.DiscountValue,
		MinOrderCents:     c.MinOrderCents,
		MaxDiscountCents:  c.MaxDiscountCents,
		UsageLimitTotal:   c.UsageLimitTotal,
		UsageLimitPerUser: c.UsageLimitPerUser,
		UsedCount:         c.UsedCount,
		ValidFrom:         c.ValidFrom,
		ValidTo:           c.ValidTo,
		IsActive:          c.IsActive,
	}
}
