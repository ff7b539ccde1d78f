package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

// UpsertInput carries the admin-editable coupon fields.
type UpsertInput struct {
	Code              string
	DiscountType      enums.DiscountType
	DiscountValue     decimal.Decimal
	MinOrderCents     *int64
	MaxDiscountCents  *int64
	UsageLimitTotal   *int
	UsageLimitPerUser *int
	ValidFrom         *time.Time
	ValidTo           *time.Time
	IsActive          bool
}

func (in UpsertInput) validate() error {
	if NormalizeCode(in.Code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if !in.DiscountType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_type must be percent or flat")
	}
	if !in.DiscountValue.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_value must be greater than zero")
	}
	if in.DiscountType == enums.DiscountTypePercent && in.DiscountValue.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percent discount cannot exceed 100")
	}
	if in.MinOrderCents != nil && *in.MinOrderCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_order_cents must be non-negative")
	}
	if in.MaxDiscountCents != nil && *in.MaxDiscountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_discount_cents must be greater than zero")
	}
	if in.UsageLimitTotal != nil && *in.UsageLimitTotal <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage_limit_total must be greater than zero")
	}
	if in.UsageLimitPerUser != nil && *in.UsageLimitPerUser <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage_limit_per_user must be greater than zero")
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom) {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid_to must not be before valid_from")
	}
	return nil
}

func (in UpsertInput) apply(coupon *models.Coupon) {
	coupon.DiscountType = in.DiscountType
	coupon.DiscountValue = in.DiscountValue
	coupon.MinOrderCents = in.MinOrderCents
	coupon.MaxDiscountCents = in.MaxDiscountCents
	coupon.UsageLimitTotal = in.UsageLimitTotal
	coupon.UsageLimitPerUser = in.UsageLimitPerUser
	coupon.ValidFrom = in.ValidFrom
	coupon.ValidTo = in.ValidTo
	coupon.IsActive = in.IsActive
}

// Create stores a new coupon with an upper-cased code.
func (s *service) Create(ctx context.Context, input UpsertInput) (*models.Coupon, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	coupon := &models.Coupon{Code: NormalizeCode(input.Code)}
	input.apply(coupon)

	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	if err := s.invalidate(ctx, coupon.Code); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Update rewrites a coupon's terms. Coupons with recorded usage are frozen;
// only Deactivate may change them. The code itself is immutable.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpsertInput) (*models.Coupon, error) {
	coupon, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Code == "" {
		input.Code = coupon.Code
	}
	if NormalizeCode(input.Code) != coupon.Code {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code cannot be changed")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	used, err := s.repo.CountUsage(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
	}
	if used > 0 || coupon.UsedCount > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon has been redeemed and can only be deactivated")
	}

	input.apply(coupon)
	if err := s.repo.Save(ctx, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	if err := s.invalidate(ctx, coupon.Code); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Deactivate is always allowed and idempotent.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Deactivate(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate coupon")
	}
	coupon.IsActive = false
	if err := s.invalidate(ctx, coupon.Code); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

// invalidate fails the mutation when the cache entry cannot be dropped.
func (s *service) invalidate(ctx context.Context, code string) error {
	if err := s.cache.Invalidate(ctx, code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate coupon cache")
	}
	return nil
}
