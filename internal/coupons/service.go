// Package coupons validates coupon codes, computes discounts and records redemptions.
package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

// Rejection reasons, reported in error details and metrics.
const (
	ReasonInvalid        = "invalid"
	ReasonInactive       = "inactive"
	ReasonNotYetActive   = "not_yet_active"
	ReasonExpired        = "expired"
	ReasonBelowMinimum   = "below_minimum"
	ReasonUsageLimit     = "usage_limit_reached"
	ReasonUserUsageLimit = "user_limit_reached"
)

var (
	hundred = decimal.NewFromInt(100)

	rejectionMessages = map[string]string{
		ReasonInvalid:        "Invalid coupon",
		ReasonInactive:       "Coupon inactive",
		ReasonNotYetActive:   "Coupon not active yet",
		ReasonExpired:        "Coupon expired",
		ReasonBelowMinimum:   "Order does not meet coupon minimum",
		ReasonUsageLimit:     "Coupon usage limit reached",
		ReasonUserUsageLimit: "Coupon user limit reached",
	}
)

// PreviewInput is the read-only estimate request.
type PreviewInput struct {
	UserID        uuid.UUID
	Code          string
	SubtotalCents int64
}

// Preview is the discount a coupon would grant on the subtotal.
type Preview struct {
	CouponID           uuid.UUID `json:"coupon_id"`
	Code               string    `json:"code"`
	DiscountCents      int64     `json:"discount_cents"`
	FinalPayableCents  int64     `json:"final_payable_cents"`
	OrderSubtotalCents int64     `json:"order_subtotal_cents"`
}

// Validated carries everything the order builder needs to record a redemption.
type Validated struct {
	Preview
	UserID uuid.UUID
}

// Service exposes the coupon engine.
type Service interface {
	Preview(ctx context.Context, input PreviewInput) (*Preview, error)
	Validate(ctx context.Context, input PreviewInput) (*Validated, error)
	Redeem(ctx context.Context, tx *gorm.DB, validated *Validated, orderID uuid.UUID) error
	Create(ctx context.Context, input UpsertInput) (*models.Coupon, error)
	Update(ctx context.Context, id uuid.UUID, input UpsertInput) (*models.Coupon, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

type service struct {
	repo    CouponRepository
	cache   Cache
	metrics metricsSink
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the coupon engine. A nil cache disables caching.
func NewService(repo CouponRepository, cache Cache, metrics metricsSink, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if cache == nil {
		cache = NoopCache{}
	}
	return &service{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Preview checks the rules in a fixed order and fails on the first violation.
func (s *service) Preview(ctx context.Context, input PreviewInput) (*Preview, error) {
	if NormalizeCode(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if input.SubtotalCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order subtotal must be non-negative")
	}

	coupon, err := s.lookup(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, s.reject(ReasonInvalid)
	}
	if !coupon.IsActive {
		return nil, s.reject(ReasonInactive)
	}

	now := s.now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, s.reject(ReasonNotYetActive)
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return nil, s.reject(ReasonExpired)
	}
	if coupon.MinOrderCents != nil && input.SubtotalCents < *coupon.MinOrderCents {
		return nil, s.reject(ReasonBelowMinimum).WithDetails(map[string]any{
			"reason":          ReasonBelowMinimum,
			"min_order_cents": *coupon.MinOrderCents,
		})
	}

	if coupon.UsageLimitTotal != nil {
		used, err := s.repo.CountUsage(ctx, coupon.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
		}
		if used >= int64(*coupon.UsageLimitTotal) {
			return nil, s.reject(ReasonUsageLimit)
		}
	}
	if coupon.UsageLimitPerUser != nil {
		used, err := s.repo.CountUsageByUser(ctx, coupon.ID, input.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count user coupon usage")
		}
		if used >= int64(*coupon.UsageLimitPerUser) {
			return nil, s.reject(ReasonUserUsageLimit)
		}
	}

	discount := ComputeDiscount(*coupon, input.SubtotalCents)
	return &Preview{
		CouponID:           coupon.ID,
		Code:               coupon.Code,
		DiscountCents:      discount,
		FinalPayableCents:  input.SubtotalCents - discount,
		OrderSubtotalCents: input.SubtotalCents,
	}, nil
}

// Validate runs Preview and returns the redemption identifiers. It does not
// persist anything; Redeem does that inside the order transaction.
func (s *service) Validate(ctx context.Context, input PreviewInput) (*Validated, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required to redeem a coupon")
	}
	preview, err := s.Preview(ctx, input)
	if err != nil {
		return nil, err
	}
	return &Validated{Preview: *preview, UserID: input.UserID}, nil
}

// Redeem increments the coupon's counter under its total limit, re-checks the
// per-user limit while holding the row, and appends the usage record. All of it
// runs on tx so a coupon is never spent without its order.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, validated *Validated, orderID uuid.UUID) error {
	if validated == nil {
		return nil
	}
	if tx == nil {
		return fmt.Errorf("coupon redemption requires a transaction")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.IncrementUsage(ctx, validated.CouponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !ok {
		s.observeRejection(ReasonUsageLimit)
		return pkgerrors.New(pkgerrors.CodeConflict, rejectionMessages[ReasonUsageLimit]).
			WithDetails(map[string]any{"reason": ReasonUsageLimit})
	}

	coupon, err := repo.FindByIDForUpdate(ctx, validated.CouponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock coupon")
	}
	if coupon.UsageLimitPerUser != nil {
		used, err := repo.CountUsageByUser(ctx, coupon.ID, validated.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count user coupon usage")
		}
		if used >= int64(*coupon.UsageLimitPerUser) {
			s.observeRejection(ReasonUserUsageLimit)
			return pkgerrors.New(pkgerrors.CodeConflict, rejectionMessages[ReasonUserUsageLimit]).
				WithDetails(map[string]any{"reason": ReasonUserUsageLimit})
		}
	}

	usage := &models.CouponUsage{
		CouponID:      validated.CouponID,
		UserID:        validated.UserID,
		OrderID:       orderID,
		DiscountCents: validated.DiscountCents,
	}
	if err := repo.InsertUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert coupon usage")
	}
	return nil
}

// ComputeDiscount applies the coupon to subtotalCents: percent of subtotal or a
// flat amount, capped by the coupon maximum and then by the subtotal itself.
func ComputeDiscount(coupon models.Coupon, subtotalCents int64) int64 {
	if subtotalCents <= 0 {
		return 0
	}
	var discount int64
	switch coupon.DiscountType {
	case enums.DiscountTypePercent:
		discount = decimal.NewFromInt(subtotalCents).
			Mul(coupon.DiscountValue).
			Div(hundred).
			Round(0).
			IntPart()
	case enums.DiscountTypeFlat:
		discount = coupon.DiscountValue.Mul(hundred).Round(0).IntPart()
	}
	if discount < 0 {
		discount = 0
	}
	if coupon.MaxDiscountCents != nil && discount > *coupon.MaxDiscountCents {
		discount = *coupon.MaxDiscountCents
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount
}

// lookup reads through the cache. Cache failures fall back to the database.
func (s *service) lookup(ctx context.Context, code string) (*models.Coupon, error) {
	if cached, ok, err := s.cache.Get(ctx, code); err != nil {
		s.warn(ctx, "coupon cache read failed", err)
	} else if ok {
		return cached, nil
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if err := s.cache.Set(ctx, coupon); err != nil {
		s.warn(ctx, "coupon cache write failed", err)
	}
	return coupon, nil
}

func (s *service) reject(reason string) *pkgerrors.Error {
	s.observeRejection(reason)
	return pkgerrors.New(pkgerrors.CodeValidation, rejectionMessages[reason]).
		WithDetails(map[string]any{"reason": reason})
}

func (s *service) observeRejection(reason string) {
	if s.metrics != nil {
		s.metrics.IncCouponRejected(reason)
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
