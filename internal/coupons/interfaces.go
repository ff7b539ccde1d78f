package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
)

// CouponRepository defines the persistence surface required by the coupon service.
type CouponRepository interface {
	WithTx(tx *gorm.DB) CouponRepository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	Save(ctx context.Context, coupon *models.Coupon) error
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	CountUsage(ctx context.Context, couponID uuid.UUID) (int64, error)
	CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	IncrementUsage(ctx context.Context, couponID uuid.UUID) (bool, error)
	InsertUsage(ctx context.Context, usage *models.CouponUsage) error
}

// Cache is the read-through cache port for coupon records keyed by code.
type Cache interface {
	Get(ctx context.Context, code string) (*models.Coupon, bool, error)
	Set(ctx context.Context, coupon *models.Coupon) error
	Invalidate(ctx context.Context, code string) error
}

type metricsSink interface {
	IncCouponRejected(reason string)
}
