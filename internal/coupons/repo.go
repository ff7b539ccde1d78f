package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/repo"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
)

// Repository persists coupons and their redemption records.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CouponRepository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// FindByCode looks the code up case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var row models.Coupon
	if err := r.DB(ctx).
		Where("code = ?", NormalizeCode(code)).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var row models.Coupon
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDForUpdate locks the coupon row for the rest of the transaction.
// The lock clause is ignored on SQLite, where the write lock serialises instead.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var row models.Coupon
	if err := r.Locked(ctx).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	return r.DB(ctx).Create(coupon).Error
}

// Save writes every mutable column of the coupon.
func (r *Repository) Save(ctx context.Context, coupon *models.Coupon) error {
	return r.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", coupon.ID).
		Updates(map[string]any{
			"discount_type":        coupon.DiscountType,
			"discount_value":       coupon.DiscountValue,
			"min_order_cents":      coupon.MinOrderCents,
			"max_discount_cents":   coupon.MaxDiscountCents,
			"usage_limit_total":    coupon.UsageLimitTotal,
			"usage_limit_per_user": coupon.UsageLimitPerUser,
			"valid_from":           coupon.ValidFrom,
			"valid_to":             coupon.ValidTo,
			"is_active":            coupon.IsActive,
			"updated_at":           time.Now().UTC(),
		}).Error
}

// Deactivate clears the active flag.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountUsageByUser counts redemptions of the coupon by the user.
func (r *Repository) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&n).Error
	return n, err
}

// CountUsage counts all redemptions of the coupon.
func (r *Repository) CountUsage(ctx context.Context, couponID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ?", couponID).
		Count(&n).Error
	return n, err
}

// IncrementUsage bumps used_count only while it is below the total limit.
// It reports false when the limit is already reached.
func (r *Repository) IncrementUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit_total IS NULL OR used_count < usage_limit_total)", couponID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// InsertUsage appends a redemption record.
func (r *Repository) InsertUsage(ctx context.Context, usage *models.CouponUsage) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	return r.DB(ctx).Create(usage).Error
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
