package checkoutdrafts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/repo"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

// Repository persists checkout drafts.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, draft *models.CheckoutDraft) error {
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	return r.DB(ctx).Create(draft).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutDraft, error) {
	var draft models.CheckoutDraft
	if err := r.DB(ctx).Where("id = ?", id).First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// FindForUpdate locks the draft row for the rest of the transaction.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.CheckoutDraft, error) {
	var draft models.CheckoutDraft
	if err := r.Locked(ctx).
		Where("id = ?", id).
		First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// MarkCompleted moves an active draft to completed and links the order.
func (r *Repository) MarkCompleted(ctx context.Context, id, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.CheckoutDraft{}).
		Where("id = ? AND status = ?", id, enums.CheckoutDraftStatusActive).
		Updates(map[string]any{
			"status":       enums.CheckoutDraftStatusCompleted,
			"order_id":     orderID,
			"completed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpireBefore bulk-expires active drafts whose expires_at is before cutoff.
func (r *Repository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.CheckoutDraft{}).
		Where("status = ? AND expires_at < ?", enums.CheckoutDraftStatusActive, cutoff).
		Updates(map[string]any{
			"status":     enums.CheckoutDraftStatusExpired,
			"expired_at": cutoff,
			"updated_at": cutoff,
		})
	return res.RowsAffected, res.Error
}
