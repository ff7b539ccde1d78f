// Package catalog is the read-only product lookup used by cart and checkout.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/repo"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

// Repository reads products. Soft-deleted rows are still returned so callers
// can tell "gone" apart from "never existed".
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// GetPurchasable returns the product or NOT_FOUND / VALIDATION errors when it
// cannot be bought.
func (r *Repository) GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var row models.Product
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !row.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available for purchase").
			WithDetails(map[string]any{"product_id": id.String()})
	}
	return &row, nil
}

// ListByIDs loads the products referenced by ids, keyed by id. Missing ids are
// absent from the map.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
