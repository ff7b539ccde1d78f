// Package settings reads the shipping configuration.
package settings

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/repo"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
)

const shippingSettingsID = 1

// ShippingRule is the fee policy applied at order placement.
type ShippingRule struct {
	FlatRateCents              int64
	FreeShippingThresholdCents int64
}

// FeeFor returns the shipping fee for an order whose discounted subtotal is
// payableCents. A zero threshold disables free shipping.
func (r ShippingRule) FeeFor(payableCents int64) int64 {
	if r.FreeShippingThresholdCents > 0 && payableCents >= r.FreeShippingThresholdCents {
		return 0
	}
	return r.FlatRateCents
}

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Shipping returns the configured rule; a missing row means free shipping.
func (r *Repository) Shipping(ctx context.Context) (ShippingRule, error) {
	var row models.ShippingSettings
	err := r.DB(ctx).Where("id = ?", shippingSettingsID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ShippingRule{}, nil
	}
	if err != nil {
		return ShippingRule{}, err
	}
	return ShippingRule{
		FlatRateCents:              row.FlatRateCents,
		FreeShippingThresholdCents: row.FreeShippingThresholdCents,
	}, nil
}
