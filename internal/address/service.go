// Package address resolves saved addresses for the checkout flow.
package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

type addressReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
}

// Service exposes owner-scoped address lookups.
type Service interface {
	GetForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type service struct {
	repo addressReader
}

func NewService(repo addressReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

// GetForUser returns NOT_FOUND for missing addresses and FORBIDDEN when the
// address belongs to someone else.
func (s *service) GetForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address_id is required")
	}
	row, err := s.repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if row.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address does not belong to user")
	}
	return row, nil
}
