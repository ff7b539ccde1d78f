// Package checkoutdrafts manages time-boxed checkout sessions opened from a cart.
package checkoutdrafts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

const defaultTTL = 30 * time.Minute

// Draft is the API view of a checkout draft.
type Draft struct {
	ID            uuid.UUID                 `json:"id"`
	CartID        uuid.UUID                 `json:"cart_id"`
	SubtotalCents int64                     `json:"subtotal_cents"`
	Status        enums.CheckoutDraftStatus `json:"status"`
	ExpiresAt     time.Time                 `json:"expires_at"`
	OrderID       *uuid.UUID                `json:"order_id,omitempty"`
}

func toDraft(m *models.CheckoutDraft) *Draft {
	return &Draft{
		ID:            m.ID,
		CartID:        m.CartID,
		SubtotalCents: m.SubtotalCents,
		Status:        m.Status,
		ExpiresAt:     m.ExpiresAt,
		OrderID:       m.OrderID,
	}
}

// Service opens, completes and expires checkout drafts.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID) (*Draft, error)
	Get(ctx context.Context, userID, draftID uuid.UUID) (*Draft, error)
	Complete(ctx context.Context, tx *gorm.DB, draftID, userID, orderID uuid.UUID) error
	ExpireStale(ctx context.Context) (int64, error)
}

type cartReader interface {
	GetOrCreate(ctx context.Context, owner cart.Owner) (*models.Cart, error)
}

type service struct {
	repo  *Repository
	carts cartReader
	ttl   time.Duration
	now   func() time.Time
}

func NewService(repo *Repository, carts cartReader, ttl time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout draft repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &service{
		repo:  repo,
		carts: carts,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create snapshots the user's cart subtotal into a new active draft.
func (s *service) Create(ctx context.Context, userID uuid.UUID) (*Draft, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	c, err := s.carts.GetOrCreate(ctx, cart.Owner{UserID: &userID})
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	now := s.now()
	draft := &models.CheckoutDraft{
		ID:            uuid.New(),
		UserID:        userID,
		CartID:        c.ID,
		SubtotalCents: c.SubtotalCents(),
		Status:        enums.CheckoutDraftStatusActive,
		ExpiresAt:     now.Add(s.ttl),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout draft")
	}
	return toDraft(draft), nil
}

func (s *service) Get(ctx context.Context, userID, draftID uuid.UUID) (*Draft, error) {
	draft, err := s.repo.FindByID(ctx, draftID)
	if err != nil {
		return nil, lookupError(err)
	}
	if draft.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout draft does not belong to user")
	}
	return toDraft(draft), nil
}

// Complete consumes an active, unexpired draft inside the order transaction.
func (s *service) Complete(ctx context.Context, tx *gorm.DB, draftID, userID, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	draft, err := repo.FindForUpdate(ctx, draftID)
	if err != nil {
		return lookupError(err)
	}
	if draft.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "checkout draft does not belong to user")
	}
	now := s.now()
	switch {
	case draft.Status == enums.CheckoutDraftStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout draft already used")
	case draft.Status == enums.CheckoutDraftStatusExpired || !now.Before(draft.ExpiresAt):
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout draft expired").
			WithDetails(map[string]any{"expires_at": draft.ExpiresAt})
	}

	ok, err := repo.MarkCompleted(ctx, draftID, orderID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete checkout draft")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout draft changed concurrently")
	}
	return nil
}

// ExpireStale marks every active draft past its expiry as expired.
func (s *service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireBefore(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire checkout drafts")
	}
	return n, nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "checkout draft not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
}
