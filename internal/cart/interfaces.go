package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	LockByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	UpsertItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (bool, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	SetCoupon(ctx context.Context, cartID uuid.UUID, coupon *AppliedCoupon) error
}

type productLookup interface {
	GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Owner identifies a cart. UserID wins when both fields are set.
type Owner struct {
	UserID    *uuid.UUID
	SessionID string
}

func (o Owner) valid() bool {
	return (o.UserID != nil && *o.UserID != uuid.Nil) || o.SessionID != ""
}

// AppliedCoupon is the coupon snapshot stored on a cart. A nil value clears it.
type AppliedCoupon struct {
	CouponID      uuid.UUID
	Code          string
	DiscountCents int64
}

// ClearResult reports what ClearByUserID removed.
type ClearResult struct {
	CartExisted  bool
	ItemsRemoved int64
}
