package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/internal/coupons"
	"github.com/angelmondragon/partsdirect-backend/internal/settings"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	FindByCheckoutToken(ctx context.Context, userID uuid.UUID, token string) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListStalePlaced(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartStore interface {
	GetOrCreate(ctx context.Context, owner cart.Owner) (*models.Cart, error)
	ClearByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, expected []models.CartItem) (cart.ClearResult, error)
}

type productCatalog interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type addressResolver interface {
	GetForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type couponEngine interface {
	Validate(ctx context.Context, input coupons.PreviewInput) (*coupons.Validated, error)
	Redeem(ctx context.Context, tx *gorm.DB, validated *coupons.Validated, orderID uuid.UUID) error
}

type shippingSource interface {
	Shipping(ctx context.Context) (settings.ShippingRule, error)
}

// DraftCompleter marks a checkout draft as consumed by an order inside tx.
type DraftCompleter interface {
	Complete(ctx context.Context, tx *gorm.DB, draftID, userID, orderID uuid.UUID) error
}

type metricsSink interface {
	IncOrderPlaced(method string)
}
