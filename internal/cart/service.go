// Package cart owns shopping carts for accounts and anonymous sessions.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/pricing"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

// Service exposes cart operations.
type Service interface {
	GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, owner Owner) (*models.Cart, error)
	SetCoupon(ctx context.Context, owner Owner, coupon *AppliedCoupon) (*models.Cart, error)
	ClearByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, expected []models.CartItem) (ClearResult, error)
}

// AddItemInput describes a line to add or overwrite.
type AddItemInput struct {
	ProductID    uuid.UUID
	Quantity     int
	CustomerType enums.PriceType
}

type service struct {
	repo     CartRepository
	products productLookup
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, products productLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &service{repo: repo, products: products}, nil
}

// GetOrCreate resolves the owner's cart, creating it on first use. Concurrent
// creators converge on a single row: the loser of the insert race re-reads.
func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	if !owner.valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id or session id is required")
	}

	cart, err := s.find(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	fresh := &models.Cart{}
	if owner.UserID != nil && *owner.UserID != uuid.Nil {
		uid := *owner.UserID
		fresh.UserID = &uid
	} else {
		sid := owner.SessionID
		fresh.SessionID = &sid
	}

	if err := s.repo.Create(ctx, fresh); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
		}
		cart, err = s.find(ctx, owner)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart after create race")
		}
		return cart, nil
	}
	fresh.Items = []models.CartItem{}
	return fresh, nil
}

func (s *service) find(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.UserID != nil && *owner.UserID != uuid.Nil {
		return s.repo.FindByUserID(ctx, *owner.UserID)
	}
	return s.repo.FindBySessionID(ctx, owner.SessionID)
}

// AddItem prices the product for the caller and upserts the line.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	product, err := s.products.GetPurchasable(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	price := pricing.Resolve(*product, input.CustomerType)
	item := &models.CartItem{
		CartID:         cart.ID,
		ProductID:      product.ID,
		Quantity:       input.Quantity,
		PriceType:      price.PriceType,
		UnitPriceCents: price.UnitPriceCents,
	}
	if _, err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
	}
	if err := s.dropCoupon(ctx, cart); err != nil {
		return nil, err
	}
	return s.reload(ctx, owner)
}

// UpdateQuantity changes a line in the owner's cart. Items from other carts are
// reported as not found.
func (s *service) UpdateQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdateItemQuantity(ctx, cart.ID, itemID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.dropCoupon(ctx, cart); err != nil {
		return nil, err
	}
	return s.reload(ctx, owner)
}

// RemoveItem deletes a line from the owner's cart.
func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.RemoveItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.dropCoupon(ctx, cart); err != nil {
		return nil, err
	}
	return s.reload(ctx, owner)
}

// Clear empties the owner's cart and drops any applied coupon.
func (s *service) Clear(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return s.reload(ctx, owner)
}

// SetCoupon stores the previewed coupon on the cart, or clears it when nil.
func (s *service) SetCoupon(ctx context.Context, owner Owner, coupon *AppliedCoupon) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetCoupon(ctx, cart.ID, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set cart coupon")
	}
	return s.reload(ctx, owner)
}

// ClearByUserID empties the account cart inside tx when provided. It is called
// once per placed order, after every order write has succeeded. When expected
// is non-nil the cart row is locked and its lines must still match expected,
// otherwise a conflict is returned and the caller's transaction rolls back.
func (s *service) ClearByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, expected []models.CartItem) (ClearResult, error) {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	var (
		cart *models.Cart
		err  error
	)
	if expected != nil {
		cart, err = repo.LockByUserID(ctx, userID)
	} else {
		cart, err = repo.FindByUserID(ctx, userID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if len(expected) > 0 {
				return ClearResult{}, cartChanged()
			}
			return ClearResult{}, nil
		}
		return ClearResult{}, err
	}
	if expected != nil && !sameLines(cart.Items, expected) {
		return ClearResult{}, cartChanged()
	}
	removed, err := repo.ClearItems(ctx, cart.ID)
	if err != nil {
		return ClearResult{}, err
	}
	if expected != nil && removed != int64(len(expected)) {
		return ClearResult{}, cartChanged()
	}
	return ClearResult{CartExisted: true, ItemsRemoved: removed}, nil
}

func cartChanged() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "cart changed during checkout; review the cart and retry")
}

type lineKey struct {
	id        uuid.UUID
	productID uuid.UUID
	quantity  int
	unitPrice int64
}

func sameLines(current, expected []models.CartItem) bool {
	if len(current) != len(expected) {
		return false
	}
	want := make(map[lineKey]int, len(expected))
	for _, item := range expected {
		want[lineKey{item.ID, item.ProductID, item.Quantity, item.UnitPriceCents}]++
	}
	for _, item := range current {
		key := lineKey{item.ID, item.ProductID, item.Quantity, item.UnitPriceCents}
		if want[key] == 0 {
			return false
		}
		want[key]--
	}
	return true
}

// dropCoupon clears an applied coupon after a line change. Its stored discount
// is only valid for the subtotal it was previewed against.
func (s *service) dropCoupon(ctx context.Context, cart *models.Cart) error {
	if cart.AppliedCouponCode == nil && cart.DiscountCents == 0 {
		return nil
	}
	if err := s.repo.SetCoupon(ctx, cart.ID, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart coupon")
	}
	return nil
}

func (s *service) reload(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return cart, nil
}
