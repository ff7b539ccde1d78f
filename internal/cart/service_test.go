package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/types"
)

type stubProducts struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProducts) GetPurchasable(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

func newProduct(retail, wholesale int64) *models.Product {
	p := &models.Product{
		ID:       uuid.New(),
		SKU:      "SKU",
		Name:     "Oil filter",
		Price:    types.NewPlainPrice(decimal.NewFromInt(retail)),
		IsActive: true,
	}
	if wholesale > 0 {
		p.WholesalePrice = types.NewPlainPrice(decimal.NewFromInt(wholesale))
	}
	return p
}

func setupService(t *testing.T, products ...*models.Product) (Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t).DB()
	repo := NewRepository(conn)
	stub := &stubProducts{products: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		stub.products[p.ID] = p
	}
	svc, err := NewService(repo, stub)
	require.NoError(t, err)
	return svc, repo, conn
}

func countCarts(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Cart{}).Count(&n).Error)
	return n
}

func TestGetOrCreateConcurrentSameUser(t *testing.T) {
	svc, _, conn := setupService(t)
	userID := uuid.New()

	const workers = 8
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := svc.GetOrCreate(context.Background(), Owner{UserID: &userID})
			errs[i] = err
			if cart != nil {
				ids[i] = cart.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), countCarts(t, conn))
}

// blindRepo misses the first lookup, simulating a request that lost the race
// between its read and another request's insert.
type blindRepo struct {
	*Repository
	missed bool
}

func (b *blindRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if !b.missed {
		b.missed = true
		return nil, gorm.ErrRecordNotFound
	}
	return b.Repository.FindByUserID(ctx, userID)
}

func TestGetOrCreateRecoversFromUniqueViolation(t *testing.T) {
	conn := dbtest.Open(t).DB()
	base := NewRepository(conn)
	userID := uuid.New()
	existing := &models.Cart{UserID: &userID}
	require.NoError(t, base.Create(context.Background(), existing))

	svc, err := NewService(&blindRepo{Repository: base}, &stubProducts{})
	require.NoError(t, err)

	cart, err := svc.GetOrCreate(context.Background(), Owner{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, cart.ID)
	assert.Equal(t, int64(1), countCarts(t, conn))
}

func TestGetOrCreatePrefersUserID(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	sessionCart, err := svc.GetOrCreate(ctx, Owner{SessionID: "sess-1"})
	require.NoError(t, err)
	userCart, err := svc.GetOrCreate(ctx, Owner{UserID: &userID})
	require.NoError(t, err)
	require.NotEqual(t, sessionCart.ID, userCart.ID)

	got, err := svc.GetOrCreate(ctx, Owner{UserID: &userID, SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, userCart.ID, got.ID)

	_, err = svc.GetOrCreate(ctx, Owner{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestAddItemTwiceKeepsSingleLine(t *testing.T) {
	product := newProduct(100, 0)
	svc, _, _ := setupService(t, product)
	ctx := context.Background()
	owner := Owner{SessionID: "sess-add"}

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product.ID, Quantity: 5})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, int64(10000), cart.Items[0].UnitPriceCents)
	assert.Equal(t, int64(50000), cart.SubtotalCents())
}

func TestAddItemCapturesWholesalePrice(t *testing.T) {
	product := newProduct(100, 80)
	svc, _, _ := setupService(t, product)
	userID := uuid.New()

	cart, err := svc.AddItem(context.Background(), Owner{UserID: &userID}, AddItemInput{
		ProductID: product.ID, Quantity: 1, CustomerType: enums.PriceTypeWholesale,
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(8000), cart.Items[0].UnitPriceCents)
	assert.Equal(t, enums.PriceTypeWholesale, cart.Items[0].PriceType)
}

func TestAddItemValidation(t *testing.T) {
	product := newProduct(100, 0)
	svc, _, _ := setupService(t, product)
	owner := Owner{SessionID: "sess-v"}

	_, err := svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 0})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(context.Background(), owner, AddItemInput{ProductID: uuid.New(), Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestItemOperationsScopedToCart(t *testing.T) {
	product := newProduct(50, 0)
	svc, _, _ := setupService(t, product)
	ctx := context.Background()
	victim := Owner{SessionID: "victim"}
	attacker := Owner{SessionID: "attacker"}

	victimCart, err := svc.AddItem(ctx, victim, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := victimCart.Items[0].ID

	_, err = svc.UpdateQuantity(ctx, attacker, itemID, 9)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = svc.RemoveItem(ctx, attacker, itemID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	cart, err := svc.GetOrCreate(ctx, victim)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)

	cart, err = svc.UpdateQuantity(ctx, victim, itemID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	cart, err = svc.RemoveItem(ctx, victim, itemID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestClearByUserIDResetsCoupon(t *testing.T) {
	a, b := newProduct(100, 0), newProduct(50, 0)
	svc, _, _ := setupService(t, a, b)
	ctx := context.Background()
	userID := uuid.New()
	owner := Owner{UserID: &userID}

	_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, AddItemInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)
	cart, err := svc.SetCoupon(ctx, owner, &AppliedCoupon{CouponID: uuid.New(), Code: "SAVE10", DiscountCents: 2500})
	require.NoError(t, err)
	require.NotNil(t, cart.AppliedCouponCode)
	assert.Equal(t, int64(2500), cart.DiscountCents)

	res, err := svc.ClearByUserID(ctx, nil, userID, cart.Items)
	require.NoError(t, err)
	assert.Equal(t, ClearResult{CartExisted: true, ItemsRemoved: 2}, res)

	cart, err = svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.AppliedCouponCode)
	assert.Nil(t, cart.AppliedCouponID)
	assert.Zero(t, cart.DiscountCents)

	none, err := svc.ClearByUserID(ctx, nil, uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, ClearResult{}, none)
}

func TestClearByUserIDRejectsChangedLines(t *testing.T) {
	a, b := newProduct(100, 0), newProduct(50, 0)
	svc, _, _ := setupService(t, a, b)
	ctx := context.Background()
	userID := uuid.New()
	owner := Owner{UserID: &userID}

	snapshot, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)

	cases := map[string]func(){
		"quantity changed": func() {
			_, err := svc.UpdateQuantity(ctx, owner, snapshot.Items[0].ID, 3)
			require.NoError(t, err)
		},
		"line added": func() {
			_, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: b.ID, Quantity: 1})
			require.NoError(t, err)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			mutate()
			_, err := svc.ClearByUserID(ctx, nil, userID, snapshot.Items)
			require.Error(t, err)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

			current, err := svc.GetOrCreate(ctx, owner)
			require.NoError(t, err)
			assert.NotEmpty(t, current.Items)
		})
	}

	_, err = svc.ClearByUserID(ctx, nil, uuid.New(), snapshot.Items)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestLineChangesDropAppliedCoupon(t *testing.T) {
	a, b := newProduct(250, 0), newProduct(50, 0)
	svc, _, _ := setupService(t, a, b)
	ctx := context.Background()
	userID := uuid.New()
	owner := Owner{UserID: &userID}

	applied := &AppliedCoupon{CouponID: uuid.New(), Code: "SAVE10", DiscountCents: 2500}
	cases := map[string]func(line uuid.UUID) (*models.Cart, error){
		"add item": func(uuid.UUID) (*models.Cart, error) {
			return svc.AddItem(ctx, owner, AddItemInput{ProductID: b.ID, Quantity: 1})
		},
		"update quantity": func(line uuid.UUID) (*models.Cart, error) {
			return svc.UpdateQuantity(ctx, owner, line, 3)
		},
		"remove item": func(line uuid.UUID) (*models.Cart, error) {
			return svc.RemoveItem(ctx, owner, line)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Clear(ctx, owner)
			require.NoError(t, err)
			seeded, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: a.ID, Quantity: 1})
			require.NoError(t, err)
			withCoupon, err := svc.SetCoupon(ctx, owner, applied)
			require.NoError(t, err)
			require.Equal(t, int64(2500), withCoupon.DiscountCents)

			cart, err := mutate(seeded.Items[0].ID)
			require.NoError(t, err)
			assert.Nil(t, cart.AppliedCouponCode)
			assert.Nil(t, cart.AppliedCouponID)
			assert.Zero(t, cart.DiscountCents)
		})
	}
}
