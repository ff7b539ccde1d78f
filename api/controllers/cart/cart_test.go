package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/api/middleware"
	cartsvc "github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

type stubCartService struct {
	record    *models.Cart
	err       error
	lastOwner cartsvc.Owner
	lastAdd   cartsvc.AddItemInput
	lastItem  uuid.UUID
	lastQty   int
}

func (s *stubCartService) GetOrCreate(_ context.Context, owner cartsvc.Owner) (*models.Cart, error) {
	s.lastOwner = owner
	return s.record, s.err
}

func (s *stubCartService) AddItem(_ context.Context, owner cartsvc.Owner, input cartsvc.AddItemInput) (*models.Cart, error) {
	s.lastOwner = owner
	s.lastAdd = input
	return s.record, s.err
}

func (s *stubCartService) UpdateQuantity(_ context.Context, owner cartsvc.Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	s.lastOwner = owner
	s.lastItem = itemID
	s.lastQty = quantity
	return s.record, s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, owner cartsvc.Owner, itemID uuid.UUID) (*models.Cart, error) {
	s.lastOwner = owner
	s.lastItem = itemID
	return s.record, s.err
}

func (s *stubCartService) Clear(_ context.Context, owner cartsvc.Owner) (*models.Cart, error) {
	s.lastOwner = owner
	return s.record, s.err
}

func (s *stubCartService) SetCoupon(_ context.Context, owner cartsvc.Owner, _ *cartsvc.AppliedCoupon) (*models.Cart, error) {
	s.lastOwner = owner
	return s.record, s.err
}

func (s *stubCartService) ClearByUserID(context.Context, *gorm.DB, uuid.UUID, []models.CartItem) (cartsvc.ClearResult, error) {
	return cartsvc.ClearResult{}, nil
}

func sampleCart() *models.Cart {
	code := "SAVE10"
	return &models.Cart{
		ID:                uuid.New(),
		AppliedCouponCode: &code,
		DiscountCents:     500,
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, PriceType: enums.PriceTypeRetail, UnitPriceCents: 1500},
			{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, PriceType: enums.PriceTypeRetail, UnitPriceCents: 2000},
		},
	}
}

func decodeCart(t *testing.T, resp *httptest.ResponseRecorder) CartResponse {
	t.Helper()
	var envelope struct {
		Data CartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCartFetchForGuestSession(t *testing.T) {
	stub := &stubCartService{record: sampleCart()}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))

	resp := httptest.NewRecorder()
	CartFetch(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if stub.lastOwner.SessionID != "guest-1" || stub.lastOwner.UserID != nil {
		t.Fatalf("unexpected owner %+v", stub.lastOwner)
	}
	body := decodeCart(t, resp)
	if body.SubtotalCents != 5000 {
		t.Fatalf("expected subtotal 5000 got %d", body.SubtotalCents)
	}
	if body.TotalCents != 4500 {
		t.Fatalf("expected total 4500 got %d", body.TotalCents)
	}
	if len(body.Items) != 2 || body.Items[0].LineTotalCents != 3000 {
		t.Fatalf("unexpected items %+v", body.Items)
	}
}

func TestCartFetchRequiresIdentity(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemUsesUserAndDefaultsToRetail(t *testing.T) {
	stub := &stubCartService{record: sampleCart()}
	userID := uuid.New()
	productID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+productID.String()+`","quantity":3}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))

	resp := httptest.NewRecorder()
	CartAddItem(stub, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if stub.lastOwner.UserID == nil || *stub.lastOwner.UserID != userID {
		t.Fatalf("expected user owner, got %+v", stub.lastOwner)
	}
	if stub.lastAdd.ProductID != productID || stub.lastAdd.Quantity != 3 {
		t.Fatalf("unexpected add input %+v", stub.lastAdd)
	}
	if stub.lastAdd.CustomerType != enums.PriceTypeRetail {
		t.Fatalf("expected retail pricing, got %s", stub.lastAdd.CustomerType)
	}
}

func TestCartAddItemRejectsNonPositiveQuantity(t *testing.T) {
	stub := &stubCartService{record: sampleCart()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+uuid.NewString()+`","quantity":0}`))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))

	resp := httptest.NewRecorder()
	CartAddItem(stub, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdateItemParsesPath(t *testing.T) {
	stub := &stubCartService{record: sampleCart()}
	itemID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+itemID.String(), strings.NewReader(`{"quantity":4}`))
	req = withURLParam(req, "itemId", itemID.String())
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))

	resp := httptest.NewRecorder()
	CartUpdateItem(stub, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if stub.lastItem != itemID || stub.lastQty != 4 {
		t.Fatalf("unexpected update item=%s qty=%d", stub.lastItem, stub.lastQty)
	}
}

func TestCartRemoveItemMapsNotFound(t *testing.T) {
	stub := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/x", nil)
	req = withURLParam(req, "itemId", uuid.NewString())
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))

	resp := httptest.NewRecorder()
	CartRemoveItem(stub, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCartRemoveItemRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/nope", nil)
	req = withURLParam(req, "itemId", "nope")
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))

	resp := httptest.NewRecorder()
	CartRemoveItem(&stubCartService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
