// Package orders turns carts into persisted orders and drives the order state machine.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/internal/coupons"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/partsdirect-backend/pkg/pagination"
)

const (
	defaultNumberAttempts = 3
	checkoutTokenIndex    = "orders_checkout_token_key"
)

// Service defines order placement, queries and status changes.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	Get(ctx context.Context, viewer Viewer, orderNumber string) (*OrderDTO, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	Cancel(ctx context.Context, viewer Viewer, orderNumber, reason string) (*OrderDTO, error)
	Confirm(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (bool, error)
	ListStalePlaced(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error)
}

// PlaceOrderInput is the checkout confirmation request.
type PlaceOrderInput struct {
	UserID           uuid.UUID
	AddressID        uuid.UUID
	BillingAddressID *uuid.UUID
	PaymentMethod    enums.PaymentMethod
	CouponCode       *string
	DraftID          *uuid.UUID
	IdempotencyKey   string
}

// Viewer is the caller reading or mutating an order.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (v Viewer) canSee(order *models.Order) bool {
	return v.Role == enums.UserRoleAdmin || order.UserID == v.UserID
}

// Options carries the checkout configuration the builder needs.
type Options struct {
	OriginState    string
	NumberAttempts int
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Repo      Repository
	Tx        txRunner
	Carts     cartStore
	Catalog   productCatalog
	Addresses addressResolver
	Coupons   couponEngine
	Shipping  shippingSource
	Drafts    DraftCompleter
	Outbox    outbox.Emitter
	Metrics   metricsSink
	Logger    *logger.Logger
}

type service struct {
	Deps
	opts    Options
	now     func() time.Time
	numbers NumberGenerator
}

// NewService builds the order service with the required dependencies.
func NewService(deps Deps, opts Options) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart store required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("product catalog required")
	case deps.Addresses == nil:
		return nil, fmt.Errorf("address resolver required")
	case deps.Coupons == nil:
		return nil, fmt.Errorf("coupon engine required")
	case deps.Shipping == nil:
		return nil, fmt.Errorf("shipping source required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	if opts.NumberAttempts <= 0 {
		opts.NumberAttempts = defaultNumberAttempts
	}
	return &service{
		Deps:    deps,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		numbers: NewOrderNumber,
	}, nil
}

// PlaceOrder builds an order from the caller's cart. Every write (order, items,
// coupon usage, outbox events, draft completion, cart clear) shares one
// transaction. A retry carrying the same checkout token returns the original order.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_method is invalid")
	}

	token := checkoutToken(input)
	if token != "" {
		if existing, err := s.Repo.FindByCheckoutToken(ctx, input.UserID, token); err == nil {
			return &PlaceOrderResult{Order: ToDTO(*existing), Replayed: true}, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup checkout token")
		}
	}

	shipping, err := s.Addresses.GetForUser(ctx, input.UserID, input.AddressID)
	if err != nil {
		return nil, err
	}
	billingID := shipping.ID
	if input.BillingAddressID != nil && *input.BillingAddressID != uuid.Nil {
		billing, err := s.Addresses.GetForUser(ctx, input.UserID, *input.BillingAddressID)
		if err != nil {
			return nil, err
		}
		billingID = billing.ID
	}

	userID := input.UserID
	userCart, err := s.Carts.GetOrCreate(ctx, cart.Owner{UserID: &userID})
	if err != nil {
		return nil, err
	}
	if len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	items, err := s.snapshotItems(ctx, userCart.Items, IsIntraState(shipping.State, s.opts.OriginState))
	if err != nil {
		return nil, err
	}

	subtotal := userCart.SubtotalCents()
	var validated *coupons.Validated
	if code := couponCode(input, userCart); code != "" {
		validated, err = s.Coupons.Validate(ctx, coupons.PreviewInput{
			UserID:        input.UserID,
			Code:          code,
			SubtotalCents: subtotal,
		})
		if err != nil {
			return nil, err
		}
	}

	rule, err := s.Shipping.Shipping(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping settings")
	}

	order := s.buildOrder(input, shipping, billingID, items, subtotal, validated, rule.FeeFor)
	if token != "" {
		order.CheckoutToken = &token
	}

	for attempt := 1; ; attempt++ {
		number, err := s.numbers(s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		candidate := order.clone(number)

		err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.persist(ctx, tx, candidate, userCart.Items, validated, input.DraftID)
		})
		if err == nil {
			if s.Metrics != nil {
				s.Metrics.IncOrderPlaced(string(candidate.PaymentMethod))
			}
			s.logPlaced(ctx, candidate)
			return &PlaceOrderResult{Order: ToDTO(*candidate)}, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, err
		}
		if token != "" && db.IsUniqueViolationOn(err, checkoutTokenIndex, "orders.checkout_token") {
			if existing, lookupErr := s.Repo.FindByCheckoutToken(ctx, input.UserID, token); lookupErr == nil {
				return &PlaceOrderResult{Order: ToDTO(*existing), Replayed: true}, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "checkout token is already in use")
		}
		if attempt >= s.opts.NumberAttempts {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique order number")
		}
	}
}

func (s *service) persist(ctx context.Context, tx *gorm.DB, order *models.Order, lines []models.CartItem, validated *coupons.Validated, draftID *uuid.UUID) error {
	repo := s.Repo.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}

	if validated != nil {
		if err := s.Coupons.Redeem(ctx, tx, validated, order.ID); err != nil {
			return err
		}
	}

	if draftID != nil && *draftID != uuid.Nil {
		if s.Drafts == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout drafts are not enabled")
		}
		if err := s.Drafts.Complete(ctx, tx, *draftID, order.UserID, order.ID); err != nil {
			return err
		}
	}

	actor := &outbox.ActorRef{UserID: &order.UserID, Role: string(enums.UserRoleCustomer)}
	if err := s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    order.PlacedAt,
		Data: payloads.OrderPlacedEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			UserID:          order.UserID,
			PaymentMethod:   order.PaymentMethod,
			SubtotalCents:   order.SubtotalCents,
			DiscountCents:   order.DiscountCents,
			TaxCents:        order.TaxCents,
			ShippingCents:   order.ShippingFeeCents,
			GrandTotalCents: order.GrandTotalCents,
			ItemCount:       len(order.Items),
			CouponCode:      order.CouponCode,
			PlacedAt:        order.PlacedAt,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order placed")
	}

	if validated != nil {
		if err := s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCouponRedeemed,
			AggregateType: enums.AggregateCoupon,
			AggregateID:   validated.CouponID,
			Actor:         actor,
			Data: payloads.CouponRedeemedEvent{
				CouponID:      validated.CouponID,
				Code:          validated.Code,
				UserID:        validated.UserID,
				OrderID:       order.ID,
				DiscountCents: validated.DiscountCents,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit coupon redeemed")
		}
	}

	if _, err := s.Carts.ClearByUserID(ctx, tx, order.UserID, lines); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeConflict) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// snapshotItems freezes catalog fields onto order lines. Every line must map to
// a purchasable product or the whole order is rejected.
func (s *service) snapshotItems(ctx context.Context, lines []models.CartItem, intraState bool) ([]models.OrderItem, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.Catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	var unavailable []string
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || !product.Purchasable() {
			unavailable = append(unavailable, line.ProductID.String())
			continue
		}
		lineSubtotal := line.LineTotalCents()
		tax := ComputeLineTax(lineSubtotal, product.GSTRatePercent, intraState)
		items = append(items, models.OrderItem{
			ProductID:         product.ID,
			SKU:               product.SKU,
			Name:              product.Name,
			ImageURL:          product.ImageURL,
			Description:       product.Description,
			Quantity:          line.Quantity,
			PriceType:         line.PriceType,
			UnitPriceCents:    line.UnitPriceCents,
			LineSubtotalCents: lineSubtotal,
			TaxRatePercent:    product.GSTRatePercent,
			CGSTCents:         tax.CGST,
			SGSTCents:         tax.SGST,
			IGSTCents:         tax.IGST,
			TotalCents:        lineSubtotal + tax.Total(),
		})
	}
	if len(unavailable) > 0 {
		sort.Strings(unavailable)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "some cart items are no longer available").
			WithDetails(map[string]any{"unavailable_product_ids": unavailable})
	}
	return items, nil
}

func (s *service) buildOrder(
	input PlaceOrderInput,
	shipping *models.Address,
	billingID uuid.UUID,
	items []models.OrderItem,
	subtotal int64,
	validated *coupons.Validated,
	feeFor func(int64) int64,
) *draftOrder {
	var discount int64
	var couponID *uuid.UUID
	var code *string
	if validated != nil {
		discount = validated.DiscountCents
		id := validated.CouponID
		c := validated.Code
		couponID, code = &id, &c
	}

	var tax int64
	for _, item := range items {
		tax += item.CGSTCents + item.SGSTCents + item.IGSTCents
	}
	fee := feeFor(subtotal - discount)
	now := s.now()

	return &draftOrder{Order: models.Order{
		UserID:            input.UserID,
		ShippingAddressID: shipping.ID,
		BillingAddressID:  billingID,
		ShippingAddress:   shipping.Snapshot(),
		SubtotalCents:     subtotal,
		DiscountCents:     discount,
		TaxCents:          tax,
		ShippingFeeCents:  fee,
		GrandTotalCents:   subtotal - discount + tax + fee,
		CouponID:          couponID,
		CouponCode:        code,
		PaymentMethod:     input.PaymentMethod,
		PaymentStatus:     enums.PaymentStatusPending,
		OrderStatus:       enums.OrderStatusPlaced,
		PlacedAt:          now,
		CreatedAt:         now,
		UpdatedAt:         now,
		Items:             items,
	}}
}

// draftOrder is an unsaved order reused across order-number attempts.
type draftOrder struct {
	models.Order
}

func (d *draftOrder) clone(number string) *models.Order {
	order := d.Order
	order.ID = uuid.New()
	order.OrderNumber = number
	order.Items = make([]models.OrderItem, len(d.Items))
	for i, item := range d.Items {
		item.ID = uuid.New()
		item.OrderID = order.ID
		item.CreatedAt = order.CreatedAt
		order.Items[i] = item
	}
	return &order
}

// Get returns an order visible to the viewer.
func (s *service) Get(ctx context.Context, viewer Viewer, orderNumber string) (*OrderDTO, error) {
	order, err := s.load(ctx, s.Repo, orderNumber)
	if err != nil {
		return nil, err
	}
	if !viewer.canSee(order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	dto := ToDTO(*order)
	return &dto, nil
}

// History lists the user's orders newest first.
func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := params.Decode(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.Repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := &HistoryPage{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		page.Orders = append(page.Orders, ToDTO(row))
	}
	return page, nil
}

// Cancel moves an owned order to cancelled while it has not shipped.
func (s *service) Cancel(ctx context.Context, viewer Viewer, orderNumber, reason string) (*OrderDTO, error) {
	var result *models.Order
	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderNumber)
		if err != nil {
			return err
		}
		if !viewer.canSee(order) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.OrderStatus == enums.OrderStatusCancelled {
			result = order
			return nil
		}
		if _, ok := cancellable[order.OrderStatus]; !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in %s state cannot be cancelled", order.OrderStatus))
		}

		now := s.now()
		changed, err := repo.TransitionStatus(ctx, order.ID, order.OrderStatus, enums.OrderStatusCancelled, map[string]any{"cancelled_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently; retry")
		}

		from := order.OrderStatus
		order.OrderStatus = enums.OrderStatusCancelled
		order.CancelledAt = &now
		result = order

		uid := viewer.UserID
		return s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &uid, Role: string(viewer.Role)},
			Data: payloads.OrderStatusEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        from,
				To:          enums.OrderStatusCancelled,
				Reason:      reason,
				ChangedAt:   now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*result)
	return &dto, nil
}

// Confirm promotes a placed order to confirmed. Confirming an already confirmed
// order is a no-op and reports false.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (bool, error) {
	var changed bool
	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.OrderStatus == enums.OrderStatusConfirmed {
			return nil
		}
		if err := checkTransition(order.OrderStatus, enums.OrderStatusConfirmed); err != nil {
			return err
		}

		now := s.now()
		ok, err := repo.TransitionStatus(ctx, order.ID, order.OrderStatus, enums.OrderStatusConfirmed, map[string]any{"confirmed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if !ok {
			return nil
		}
		changed = true
		return s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderStatusEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        order.OrderStatus,
				To:          enums.OrderStatusConfirmed,
				ChangedAt:   now,
			},
		})
	})
	return changed, err
}

// ListStalePlaced returns placed orders older than olderThan.
func (s *service) ListStalePlaced(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error) {
	return s.Repo.ListStalePlaced(ctx, s.now().Add(-olderThan), limit)
}

func (s *service) load(ctx context.Context, repo Repository, orderNumber string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) logPlaced(ctx context.Context, order *models.Order) {
	if s.Logger == nil {
		return
	}
	ctx = s.Logger.WithOrderNumber(ctx, order.OrderNumber)
	ctx = s.Logger.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"grand_total_cents": order.GrandTotalCents,
		"payment_method":    order.PaymentMethod,
	})
	s.Logger.Info(ctx, "order placed")
}

func checkoutToken(input PlaceOrderInput) string {
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		return key
	}
	if input.DraftID != nil && *input.DraftID != uuid.Nil {
		return "draft:" + input.DraftID.String()
	}
	return ""
}

func couponCode(input PlaceOrderInput, c *models.Cart) string {
	if input.CouponCode != nil {
		return coupons.NormalizeCode(*input.CouponCode)
	}
	if c.AppliedCouponCode != nil {
		return coupons.NormalizeCode(*c.AppliedCouponCode)
	}
	return ""
}
