// Package payments reconciles gateway payment state onto orders.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/internal/orders"
	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox/payloads"
)

const (
	sourceConfirm = "confirm"
	sourceStatus  = "status"
	sourceWebhook = "webhook"
)

// Result is the payment state of an order after reconciliation.
type Result struct {
	PaymentID       string              `json:"payment_id"`
	OrderNumber     string              `json:"order_number"`
	GatewayStatus   GatewayStatus       `json:"gateway_status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	AmountPaidCents int64               `json:"amount_paid_cents"`
	GrandTotalCents int64               `json:"grand_total_cents"`
	Resolved        bool                `json:"resolved"`
}

// Service links gateway payments to orders and applies their state.
type Service interface {
	Confirm(ctx context.Context, viewer orders.Viewer, paymentID, orderNumber string) (*Result, error)
	Status(ctx context.Context, viewer orders.Viewer, paymentID string) (*Result, error)
	HandleWebhook(ctx context.Context, event WebhookEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type metricsSink interface {
	IncPaymentStatus(status string)
}

type service struct {
	orders  orders.Repository
	tx      txRunner
	gateway Gateway
	outbox  outbox.Emitter
	metrics metricsSink
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(repo orders.Repository, tx txRunner, gateway Gateway, emitter outbox.Emitter, metrics metricsSink, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		orders:  repo,
		tx:      tx,
		gateway: gateway,
		outbox:  emitter,
		metrics: metrics,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Confirm binds paymentID to the viewer's order and applies the gateway state.
// An unresolved gateway state returns Resolved=false; polling is the caller's job.
func (s *service) Confirm(ctx context.Context, viewer orders.Viewer, paymentID, orderNumber string) (*Result, error) {
	paymentID = strings.TrimSpace(paymentID)
	orderNumber = strings.TrimSpace(orderNumber)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_number is required")
	}

	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	if !canSee(viewer, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if order.PaymentMethod == enums.PaymentMethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery orders are settled at fulfilment")
	}
	if order.PaymentReference != nil && *order.PaymentReference != paymentID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is linked to a different payment")
	}

	payment, err := s.lookup(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.OrderNumber != "" && payment.OrderNumber != order.OrderNumber {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment belongs to a different order")
	}
	return s.apply(ctx, order, paymentID, payment.Status, payment.AmountCents, sourceConfirm)
}

// Status refreshes the order linked to paymentID from the gateway.
func (s *service) Status(ctx context.Context, viewer orders.Viewer, paymentID string) (*Result, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	order, err := s.orders.FindByPaymentReference(ctx, paymentID)
	if err != nil {
		return nil, notFoundOr(err, "payment not found", "load order")
	}
	if !canSee(viewer, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	payment, err := s.lookup(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, order, paymentID, payment.Status, payment.AmountCents, sourceStatus)
}

// HandleWebhook applies a verified gateway callback. The order is found by
// payment reference first, then by the order number the gateway echoes back.
func (s *service) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	if err := event.validate(); err != nil {
		return err
	}
	order, err := s.orders.FindByPaymentReference(ctx, event.PaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) && event.OrderNumber != "" {
		order, err = s.orders.FindByNumber(ctx, event.OrderNumber)
		if err == nil && order.PaymentReference != nil && *order.PaymentReference != event.PaymentID {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is linked to a different payment")
		}
	}
	if err != nil {
		return notFoundOr(err, "order not found for payment", "load order")
	}
	_, err = s.apply(ctx, order, event.PaymentID, event.Status, event.AmountCents, sourceWebhook)
	return err
}

func (s *service) lookup(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	payment, err := s.gateway.Lookup(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "payment gateway unavailable")
	}
	return payment, nil
}

// apply moves the order's payment status inside one transaction, guarded by
// the status it was read in. Refunded never becomes paid and paid never
// becomes failed.
func (s *service) apply(ctx context.Context, order *models.Order, paymentID string, status GatewayStatus, amount int64, source string) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return notFoundOr(err, "order not found", "reload order")
		}

		target, paid := nextPaymentStatus(current, status, amount)
		updates := map[string]any{}
		if current.PaymentReference == nil {
			updates["payment_reference"] = paymentID
			current.PaymentReference = &paymentID
		}
		changed := target != current.PaymentStatus
		if changed {
			updates["payment_status"] = target
			if target == enums.PaymentStatusPaid || target == enums.PaymentStatusPartiallyPaid {
				now := s.now()
				updates["amount_paid_cents"] = paid
				updates["paid_at"] = now
				current.AmountPaidCents = paid
				current.PaidAt = &now
			}
		}

		if len(updates) > 0 {
			ok, err := repo.UpdatePayment(ctx, current.ID, current.PaymentStatus, updates)
			if err != nil {
				if db.IsUniqueViolation(err, "orders_payment_reference_key") {
					return pkgerrors.New(pkgerrors.CodeConflict, "payment is already linked to another order")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "order payment changed concurrently; retry")
			}
		}

		from := current.PaymentStatus
		current.PaymentStatus = target
		result = &Result{
			PaymentID:       paymentID,
			OrderNumber:     current.OrderNumber,
			GatewayStatus:   status,
			PaymentStatus:   target,
			AmountPaidCents: current.AmountPaidCents,
			GrandTotalCents: current.GrandTotalCents,
			Resolved:        status.Resolved(),
		}
		if !changed {
			return nil
		}
		return s.emit(ctx, tx, current, from, source)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil && result.PaymentStatus != order.PaymentStatus {
		s.metrics.IncPaymentStatus(string(result.PaymentStatus))
	}
	return result, nil
}

// nextPaymentStatus returns the status to store and the amount considered paid.
func nextPaymentStatus(order *models.Order, status GatewayStatus, amount int64) (enums.PaymentStatus, int64) {
	current := order.PaymentStatus
	switch status {
	case GatewaySucceeded:
		if current == enums.PaymentStatusRefunded || current == enums.PaymentStatusPaid {
			return current, order.AmountPaidCents
		}
		if amount <= 0 || amount >= order.GrandTotalCents {
			return enums.PaymentStatusPaid, order.GrandTotalCents
		}
		return enums.PaymentStatusPartiallyPaid, amount
	case GatewayFailed:
		switch current {
		case enums.PaymentStatusPaid, enums.PaymentStatusPartiallyPaid, enums.PaymentStatusRefunded:
			return current, order.AmountPaidCents
		}
		return enums.PaymentStatusFailed, order.AmountPaidCents
	case GatewayRefunded:
		return enums.PaymentStatusRefunded, order.AmountPaidCents
	default:
		return current, order.AmountPaidCents
	}
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.PaymentStatus, source string) error {
	var eventType enums.OutboxEventType
	switch order.PaymentStatus {
	case enums.PaymentStatusPaid, enums.PaymentStatusPartiallyPaid:
		eventType = enums.EventOrderPaid
	case enums.PaymentStatusFailed:
		eventType = enums.EventOrderPaymentFailed
	case enums.PaymentStatusRefunded:
		eventType = enums.EventOrderRefunded
	default:
		return nil
	}
	reference := ""
	if order.PaymentReference != nil {
		reference = *order.PaymentReference
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
		s.logg.Info(logCtx, fmt.Sprintf("payment status %s -> %s via %s", from, order.PaymentStatus, source))
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderPaymentEvent{
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			PaymentReference: reference,
			PaymentStatus:    order.PaymentStatus,
			AmountPaidCents:  order.AmountPaidCents,
			Source:           source,
		},
	})
}

func canSee(viewer orders.Viewer, order *models.Order) bool {
	return viewer.Role == enums.UserRoleAdmin || order.UserID == viewer.UserID
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
