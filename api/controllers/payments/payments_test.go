package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/api/middleware"
	"github.com/angelmondragon/partsdirect-backend/internal/orders"
	internalpayments "github.com/angelmondragon/partsdirect-backend/internal/payments"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

type stubPayments struct {
	confirmCalls int
	statusCalls  int
	// statuses returned by successive Status calls
	statuses    []bool
	confirmed   bool
	orderNumber string
}

func (s *stubPayments) Confirm(_ context.Context, _ orders.Viewer, paymentID, orderNumber string) (*internalpayments.Result, error) {
	s.confirmCalls++
	s.orderNumber = orderNumber
	return &internalpayments.Result{PaymentID: paymentID, OrderNumber: orderNumber, Resolved: s.confirmed, PaymentStatus: enums.PaymentStatusPending}, nil
}

func (s *stubPayments) Status(_ context.Context, _ orders.Viewer, paymentID string) (*internalpayments.Result, error) {
	resolved := true
	if s.statusCalls < len(s.statuses) {
		resolved = s.statuses[s.statusCalls]
	}
	s.statusCalls++
	return &internalpayments.Result{PaymentID: paymentID, Resolved: resolved, PaymentStatus: enums.PaymentStatusPaid}, nil
}

func (s *stubPayments) HandleWebhook(context.Context, internalpayments.WebhookEvent) error {
	return nil
}

func paymentRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rc := chi.NewRouteContext()
	rc.URLParams.Add("paymentId", "pay_123")
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = middleware.WithUserID(ctx, uuid.NewString())
	return req.WithContext(ctx)
}

func TestConfirmPollsUntilResolved(t *testing.T) {
	stub := &stubPayments{statuses: []bool{false, true}}
	poller := internalpayments.Poller{Attempts: 3}

	resp := httptest.NewRecorder()
	Confirm(stub, poller, nil).ServeHTTP(resp, paymentRequest(http.MethodPost, "/api/v1/payments/pay_123/confirm", `{"order_number":"PD-1"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if stub.confirmCalls != 1 || stub.statusCalls != 2 {
		t.Fatalf("expected 1 confirm and 2 status calls, got %d and %d", stub.confirmCalls, stub.statusCalls)
	}
	if stub.orderNumber != "PD-1" {
		t.Fatalf("unexpected order number %q", stub.orderNumber)
	}
}

func TestConfirmResolvedImmediately(t *testing.T) {
	stub := &stubPayments{confirmed: true}
	resp := httptest.NewRecorder()
	Confirm(stub, internalpayments.Poller{Attempts: 3}, nil).ServeHTTP(resp, paymentRequest(http.MethodPost, "/api/v1/payments/pay_123/confirm", `{"order_number":"PD-1"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if stub.statusCalls != 0 {
		t.Fatalf("expected no status polling, got %d", stub.statusCalls)
	}
}

func TestConfirmRequiresOrderNumber(t *testing.T) {
	resp := httptest.NewRecorder()
	Confirm(&stubPayments{}, internalpayments.Poller{Attempts: 1}, nil).ServeHTTP(resp, paymentRequest(http.MethodPost, "/api/v1/payments/pay_123/confirm", `{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestStatusGivesUpWhenStillPending(t *testing.T) {
	stub := &stubPayments{statuses: []bool{false, false}}
	resp := httptest.NewRecorder()
	Status(stub, internalpayments.Poller{Attempts: 2}, nil).ServeHTTP(resp, paymentRequest(http.MethodGet, "/api/v1/payments/pay_123", ""))

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}
	if stub.statusCalls != 2 {
		t.Fatalf("expected 2 status calls, got %d", stub.statusCalls)
	}
}
