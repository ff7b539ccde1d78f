package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/partsdirect-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

const testSecret = "whsec_test"

const succeededEvent = `{"id":"evt_1","type":"payment.succeeded","data":{"payment_id":"pay_1","order_number":"PD-1","amount_cents":10000}}`

type fakeWebhookService struct {
	calls int
	last  payments.WebhookEvent
	err   error
}

func (f *fakeWebhookService) HandleWebhook(_ context.Context, event payments.WebhookEvent) error {
	f.calls++
	f.last = event
	return f.err
}

type fakeMetrics struct {
	results []string
}

func (f *fakeMetrics) IncWebhook(result string) {
	f.results = append(f.results, result)
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("pd:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func newHandler(t *testing.T, svc *fakeWebhookService, metrics *fakeMetrics) (http.HandlerFunc, *payments.Verifier) {
	t.Helper()
	verifier, err := payments.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	guard, err := payments.NewIdempotencyGuard(newInMemoryStore(), time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	return PaymentWebhook(svc, verifier, guard, metrics, nil), verifier
}

func deliver(handler http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set(payments.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhookProcessesOnce(t *testing.T) {
	svc := &fakeWebhookService{}
	metrics := &fakeMetrics{}
	handler, verifier := newHandler(t, svc, metrics)
	sig := verifier.Sign([]byte(succeededEvent))

	rec := deliver(handler, succeededEvent, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.last.PaymentID != "pay_1" || svc.last.Status != payments.GatewaySucceeded || svc.last.AmountCents != 10000 {
		t.Fatalf("unexpected event %+v", svc.last)
	}

	rec = deliver(handler, succeededEvent, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", svc.calls)
	}
	if len(metrics.results) != 2 || metrics.results[0] != "processed" || metrics.results[1] != "duplicate" {
		t.Fatalf("unexpected metric results %v", metrics.results)
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeWebhookService{}
	metrics := &fakeMetrics{}
	handler, _ := newHandler(t, svc, metrics)

	for name, sig := range map[string]string{
		"missing":   "",
		"malformed": "not-hex",
		"mismatch":  "00112233",
	} {
		t.Run(name, func(t *testing.T) {
			rec := deliver(handler, succeededEvent, sig)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
	if svc.calls != 0 {
		t.Fatalf("expected service untouched, got %d calls", svc.calls)
	}
}

func TestPaymentWebhookRejectsTamperedBody(t *testing.T) {
	svc := &fakeWebhookService{}
	handler, verifier := newHandler(t, svc, nil)
	sig := verifier.Sign([]byte(succeededEvent))
	tampered := bytes.Replace([]byte(succeededEvent), []byte("10000"), []byte("1"), 1)

	rec := deliver(handler, string(tampered), sig)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPaymentWebhookUnknownType(t *testing.T) {
	svc := &fakeWebhookService{}
	handler, verifier := newHandler(t, svc, nil)
	body := `{"id":"evt_2","type":"payment.disputed","data":{"payment_id":"pay_1"}}`

	rec := deliver(handler, body, verifier.Sign([]byte(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("expected service untouched")
	}
}

func TestPaymentWebhookFailureAllowsRetry(t *testing.T) {
	svc := &fakeWebhookService{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "update order payment")}
	handler, verifier := newHandler(t, svc, nil)
	sig := verifier.Sign([]byte(succeededEvent))

	rec := deliver(handler, succeededEvent, sig)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	svc.err = nil
	rec = deliver(handler, succeededEvent, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec.Code)
	}
	if svc.calls != 2 {
		t.Fatalf("expected retry to reach service, got %d calls", svc.calls)
	}
}
