package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/angelmondragon/partsdirect-backend/api/responses"
	"github.com/angelmondragon/partsdirect-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type PaymentWebhookService interface {
	HandleWebhook(ctx context.Context, event payments.WebhookEvent) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signatureVerifier interface {
	Verify(signature string, body []byte) error
}

type webhookMetrics interface {
	IncWebhook(result string)
}

// PaymentWebhook applies signed gateway callbacks. Duplicate deliveries are
// acknowledged without reprocessing; a failed delivery is forgotten so the
// gateway's retry gets another chance.
func PaymentWebhook(svc PaymentWebhookService, verifier signatureVerifier, guard webhookGuard, metrics webhookMetrics, logg *logger.Logger) http.HandlerFunc {
	record := func(result string) {
		if metrics != nil {
			metrics.IncWebhook(result)
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook verifier unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if err := verifier.Verify(r.Header.Get(payments.SignatureHeader), payload); err != nil {
			record("invalid_signature")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, err := payments.ParseWebhookEvent(payload)
		if err != nil {
			record("invalid_payload")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			record("duplicate")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleWebhook(ctx, event); err != nil {
			_ = guard.Delete(ctx, event.ID)
			record("failed")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record("processed")
		if logg != nil {
			logCtx := logg.WithOrderNumber(ctx, event.OrderNumber)
			logg.Info(logCtx, fmt.Sprintf("payment webhook %s processed (%s)", event.ID, event.Type))
		}
		responses.WriteSuccess(w, nil)
	}
}
