package payments

import (
	"context"
	"net/http"

	"github.com/angelmondragon/partsdirect-backend/api/controllers/caller"
	"github.com/angelmondragon/partsdirect-backend/api/responses"
	"github.com/angelmondragon/partsdirect-backend/api/validators"
	internalpayments "github.com/angelmondragon/partsdirect-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

type confirmRequest struct {
	OrderNumber string `json:"order_number" validate:"required,max=64"`
}

// Confirm links a gateway payment to an order. While the gateway reports the
// payment as pending the status is re-read through poller.
func Confirm(svc internalpayments.Service, poller internalpayments.Poller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		viewer, err := caller.Viewer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := paymentIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req confirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		first := true
		result, err := poller.Run(r.Context(), func(ctx context.Context) (*internalpayments.Result, error) {
			if first {
				first = false
				return svc.Confirm(ctx, viewer, paymentID, req.OrderNumber)
			}
			return svc.Status(ctx, viewer, paymentID)
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Status reports the payment state of the order linked to a payment.
func Status(svc internalpayments.Service, poller internalpayments.Poller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		viewer, err := caller.Viewer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := paymentIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := poller.Run(r.Context(), func(ctx context.Context) (*internalpayments.Result, error) {
			return svc.Status(ctx, viewer, paymentID)
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func paymentIDParam(r *http.Request) (string, error) {
	return validators.PathString(r, "paymentId", "payment id")
}
