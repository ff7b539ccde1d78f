package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/api/controllers/caller"
	"github.com/angelmondragon/partsdirect-backend/api/responses"
	"github.com/angelmondragon/partsdirect-backend/api/validators"
	internalorders "github.com/angelmondragon/partsdirect-backend/internal/orders"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/pagination"
)

const maxCancelReasonLen = 500

type placeOrderRequest struct {
	AddressID        string  `json:"address_id" validate:"required,uuid"`
	BillingAddressID *string `json:"billing_address_id,omitempty" validate:"omitempty,uuid"`
	PaymentMethod    string  `json:"payment_method" validate:"required,oneof=cod card upi netbanking"`
	CouponCode       *string `json:"coupon_code,omitempty" validate:"omitempty,coupon_code"`
	DraftID          *string `json:"draft_id,omitempty" validate:"omitempty,uuid"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// PlaceOrder converts the caller's cart into an order. A replayed checkout
// answers 200 with the order created by the first attempt.
func PlaceOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := caller.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.PlaceOrderInput{
			UserID:         userID,
			AddressID:      uuid.MustParse(req.AddressID),
			PaymentMethod:  enums.PaymentMethod(req.PaymentMethod),
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		}
		if req.BillingAddressID != nil {
			id := uuid.MustParse(*req.BillingAddressID)
			input.BillingAddressID = &id
		}
		if req.DraftID != nil {
			id := uuid.MustParse(*req.DraftID)
			input.DraftID = &id
		}
		if req.CouponCode != nil {
			if code := strings.TrimSpace(*req.CouponCode); code != "" {
				input.CouponCode = &code
			}
		}

		result, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// History pages through the caller's orders, newest first.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := caller.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.History(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Detail returns one order; admins may read any order.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		viewer, err := caller.Viewer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		number, err := orderNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), viewer, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel cancels a placed or confirmed order.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		viewer, err := caller.Viewer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		number, err := orderNumberParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), viewer, number, validators.SanitizeString(req.Reason, maxCancelReasonLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func orderNumberParam(r *http.Request) (string, error) {
	return validators.PathString(r, "orderNumber", "order number")
}
