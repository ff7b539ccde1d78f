package coupons

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	cartcontrollers "github.com/angelmondragon/partsdirect-backend/api/controllers/cart"
	"github.com/angelmondragon/partsdirect-backend/api/controllers/caller"
	"github.com/angelmondragon/partsdirect-backend/api/middleware"
	"github.com/angelmondragon/partsdirect-backend/api/responses"
	"github.com/angelmondragon/partsdirect-backend/api/validators"
	cartsvc "github.com/angelmondragon/partsdirect-backend/internal/cart"
	couponsvc "github.com/angelmondragon/partsdirect-backend/internal/coupons"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

type cartReader interface {
	GetOrCreate(ctx context.Context, owner cartsvc.Owner) (*models.Cart, error)
}

// CouponPreview estimates the discount of a code without reserving anything.
// The subtotal comes from the body when given, else from the caller's cart.
func CouponPreview(svc couponsvc.Service, carts cartReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var payload previewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := couponsvc.PreviewInput{Code: payload.Code, UserID: optionalUserID(r)}
		if payload.OrderSubtotalCents != nil {
			input.SubtotalCents = *payload.OrderSubtotalCents
		} else {
			owner, err := caller.Owner(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			record, err := carts.GetOrCreate(r.Context(), owner)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.SubtotalCents = record.SubtotalCents()
		}

		preview, err := svc.Preview(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// CartApplyCoupon previews the code against the cart and stores the result on it.
func CartApplyCoupon(svc couponsvc.Service, carts cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		owner, err := caller.Owner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload applyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := carts.GetOrCreate(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.Preview(r.Context(), couponsvc.PreviewInput{
			UserID:        optionalUserID(r),
			Code:          payload.Code,
			SubtotalCents: record.SubtotalCents(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err = carts.SetCoupon(r.Context(), owner, &cartsvc.AppliedCoupon{
			CouponID:      preview.CouponID,
			Code:          preview.Code,
			DiscountCents: preview.DiscountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartcontrollers.NewCartResponse(record))
	}
}

// CartRemoveCoupon clears the coupon fields on the cart.
func CartRemoveCoupon(carts cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := caller.Owner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := carts.SetCoupon(r.Context(), owner, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartcontrollers.NewCartResponse(record))
	}
}

// AdminCouponCreate stores a new coupon.
func AdminCouponCreate(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		var payload upsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCouponResponse(coupon))
	}
}

// AdminCouponUpdate replaces a coupon's rules; rejected once it has been used.
func AdminCouponUpdate(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		id, err := couponIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload upsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCouponResponse(coupon))
	}
}

// AdminCouponDeactivate switches a coupon off.
func AdminCouponDeactivate(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		id, err := couponIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCouponResponse(coupon))
	}
}

func couponIDParam(r *http.Request) (uuid.UUID, error) {
	return validators.PathUUID(r, "couponId", "coupon id")
}

func optionalUserID(r *http.Request) uuid.UUID {
	if middleware.UserIDFromContext(r.Context()) == "" {
		return uuid.Nil
	}
	id, err := caller.UserID(r)
	if err != nil {
		return uuid.Nil
	}
	return id
}
