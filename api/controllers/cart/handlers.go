package cart

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/api/controllers/caller"
	"github.com/angelmondragon/partsdirect-backend/api/responses"
	"github.com/angelmondragon/partsdirect-backend/api/validators"
	cartsvc "github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

// CartFetch returns the caller's cart, creating an empty one on first access.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withOwner(svc, logg, func(r *http.Request, owner cartsvc.Owner) (*models.Cart, error) {
		return svc.GetOrCreate(r.Context(), owner)
	})
}

// CartAddItem adds a product line priced for the caller's customer type.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withOwner(svc, logg, func(r *http.Request, owner cartsvc.Owner) (*models.Cart, error) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddItem(r.Context(), owner, cartsvc.AddItemInput{
			ProductID:    payload.ProductID,
			Quantity:     payload.Quantity,
			CustomerType: caller.CustomerType(r),
		})
	})
}

// CartUpdateItem sets the quantity of one line.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withOwner(svc, logg, func(r *http.Request, owner cartsvc.Owner) (*models.Cart, error) {
		itemID, err := itemIDParam(r)
		if err != nil {
			return nil, err
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.UpdateQuantity(r.Context(), owner, itemID, payload.Quantity)
	})
}

// CartRemoveItem deletes one line.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withOwner(svc, logg, func(r *http.Request, owner cartsvc.Owner) (*models.Cart, error) {
		itemID, err := itemIDParam(r)
		if err != nil {
			return nil, err
		}
		return svc.RemoveItem(r.Context(), owner, itemID)
	})
}

// CartClear empties the cart and drops any applied coupon.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withOwner(svc, logg, func(r *http.Request, owner cartsvc.Owner) (*models.Cart, error) {
		return svc.Clear(r.Context(), owner)
	})
}

func withOwner(svc cartsvc.Service, logg *logger.Logger, fn func(*http.Request, cartsvc.Owner) (*models.Cart, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		owner, err := caller.Owner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := fn(r, owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewCartResponse(record))
	}
}

func itemIDParam(r *http.Request) (uuid.UUID, error) {
	return validators.PathUUID(r, "itemId", "cart item id")
}
