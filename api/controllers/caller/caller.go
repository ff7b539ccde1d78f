// Package caller resolves the identity attached to a request by the auth middleware.
package caller

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/api/middleware"
	"github.com/angelmondragon/partsdirect-backend/internal/cart"
	"github.com/angelmondragon/partsdirect-backend/internal/orders"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

// UserID returns the authenticated user or UNAUTHORIZED.
func UserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// Owner returns the cart owner: the authenticated user, else the guest session.
func Owner(r *http.Request) (cart.Owner, error) {
	if middleware.UserIDFromContext(r.Context()) != "" {
		id, err := UserID(r)
		if err != nil {
			return cart.Owner{}, err
		}
		return cart.Owner{UserID: &id}, nil
	}
	if session := middleware.SessionIDFromContext(r.Context()); session != "" {
		return cart.Owner{SessionID: session}, nil
	}
	return cart.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token or "+middleware.SessionHeader+" header required")
}

// Viewer returns the authenticated user with their role for ownership checks.
func Viewer(r *http.Request) (orders.Viewer, error) {
	id, err := UserID(r)
	if err != nil {
		return orders.Viewer{}, err
	}
	return orders.Viewer{UserID: id, Role: enums.UserRole(middleware.RoleFromContext(r.Context()))}, nil
}

// CustomerType returns the caller's price tier; guests are retail.
func CustomerType(r *http.Request) enums.PriceType {
	value := enums.PriceType(middleware.CustomerTypeFromContext(r.Context()))
	if !value.IsValid() {
		return enums.PriceTypeRetail
	}
	return value
}
