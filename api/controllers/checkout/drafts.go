package checkout

import (
	"net/http"

	"github.com/angelmondragon/partsdirect-backend/api/controllers/caller"
	"github.com/angelmondragon/partsdirect-backend/api/responses"
	"github.com/angelmondragon/partsdirect-backend/api/validators"
	"github.com/angelmondragon/partsdirect-backend/internal/checkoutdrafts"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

// DraftCreate opens a checkout draft from the caller's cart.
func DraftCreate(svc checkoutdrafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := caller.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := svc.Create(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, draft)
	}
}

// DraftGet returns one of the caller's drafts.
func DraftGet(svc checkoutdrafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := caller.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draftID, err := validators.PathUUID(r, "draftId", "draft id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := svc.Get(r.Context(), userID, draftID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, draft)
	}
}
