package controllers

import (
	"net/http"

	"github.com/angelmondragon/partsdirect-backend/api/middleware"
	"github.com/angelmondragon/partsdirect-backend/api/responses"
	"github.com/angelmondragon/partsdirect-backend/pkg/instance"
)

type pingReply struct {
	Scope    string `json:"scope"`
	Instance string `json:"instance"`
	UserID   string `json:"user_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Ping answers with the route group and the instance that served it, so
// load-balancer and auth wiring can be checked per group.
func Ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		responses.WriteSuccess(w, pingReply{
			Scope:    scope,
			Instance: instance.GetID(),
			UserID:   middleware.UserIDFromContext(ctx),
			Role:     middleware.RoleFromContext(ctx),
		})
	}
}
