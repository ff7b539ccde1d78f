package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/partsdirect-backend/api/responses"
	pkgAuth "github.com/angelmondragon/partsdirect-backend/pkg/auth"
	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

const SessionHeader = "X-Session-Id"

var errNoCredentials = errors.New("missing credentials")

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, cfg, logg)
			if err != nil {
				writeAuthError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth accepts either a bearer token or a guest X-Session-Id. A
// present but invalid token is still rejected.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, cfg, logg)
			switch {
			case errors.Is(err, errNoCredentials):
				ctx = r.Context()
			case err != nil:
				writeAuthError(r.Context(), logg, w, err)
				return
			}

			if session := strings.TrimSpace(r.Header.Get(SessionHeader)); session != "" {
				ctx = WithSessionID(ctx, session)
				if logg != nil {
					ctx = logg.WithSessionID(ctx, session)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, logg *logger.Logger) (context.Context, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return nil, errNoCredentials
	}

	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, errNoCredentials
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
	ctx = context.WithValue(ctx, ctxCustomerType, string(claims.CustomerType))

	if logg != nil {
		ctx = logg.WithCaller(ctx, claims.UserID.String(), string(claims.Role))
	}
	return ctx, nil
}

func writeAuthError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if errors.Is(err, errNoCredentials) {
		err = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	responses.WriteError(ctx, logg, w, err)
}
