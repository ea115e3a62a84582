package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/handlers/principalctx"
	"github.com/jihokoo/spotmission/internal/handlers/render"
	"github.com/jihokoo/spotmission/internal/logger"
	"github.com/jihokoo/spotmission/internal/models"
	"github.com/jihokoo/spotmission/internal/token"
)

const bearerScheme = "Bearer"

type principalDirectory interface {
	GetByEmail(ctx context.Context, email string) (models.Principal, error)
}

// Gateway validates a bearer access token once per request and attaches the
// resolved principal to the request context. It never aborts the request:
// a missing or invalid token simply leaves the request unauthenticated and
// route level policy decides downstream.
func Gateway(codec *token.Codec, directory principalDirectory, l logger.Logger) func(http.Handler) http.Handler {
	if l == nil {
		l = logger.NewNoOp()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := codec.Decode(bearer)
			if err != nil {
				// Deny authentication, not the request
				l.Debug("bearer token rejected", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			principal, err := directory.GetByEmail(r.Context(), claims.Subject)
			if err != nil {
				if !errors.Is(err, apperrors.ErrPrincipalNotFound) {
					l.Error("principal lookup failed on request path", "error", err.Error())
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := principalctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePrincipal is the route level policy: 401 unless the gateway
// attached a principal
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principalctx.FromContext(r.Context()); !ok {
			render.AuthError(w, "invalid_token", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only principals with the ADMIN role through
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalctx.FromContext(r.Context())
		if !ok {
			render.AuthError(w, "invalid_token", "Authentication required")
			return
		}
		if !principal.IsAdmin() {
			render.ServiceError(w, "Admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}

	value = strings.TrimSpace(value)
	return value, value != ""
}
