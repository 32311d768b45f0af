package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/transport"
	"github.com/frahmantamala/inventory-checkout/pkg/logger"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*internal.Principal, error)
}

// Authenticate requires a valid bearer token and stores the Principal in the
// request context.
func Authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authn.Authenticate(r.Context(), transport.ExtractBearerToken(r))
			if err != nil {
				transport.WriteAppError(w, r, err)
				return
			}

			ctx := internal.ContextWithPrincipal(r.Context(), principal)
			ctx = logger.With(ctx, "user_id", principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePasswordChange blocks callers still on a temporary password.
func RequirePasswordChange(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := internal.PrincipalFromContext(r.Context())
		if !ok {
			transport.WriteAppError(w, r, internal.ErrMissingToken)
			return
		}
		if principal.TempPassword {
			logger.From(r.Context()).Info("request blocked until password change", "path", r.URL.Path)
			transport.WriteAppError(w, r, internal.ErrPasswordChangeRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
