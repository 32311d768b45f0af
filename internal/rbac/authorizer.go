package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/observability"
	"github.com/frahmantamala/inventory-checkout/internal/transport"
)

// RoleResolver returns a role with its permissions as currently stored.
type RoleResolver interface {
	GetRole(ctx context.Context, id int64) (*Role, error)
}

// Authorizer gates routes on the caller's role. Every check goes back to
// storage so grants and revocations apply to the very next request.
type Authorizer struct {
	roles   RoleResolver
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewAuthorizer(roles RoleResolver, logger *slog.Logger, metrics *observability.Metrics) *Authorizer {
	return &Authorizer{roles: roles, logger: logger, metrics: metrics}
}

// Allowed reports whether the role grants every permission in required.
// A role that no longer exists grants nothing.
func (a *Authorizer) Allowed(ctx context.Context, roleID int64, required ...string) (bool, error) {
	role, err := a.roles.GetRole(ctx, roleID)
	if errors.Is(err, internal.ErrRoleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role.HasAll(required...), nil
}

// Require admits the request only when the caller holds all of permissions.
func (a *Authorizer) Require(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				transport.WriteAppError(w, r, internal.ErrMissingToken)
				return
			}

			allowed, err := a.Allowed(r.Context(), principal.RoleID, permissions...)
			if err != nil {
				transport.WriteAppError(w, r, internal.NewInternalError("Authorization check failed", err))
				return
			}
			if !allowed {
				a.deny(w, r, principal, "permission", "required", permissions)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits only callers whose role is named exactly roleName.
func (a *Authorizer) RequireRole(roleName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				transport.WriteAppError(w, r, internal.ErrMissingToken)
				return
			}

			role, err := a.roles.GetRole(r.Context(), principal.RoleID)
			if err != nil && !errors.Is(err, internal.ErrRoleNotFound) {
				transport.WriteAppError(w, r, internal.NewInternalError("Authorization check failed", err))
				return
			}
			if role == nil || role.Name != roleName {
				a.deny(w, r, principal, "role", "required_role", roleName)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// deny logs the specifics server-side; the caller only sees a generic 403.
func (a *Authorizer) deny(w http.ResponseWriter, r *http.Request, p *internal.Principal, gate, key string, value any) {
	a.logger.Warn("access denied",
		"gate", gate,
		"user_id", p.UserID,
		"role_id", p.RoleID,
		key, value,
		"path", r.URL.Path)
	a.metrics.RecordDenial(gate)
	transport.WriteAppError(w, r, internal.ErrForbidden)
}
