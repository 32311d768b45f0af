package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal/auth"
	"github.com/frahmantamala/inventory-checkout/internal/checkout"
	"github.com/frahmantamala/inventory-checkout/internal/inventory"
	"github.com/frahmantamala/inventory-checkout/internal/observability"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
	"github.com/frahmantamala/inventory-checkout/internal/transport/middleware"
	"github.com/frahmantamala/inventory-checkout/internal/transport/swagger"
	"github.com/frahmantamala/inventory-checkout/internal/user"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Dependencies struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// OpenAPI enables request validation and the /openapi.yml route when set.
	OpenAPI    *openapi3.T
	OpenAPIRaw []byte

	Health        *HealthHandler
	Authenticator auth.Authenticator
	Authorizer    *rbac.Authorizer

	Auth      *auth.Handler
	Users     *user.Handler
	RBAC      *rbac.Handler
	Inventory *inventory.Handler
	Checkout  *checkout.Handler

	Production     bool
	AllowedOrigins string
	AuthRateLimit  int
	AuthRateWindow time.Duration
	MetricsPath    string
}

func RegisterAllRoutes(router *chi.Mux, deps Dependencies) error {
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TraceID)
	router.Use(middleware.Recovery)
	router.Use(middleware.SecureHeaders(deps.Production))
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	router.Use(middleware.Logging)

	if deps.Metrics != nil && deps.MetricsPath != "" {
		router.Handle(deps.MetricsPath, deps.Metrics.Handler())
	}
	if len(deps.OpenAPIRaw) > 0 {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(deps.OpenAPIRaw)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	var validate func(http.Handler) http.Handler
	if deps.OpenAPI != nil {
		v, err := middleware.ValidateRequests(deps.OpenAPI)
		if err != nil {
			return err
		}
		validate = v
	}

	authz := deps.Authorizer
	authenticate := auth.Authenticate(deps.Authenticator)
	limited := middleware.RateLimitByIP(deps.AuthRateLimit, deps.AuthRateWindow)

	router.Route("/api/v1", func(r chi.Router) {
		if deps.Health != nil {
			r.Get("/health", deps.Health.healthCheckHandler)
			r.Get("/ping", deps.Health.pingHandler)
		}

		r.Group(func(api chi.Router) {
			if validate != nil {
				api.Use(validate)
			}

			// Unauthenticated auth endpoints.
			api.Group(func(pub chi.Router) {
				pub.Use(limited)
				pub.Post("/auth/login", deps.Auth.Login)
				pub.Post("/auth/register-superadmin", deps.Auth.RegisterSuperAdmin)
				pub.Post("/auth/reset-password", deps.Auth.ResetPassword)
			})

			api.Group(func(pr chi.Router) {
				pr.Use(authenticate)

				// Reachable while the caller still holds a temporary password.
				pr.Post("/auth/change-password", deps.Auth.ChangePassword)
				pr.Post("/auth/logout", deps.Auth.Logout)

				pr.Group(func(gr chi.Router) {
					gr.Use(auth.RequirePasswordChange)

					gr.With(authz.RequireRole(rbac.RoleSuperAdmin)).Post("/auth/register", deps.Auth.Register)

					gr.Route("/users", func(ur chi.Router) {
						ur.Get("/me", deps.Users.GetCurrentUser)
						ur.With(authz.Require(rbac.PermUserRead)).Get("/", deps.Users.ListUsers)
						ur.With(authz.Require(rbac.PermUserCreate)).Post("/", deps.Users.CreateUser)
						ur.With(authz.Require(rbac.PermUserRead)).Get("/{id}", deps.Users.GetUser)
						ur.With(authz.Require(rbac.PermUserUpdate)).Patch("/{id}", deps.Users.UpdateUser)
						ur.With(authz.Require(rbac.PermUserDelete)).Delete("/{id}", deps.Users.DeleteUser)
					})

					gr.Route("/roles", func(rr chi.Router) {
						rr.With(authz.Require(rbac.PermRoleRead)).Get("/", deps.RBAC.ListRoles)
						rr.With(authz.Require(rbac.PermRoleCreate)).Post("/", deps.RBAC.CreateRole)
						rr.With(authz.Require(rbac.PermRoleRead)).Get("/{id}", deps.RBAC.GetRole)
						rr.With(authz.Require(rbac.PermRoleUpdate)).Put("/{id}", deps.RBAC.UpdateRole)
						rr.With(authz.Require(rbac.PermRoleDelete)).Delete("/{id}", deps.RBAC.DeleteRole)
						rr.With(authz.Require(rbac.PermRoleUpdate, rbac.PermPermissionRead)).
							Post("/{id}/permissions", deps.RBAC.AssignPermission)
						rr.With(authz.Require(rbac.PermRoleUpdate)).
							Delete("/{id}/permissions/{permissionId}", deps.RBAC.RevokePermission)
					})

					gr.Route("/permissions", func(pm chi.Router) {
						pm.With(authz.Require(rbac.PermPermissionRead)).Get("/", deps.RBAC.ListPermissions)
						pm.With(authz.Require(rbac.PermPermissionCreate)).Post("/", deps.RBAC.CreatePermission)
						pm.With(authz.Require(rbac.PermPermissionRead)).Get("/{id}", deps.RBAC.GetPermission)
						pm.With(authz.Require(rbac.PermPermissionUpdate)).Put("/{id}", deps.RBAC.UpdatePermission)
						pm.With(authz.Require(rbac.PermPermissionDelete)).Delete("/{id}", deps.RBAC.DeletePermission)
					})

					gr.Route("/inventory", func(ir chi.Router) {
						ir.With(authz.Require(rbac.PermInventoryRead)).Get("/", deps.Inventory.ListItems)
						ir.With(authz.Require(rbac.PermInventoryCreate)).Post("/", deps.Inventory.CreateItem)
						ir.With(authz.Require(rbac.PermInventoryRead)).Get("/{id}", deps.Inventory.GetItem)
						ir.With(authz.Require(rbac.PermInventoryUpdate)).Put("/{id}", deps.Inventory.UpdateItem)
						ir.With(authz.Require(rbac.PermInventoryDelete)).Delete("/{id}", deps.Inventory.DeleteItem)
					})

					gr.Group(func(cr chi.Router) {
						cr.Use(authz.Require(rbac.PermCheckoutProcess))
						cr.Post("/checkout", deps.Checkout.ProcessCheckout)
						cr.Get("/checkout/history", deps.Checkout.History)
					})
				})
			})
		})
	})

	return nil
}
