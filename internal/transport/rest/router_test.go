package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/inventory-checkout/api"
	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/auth"
	authRedis "github.com/frahmantamala/inventory-checkout/internal/auth/redis"
	"github.com/frahmantamala/inventory-checkout/internal/checkout"
	"github.com/frahmantamala/inventory-checkout/internal/core/events"
	"github.com/frahmantamala/inventory-checkout/internal/core/security"
	"github.com/frahmantamala/inventory-checkout/internal/core/storage/sqlitetest"
	"github.com/frahmantamala/inventory-checkout/internal/inventory"
	inventoryPostgres "github.com/frahmantamala/inventory-checkout/internal/inventory/postgres"
	"github.com/frahmantamala/inventory-checkout/internal/observability"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
	rbacPostgres "github.com/frahmantamala/inventory-checkout/internal/rbac/postgres"
	"github.com/frahmantamala/inventory-checkout/internal/transport"
	"github.com/frahmantamala/inventory-checkout/internal/transport/middleware"
	"github.com/frahmantamala/inventory-checkout/internal/transport/rest"
	"github.com/frahmantamala/inventory-checkout/internal/user"
	userPostgres "github.com/frahmantamala/inventory-checkout/internal/user/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

const adminPassword = "Adm1nPassword"

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) lastTemporaryPassword() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if ev, ok := p.events[i].(*events.UserCreatedEvent); ok {
			return ev.TemporaryPassword
		}
	}
	return ""
}

// stubCheckout stands in for the sqlx engine, which needs Postgres row locks.
type stubCheckout struct{}

func (stubCheckout) Process(_ context.Context, userID int64, dto checkout.CheckoutDTO) (*checkout.Order, error) {
	return &checkout.Order{ID: 1, UserID: userID, Status: "completed", Total: 100}, nil
}

func (stubCheckout) History(context.Context, int64) ([]*checkout.Order, error) {
	return []*checkout.Order{}, nil
}

type buildOptions struct {
	rateLimit int
	health    map[string]rest.Check
}

var _ = Describe("Router", func() {
	var (
		ctx       context.Context
		router    *chi.Mux
		publisher *capturePublisher
		metrics   *observability.Metrics
	)

	build := func(opts buildOptions) {
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))

		db, err := sqlitetest.Open()
		Expect(err).NotTo(HaveOccurred())

		mr := miniredis.RunT(GinkgoT())
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		metrics = observability.NewMetrics(prometheus.NewRegistry())
		publisher = &capturePublisher{}
		hasher := security.NewPasswordHasher(4)

		rbacService := rbac.NewService(rbacPostgres.NewRBACRepository(db), lg)
		_, err = rbacService.EnsureDefaults(ctx)
		Expect(err).NotTo(HaveOccurred())

		userService := user.NewService(userPostgres.NewUserRepository(db), rbacService, hasher, publisher, 12, lg)
		authService := auth.NewService(userService, rbacService,
			auth.NewJWTTokenGenerator(strings.Repeat("k", 32), time.Hour),
			authRedis.NewRevocationStore(client), hasher, publisher, metrics,
			auth.Options{BootstrapEnabled: true}, lg)
		inventoryService := inventory.NewService(inventoryPostgres.NewInventoryRepository(db), lg)

		doc, err := middleware.LoadOpenAPI(ctx, api.OpenAPI)
		Expect(err).NotTo(HaveOccurred())

		base := transport.NewBaseHandler(lg)
		router = chi.NewRouter()
		Expect(rest.RegisterAllRoutes(router, rest.Dependencies{
			Logger:         lg,
			Metrics:        metrics,
			OpenAPI:        doc,
			OpenAPIRaw:     api.OpenAPI,
			Health:         rest.NewHealthHandler(opts.health),
			Authenticator:  authService,
			Authorizer:     rbac.NewAuthorizer(rbacService, lg, metrics),
			Auth:           auth.NewHandler(base, authService),
			Users:          user.NewHandler(base, userService),
			RBAC:           rbac.NewHandler(base, rbacService),
			Inventory:      inventory.NewHandler(base, inventoryService),
			Checkout:       checkout.NewHandler(base, stubCheckout{}),
			AuthRateLimit:  opts.rateLimit,
			AuthRateWindow: time.Minute,
			MetricsPath:    "/metrics",
		})).To(Succeed())
	}

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	tokenFrom := func(rec *httptest.ResponseRecorder) string {
		var resp auth.TokenResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.AccessToken).NotTo(BeEmpty())
		return resp.AccessToken
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	bootstrap := func() string {
		rec := do(http.MethodPost, "/api/v1/auth/register-superadmin", "",
			`{"full_name":"Root Admin","email":"root@example.com","password":"`+adminPassword+`"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
		return tokenFrom(rec)
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("onboarding a cashier", func() {
		BeforeEach(func() {
			build(buildOptions{})
		})

		It("walks from bootstrap to checkout through every gate", func() {
			adminToken := bootstrap()

			By("closing the bootstrap once a super admin exists")
			rec := do(http.MethodPost, "/api/v1/auth/register-superadmin", "",
				`{"full_name":"Second","email":"second@example.com","password":"`+adminPassword+`"}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			By("registering a cashier with a temporary password")
			rec = do(http.MethodPost, "/api/v1/auth/register", adminToken,
				`{"full_name":"Cash Ier","email":"cashier@example.com","role_id":3}`)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
			temp := publisher.lastTemporaryPassword()
			Expect(temp).NotTo(BeEmpty())
			Expect(rec.Body.String()).NotTo(ContainSubstring(temp))

			rec = do(http.MethodPost, "/api/v1/auth/login", "",
				`{"email":"CASHIER@example.com","password":"`+temp+`"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"requires_password_reset":true`))
			cashierToken := tokenFrom(rec)

			By("blocking everything but change-password while the password is temporary")
			rec = do(http.MethodGet, "/api/v1/inventory", cashierToken, "")
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodePasswordChangeRequired)))

			rec = do(http.MethodPost, "/api/v1/auth/change-password", cashierToken,
				`{"current_password":"`+temp+`","new_password":"Cash1erPassword"}`)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			By("applying the role's permissions")
			Expect(do(http.MethodGet, "/api/v1/inventory", cashierToken, "").Code).To(Equal(http.StatusOK))
			rec = do(http.MethodPost, "/api/v1/inventory", cashierToken,
				`{"name":"Widget","price":100,"quantity":1,"sku":"W-1"}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeForbidden)))

			rec = do(http.MethodPost, "/api/v1/checkout", cashierToken, `{"items":[{"inventory_id":1,"quantity":1}]}`)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())

			Expect(do(http.MethodPost, "/api/v1/auth/register", cashierToken,
				`{"full_name":"Nope","email":"nope@example.com","role_id":3}`).Code).To(Equal(http.StatusForbidden))

			By("revoking the token on logout")
			Expect(do(http.MethodPost, "/api/v1/auth/logout", cashierToken, "").Code).To(Equal(http.StatusNoContent))
			rec = do(http.MethodGet, "/api/v1/users/me", cashierToken, "")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeInvalidToken)))
		})

		It("picks up permission grants on the very next request", func() {
			adminToken := bootstrap()

			rec := do(http.MethodPost, "/api/v1/roles", adminToken, `{"name":"Auditor"}`)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
			var role rbac.Role
			Expect(json.Unmarshal(rec.Body.Bytes(), &role)).To(Succeed())

			rec = do(http.MethodPost, "/api/v1/auth/register", adminToken,
				`{"full_name":"Audi Tor","email":"auditor@example.com","role_id":`+jsonInt(role.ID)+`}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))
			temp := publisher.lastTemporaryPassword()
			token := tokenFrom(do(http.MethodPost, "/api/v1/auth/login", "",
				`{"email":"auditor@example.com","password":"`+temp+`"}`))
			Expect(do(http.MethodPost, "/api/v1/auth/change-password", token,
				`{"current_password":"`+temp+`","new_password":"Aud1torPassword"}`).Code).To(Equal(http.StatusOK))

			Expect(do(http.MethodGet, "/api/v1/users", token, "").Code).To(Equal(http.StatusForbidden))

			// user:read is permission 2 in the built-in vocabulary.
			rec = do(http.MethodPost, "/api/v1/roles/"+jsonInt(role.ID)+"/permissions", adminToken, `{"permission_id":2}`)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			Expect(do(http.MethodGet, "/api/v1/users", token, "").Code).To(Equal(http.StatusOK))
		})

		It("keeps account creation and role changes with Super Admin", func() {
			adminToken := bootstrap()

			// user:create, user:read, user:update and user:delete are permissions 1-4.
			rec := do(http.MethodPost, "/api/v1/roles", adminToken, `{"name":"HR Clerk","permission_ids":[1,2,3,4]}`)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
			var role rbac.Role
			Expect(json.Unmarshal(rec.Body.Bytes(), &role)).To(Succeed())

			rec = do(http.MethodPost, "/api/v1/auth/register", adminToken,
				`{"full_name":"H R Clerk","email":"clerk@example.com","role_id":`+jsonInt(role.ID)+`}`)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
			var clerk struct {
				ID int64 `json:"id"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &clerk)).To(Succeed())
			temp := publisher.lastTemporaryPassword()
			clerkToken := tokenFrom(do(http.MethodPost, "/api/v1/auth/login", "",
				`{"email":"clerk@example.com","password":"`+temp+`"}`))
			Expect(do(http.MethodPost, "/api/v1/auth/change-password", clerkToken,
				`{"current_password":"`+temp+`","new_password":"Cl3rkPassword"}`).Code).To(Equal(http.StatusOK))

			By("refusing to create accounts, Super Admin or otherwise")
			rec = do(http.MethodPost, "/api/v1/users", clerkToken,
				`{"full_name":"Evil Root","email":"evil@example.com","role_id":1}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeSuperAdminRequired)))
			rec = do(http.MethodPost, "/api/v1/users", clerkToken,
				`{"full_name":"Cash Ier","email":"cashier@example.com","role_id":3}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			By("refusing to promote any account, including the caller's own")
			rec = do(http.MethodPatch, "/api/v1/users/"+jsonInt(clerk.ID), clerkToken, `{"role_id":1}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeSuperAdminRequired)))
			rec = do(http.MethodGet, "/api/v1/users/me", clerkToken, "")
			Expect(rec.Body.String()).To(ContainSubstring(`"name":"HR Clerk"`))

			By("refusing to edit a Super Admin account")
			rec = do(http.MethodPatch, "/api/v1/users/1", clerkToken, `{"email":"clerk-owned@example.com"}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			By("still allowing profile edits on ordinary accounts")
			rec = do(http.MethodPatch, "/api/v1/users/"+jsonInt(clerk.ID), clerkToken, `{"full_name":"Clerk Renamed"}`)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			By("letting the Super Admin do both")
			rec = do(http.MethodPost, "/api/v1/users", adminToken,
				`{"full_name":"Cash Ier","email":"cashier@example.com","role_id":3}`)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
			rec = do(http.MethodPatch, "/api/v1/users/"+jsonInt(clerk.ID), adminToken, `{"role_id":3}`)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())
		})

		It("requires a bearer token on protected routes", func() {
			rec := do(http.MethodGet, "/api/v1/inventory", "", "")

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeMissingToken)))
		})

		It("rejects bodies that do not match the API document", func() {
			adminToken := bootstrap()

			rec := do(http.MethodPost, "/api/v1/inventory", adminToken,
				`{"name":"Widget","price":"cheap","quantity":1,"sku":"W-1"}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeValidationFailed)))
		})

		It("sets security and trace headers", func() {
			rec := do(http.MethodGet, "/api/v1/ping", "", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("X-Frame-Options")).To(Equal("DENY"))
			Expect(rec.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
			Expect(rec.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
		})

		It("serves the API document and metrics", func() {
			Expect(do(http.MethodGet, "/openapi.yml", "", "").Body.String()).To(ContainSubstring("openapi: 3.0.3"))

			do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ghost@example.com","password":"x"}`)
			rec := do(http.MethodGet, "/metrics", "", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("login_attempts_total"))
		})
	})

	Describe("health", func() {
		It("reports each dependency and fails when one is down", func() {
			build(buildOptions{health: map[string]rest.Check{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			}})

			rec := do(http.MethodGet, "/api/v1/health", "", "")

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			var resp rest.HealthResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Components).To(HaveKey("postgres"))
			Expect(resp.Components["redis"].Message).To(Equal("connection refused"))
		})
	})

	Describe("rate limiting", func() {
		It("throttles repeated login attempts from one address", func() {
			build(buildOptions{rateLimit: 2})
			body := `{"email":"ghost@example.com","password":"x"}`

			Expect(do(http.MethodPost, "/api/v1/auth/login", "", body).Code).To(Equal(http.StatusUnauthorized))
			Expect(do(http.MethodPost, "/api/v1/auth/login", "", body).Code).To(Equal(http.StatusUnauthorized))
			rec := do(http.MethodPost, "/api/v1/auth/login", "", body)

			Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeTooManyRequests)))
		})
	})
})

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
