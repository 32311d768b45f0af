package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/inventory-checkout/api"
	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/auth"
	authRedis "github.com/frahmantamala/inventory-checkout/internal/auth/redis"
	"github.com/frahmantamala/inventory-checkout/internal/checkout"
	checkoutPostgres "github.com/frahmantamala/inventory-checkout/internal/checkout/postgres"
	"github.com/frahmantamala/inventory-checkout/internal/core/events"
	"github.com/frahmantamala/inventory-checkout/internal/core/security"
	"github.com/frahmantamala/inventory-checkout/internal/inventory"
	inventoryPostgres "github.com/frahmantamala/inventory-checkout/internal/inventory/postgres"
	"github.com/frahmantamala/inventory-checkout/internal/notification"
	"github.com/frahmantamala/inventory-checkout/internal/observability"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
	rbacPostgres "github.com/frahmantamala/inventory-checkout/internal/rbac/postgres"
	"github.com/frahmantamala/inventory-checkout/internal/transport"
	"github.com/frahmantamala/inventory-checkout/internal/transport/middleware"
	"github.com/frahmantamala/inventory-checkout/internal/transport/rest"
	"github.com/frahmantamala/inventory-checkout/internal/user"
	userPostgres "github.com/frahmantamala/inventory-checkout/internal/user/postgres"
	"github.com/frahmantamala/inventory-checkout/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Redis      goredis.UniversalClient
	EventBus   *events.EventBus
	Dispatcher *notification.Dispatcher
	Router     *chi.Mux
	Logger     *slog.Logger
}

func startHTTPServer() error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Logger.Info("starting HTTP server", "address", addr, "env", deps.Config.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		deps.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		// Handlers may still be queueing mail; drain the bus before the mailer.
		if err := deps.EventBus.Wait(shutdownCtx); err != nil {
			deps.Logger.Error("event handlers did not finish", "error", err)
		}
		if err := deps.Dispatcher.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("notification dispatcher shutdown error", "error", err)
		}
		deps.close()
		return nil
	})

	if err := g.Wait(); err != nil {
		deps.Logger.Error("server stopped with error", "error", err)
		return err
	}
	deps.Logger.Info("server stopped")
	return nil
}

func (d *Dependencies) close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()
	ctx := context.Background()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{Config: cfg, DB: db, Gorm: gormDB, Logger: lg}
	health := map[string]rest.Check{"database": db.PingContext}

	var revocations auth.RevocationStore
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Redis = client
		revocations = authRedis.NewRevocationStore(client)
		health["redis"] = authRedis.Healthcheck(client)
	} else {
		lg.Warn("redis disabled, logged out tokens stay valid until they expire")
		revocations = auth.NoopRevocationStore{}
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	mailer, err := notification.NewMailer(cfg.Mail, lg)
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}
	deps.Dispatcher = notification.NewDispatcher(mailer, notification.DispatcherConfig{
		Workers:     cfg.Mail.Workers,
		QueueSize:   cfg.Mail.QueueSize,
		MaxAttempts: cfg.Mail.MaxAttempts,
		Backoff:     cfg.Mail.RetryBackoff,
	}, lg)

	deps.EventBus = events.NewEventBus(lg)

	rbacService := rbac.NewService(rbacPostgres.NewRBACRepository(gormDB), lg)
	report, err := rbacService.EnsureDefaults(ctx)
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("failed to ensure default roles: %w", err)
	}
	lg.Info("rbac defaults ensured",
		"roles_created", report.RolesCreated,
		"permissions_created", report.PermissionsCreated,
		"links_created", report.LinksCreated)

	hasher := security.NewPasswordHasher(cfg.Security.BCryptCost)
	userService := user.NewService(userPostgres.NewUserRepository(gormDB), rbacService, hasher,
		deps.EventBus, cfg.Security.TempPasswordLength, lg)
	notification.NewEventHandler(deps.Dispatcher, userService, cfg.Mail.LoginURL, lg).RegisterEventHandlers(deps.EventBus)
	authService := auth.NewService(userService, rbacService,
		auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.AccessTokenDuration),
		revocations, hasher, deps.EventBus, metrics,
		auth.Options{
			BootstrapEnabled:   cfg.Security.SuperAdminBootstrapEnabled,
			TempPasswordLength: cfg.Security.TempPasswordLength,
		}, lg)
	inventoryService := inventory.NewService(inventoryPostgres.NewInventoryRepository(gormDB), lg)
	checkoutService := checkout.NewService(checkoutPostgres.NewCheckoutRepository(db), deps.EventBus, metrics,
		checkout.Options{
			TrustClientPrice:   cfg.Checkout.TrustClientPrice,
			TransactionTimeout: cfg.Checkout.TransactionTimeout,
		}, lg)

	doc, err := middleware.LoadOpenAPI(ctx, api.OpenAPI)
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}

	base := transport.NewBaseHandler(lg)
	deps.Router = chi.NewRouter()
	err = rest.RegisterAllRoutes(deps.Router, rest.Dependencies{
		Logger:         lg,
		Metrics:        metrics,
		OpenAPI:        doc,
		OpenAPIRaw:     api.OpenAPI,
		Health:         rest.NewHealthHandler(health),
		Authenticator:  authService,
		Authorizer:     rbac.NewAuthorizer(rbacService, lg, metrics),
		Auth:           auth.NewHandler(base, authService),
		Users:          user.NewHandler(base, userService),
		RBAC:           rbac.NewHandler(base, rbacService),
		Inventory:      inventory.NewHandler(base, inventoryService),
		Checkout:       checkout.NewHandler(base, checkoutService),
		Production:     cfg.IsProduction(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AuthRateLimit:  cfg.RateLimit.AuthRequests,
		AuthRateWindow: cfg.RateLimit.AuthWindow,
		MetricsPath:    cfg.Observability.Metrics.Path,
	})
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	return deps, nil
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx connection pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
