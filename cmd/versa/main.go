package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/versa-platform/versa-core/internal/app"
	"github.com/versa-platform/versa-core/internal/audit"
	"github.com/versa-platform/versa-core/internal/auth"
	"github.com/versa-platform/versa-core/internal/authz"
	"github.com/versa-platform/versa-core/internal/observability"
	"github.com/versa-platform/versa-core/internal/platform/cache"
	"github.com/versa-platform/versa-core/internal/platform/db"
	"github.com/versa-platform/versa-core/internal/roles"
	"github.com/versa-platform/versa-core/internal/shared"
	"github.com/versa-platform/versa-core/internal/tenancy"
	"github.com/versa-platform/versa-core/internal/tenants"
	"github.com/versa-platform/versa-core/internal/users"
	"github.com/versa-platform/versa-core/internal/verticals"
	"github.com/versa-platform/versa-core/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "versa_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(dbpool, logger)

	principalRepo := tenancy.NewPrincipalRepository(dbpool)
	resolver := tenancy.NewResolver(principalRepo)
	tenancyMiddleware := tenancy.Middleware{Resolver: resolver, Logger: logger}

	verticalRepo := verticals.NewRepository(dbpool)
	verticalService := verticals.NewService(verticalRepo, principalRepo)
	verticalsHandler := verticals.NewHandler(logger, verticalService)

	authzRepo := authz.NewRepository(dbpool)
	authzService := authz.NewService(authzRepo, principalRepo, verticalService, recorder)
	guard := authz.Middleware{Service: authzService, Logger: logger, Metrics: metrics}
	authzHandler := authz.NewHandler(logger, authzService, guard)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	tenantRepo := tenants.NewRepository(dbpool)
	tenantService := tenants.NewService(tenantRepo)
	tenantsHandler := tenants.NewHandler(logger, tenantService, guard)

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo)
	usersHandler := users.NewHandler(logger, userService, guard)

	roleRepo := roles.NewRepository(dbpool)
	roleService := roles.NewService(roleRepo)
	rolesHandler := roles.NewHandler(logger, roleService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Pool:              dbpool,
		TenancyMiddleware: tenancyMiddleware,
		Guard:             guard,
		AuthHandler:       authHandler,
		AuthzHandler:      authzHandler,
		TenantsHandler:    tenantsHandler,
		UsersHandler:      usersHandler,
		RolesHandler:      rolesHandler,
		VerticalsHandler:  verticalsHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
