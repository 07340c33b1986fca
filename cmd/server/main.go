package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/insider-one/local-notifications/docs"
	"github.com/insider-one/local-notifications/internal/config"
	"github.com/insider-one/local-notifications/internal/domain"
	"github.com/insider-one/local-notifications/internal/engine"
	"github.com/insider-one/local-notifications/internal/handler"
	"github.com/insider-one/local-notifications/internal/middleware"
	"github.com/insider-one/local-notifications/internal/permission"
	"github.com/insider-one/local-notifications/internal/provider"
	"github.com/insider-one/local-notifications/internal/repository/postgres"
	"github.com/insider-one/local-notifications/internal/repository/redis"
	"github.com/insider-one/local-notifications/internal/service"
	"github.com/insider-one/local-notifications/internal/worker"
)

// @title Local Notifications API
// @version 1.0
// @description Local notification manager: permission gate, pending registry and pluggable delivery engines
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@insider.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting local notification manager",
		"env", cfg.App.Env,
		"port", cfg.Server.Port,
		"engine", cfg.Engine.Kind,
		"provider", cfg.Engine.Provider,
		"authorization", cfg.Authorization.Mode,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := handler.NewMetrics(prometheus.DefaultRegisterer)
	healthHandler := handler.NewHealthHandler()

	// Initialize WebSocket hub
	wsHub := handler.NewWebSocketHub(logger)
	go wsHub.Run(ctx)

	// Initialize provider
	deliveryProvider, err := newProvider(cfg, logger)
	if err != nil {
		logger.Error("failed to create delivery provider", "error", err)
		os.Exit(1)
	}

	// Initialize engine
	runtime, err := newEngine(ctx, cfg, deliveryProvider, metrics, healthHandler, logger)
	if err != nil {
		logger.Error("failed to create notification engine", "error", err)
		os.Exit(1)
	}
	defer runtime.close()

	// Initialize authorization
	authorizer, decider := newAuthorizer(cfg, wsHub, logger)
	healthHandler.AddChecker("authorizer", handler.HealthCheckFunc(func(ctx context.Context) error {
		_, err := authorizer.AuthorizationStatus(ctx)
		return err
	}))

	// Initialize manager
	gate := permission.NewGate(authorizer, logger)
	manager := service.NewNotificationManager(gate, runtime.engine, logger)
	manager.SetEventBroadcast(wsHub.Broadcast)
	manager.SetRecorder(metrics)
	manager.SetEnabled(cfg.Manager.Enabled)
	runtime.setFiredHandler(manager.HandleFired)

	if cfg.Manager.RestoreOnStart {
		if _, err := manager.Restore(ctx); err != nil {
			logger.Error("failed to restore pending notifications", "error", err)
			os.Exit(1)
		}
	}

	// Initialize handlers
	notificationHandler := handler.NewNotificationHandler(manager)
	managerHandler := handler.NewManagerHandler(manager)
	resetter, _ := authorizer.(handler.AuthorizationResetter)
	permissionHandler := handler.NewPermissionHandler(manager, decider, resetter)
	metricsHandler := handler.NewMetricsHandler(metrics, manager, runtime.depth)
	wsHandler := handler.NewWebSocketHandler(wsHub)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(metrics))
	r.Use(chimiddleware.Compress(5))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoints
	r.Handle("/metrics", metricsHandler.Handler())
	r.Get("/metrics/realtime", metricsHandler.Realtime)

	// WebSocket endpoint
	r.Get("/ws", wsHandler.HandleWebSocket)

	// API docs
	docs.SwaggerInfo.Host = ""
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/notifications", notificationHandler.RegisterRoutes)
		r.Route("/manager", managerHandler.RegisterRoutes)
		r.Route("/permission", permissionHandler.RegisterRoutes)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start engine
	if err := runtime.start(ctx); err != nil {
		logger.Error("failed to start notification engine", "error", err)
		os.Exit(1)
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop engine (waits for in-flight deliveries)
	runtime.stop()

	// Cancel context
	cancel()

	logger.Info("server stopped")
}

func newProvider(cfg *config.Config, logger *slog.Logger) (domain.DeliveryProvider, error) {
	switch cfg.Engine.Provider {
	case config.ProviderWebhook:
		return provider.NewWebhookProvider(cfg.Webhook), nil
	case config.ProviderTelegram:
		bot, err := provider.NewTelegramBot(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		return provider.NewTelegramProvider(bot, cfg.Telegram.ChatID), nil
	default:
		return provider.NewLogProvider(logger), nil
	}
}

// newAuthorizer returns the authorizer and, in prompt mode, the decider that
// answers it over HTTP. The websocket hub answers it too.
func newAuthorizer(cfg *config.Config, hub *handler.WebSocketHub, logger *slog.Logger) (domain.Authorizer, handler.PromptDecider) {
	switch cfg.Authorization.Mode {
	case config.AuthorizationGrant:
		return permission.NewPolicyAuthorizer(true, cfg.Authorization.Delay), nil
	case config.AuthorizationDeny:
		return permission.NewPolicyAuthorizer(false, cfg.Authorization.Delay), nil
	default:
		prompt := permission.NewPromptAuthorizer(logger)
		prompt.SetTimeout(cfg.Authorization.PromptTimeout)
		prompt.SetPromptBroadcast(hub.Broadcast)
		hub.SetDecisionHandler(prompt.Decide)
		return prompt, prompt
	}
}

// engineRuntime bundles the selected engine with its lifecycle
type engineRuntime struct {
	engine          domain.NotificationEngine
	depth           handler.DepthReporter
	setFiredHandler func(domain.FiredHandler)
	start           func(ctx context.Context) error
	stop            func()
	closers         []func()
}

func (e *engineRuntime) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// durableStore is implemented by the Redis and PostgreSQL engines
type durableStore interface {
	domain.NotificationEngine
	domain.DueStore
	domain.PendingLister
	handler.DepthReporter
}

func newEngine(
	ctx context.Context,
	cfg *config.Config,
	deliveryProvider domain.DeliveryProvider,
	metrics *handler.Metrics,
	health *handler.HealthHandler,
	logger *slog.Logger,
) (*engineRuntime, error) {
	runtime := &engineRuntime{}

	var (
		store       durableStore
		rateLimiter domain.RateLimiter
	)

	switch cfg.Engine.Kind {
	case config.EngineRedis:
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		runtime.closers = append(runtime.closers, func() { redisClient.Close() })
		health.AddChecker("redis", redisClient)
		logger.Info("connected to Redis")

		store = redis.NewStore(redisClient)
		if cfg.Dispatcher.RateLimitPerSec > 0 {
			rateLimiter = redis.NewRateLimiter(redisClient, cfg.Dispatcher.RateLimitPerSec)
		}

	case config.EnginePostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.URL, logger); err != nil {
				return nil, err
			}
		}

		db, err := postgres.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		runtime.closers = append(runtime.closers, db.Close)
		health.AddChecker("postgres", db)
		logger.Info("connected to PostgreSQL")

		store = postgres.NewStore(db)

	default:
		memory := engine.NewMemory(deliveryProvider, logger)
		memory.SetDeliveryTimeout(cfg.Engine.DeliveryTimeout)
		memory.SetRecorder(metrics)

		runtime.engine = memory
		runtime.depth = memory
		runtime.setFiredHandler = memory.SetFiredHandler
		runtime.start = func(context.Context) error {
			memory.Start()
			return nil
		}
		runtime.stop = memory.Stop
		return runtime, nil
	}

	dispatcher := worker.NewDispatcher(
		store,
		rateLimiter,
		deliveryProvider,
		logger,
		cfg.Retry,
		cfg.Dispatcher,
		cfg.Engine.DeliveryTimeout,
	)
	dispatcher.SetRecorder(metrics)

	runtime.engine = store
	runtime.depth = store
	runtime.setFiredHandler = dispatcher.SetFiredHandler
	runtime.start = dispatcher.Start
	runtime.stop = dispatcher.Stop
	return runtime, nil
}
