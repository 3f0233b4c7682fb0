package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/studygenius/studygenius/internal/config"
	"github.com/studygenius/studygenius/internal/database"
	"github.com/studygenius/studygenius/internal/handlers"
	"github.com/studygenius/studygenius/internal/logger"
	"github.com/studygenius/studygenius/internal/middleware"
	"github.com/studygenius/studygenius/internal/queue"
	"github.com/studygenius/studygenius/internal/services/ai"
	"github.com/studygenius/studygenius/internal/services/chat"
	"github.com/studygenius/studygenius/internal/services/entitlement"
	"github.com/studygenius/studygenius/internal/session"
	"github.com/studygenius/studygenius/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "studygenius-api"

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database (runtime CORS/rate limit configuration)
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Connect to Redis; one connection serves rate limiting and the
	// session store
	redisLimiter, err := middleware.NewRedisRateLimiter(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisLimiter.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Connect to RabbitMQ for job queue (required)
	// Retry connection with exponential backoff to handle RabbitMQ startup delays
	const maxRetries = 10
	const initialDelay = 2 * time.Second
	var jobQueue queue.JobQueue
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err = queue.NewRabbitMQQueue(cfg.RabbitMQURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			defer func() {
				if err := jobQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			break
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt)) // Exponential backoff
		if delay > 30*time.Second {
			delay = 30 * time.Second // Cap at 30 seconds
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
			zap.Int("max_retries", maxRetries),
			zap.Error(lastErr),
		)
	}

	// Initialize repositories
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Session state
	sessionStore := session.NewRedisStore(redisLimiter.Client(), cfg.SessionTTL)
	sessionManager := session.NewManager(sessionStore, zapLogger, cfg.SessionDebounce)

	// Initialize AI provider
	aiProvider, err := createAIProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_ai_provider", zap.Error(err))
	}
	generator := ai.NewService(aiProvider, zapLogger)
	chatService := chat.NewService(sessionStore, generator, zapLogger)

	// Entitlements are optional; without a secret the upgrade endpoint is off
	var entitlementService *entitlement.Service
	if cfg.EntitlementSecret != "" {
		entitlementService, err = entitlement.NewService([]byte(cfg.EntitlementSecret), cfg.EntitlementTTL)
		if err != nil {
			zapLogger.Fatal("failed_to_create_entitlement_service", zap.Error(err))
		}
	} else {
		zapLogger.Warn("entitlement_secret_not_configured_premium_disabled")
	}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionManager, chatService, zapLogger)
	documentHandler := handlers.NewDocumentHandler(sessionManager, jobQueue, zapLogger, cfg.MaxUploadBytes)
	featureHandler := handlers.NewFeatureHandler(sessionManager, generator, zapLogger)
	chatHandler := handlers.NewChatHandler(sessionManager, chatService, zapLogger)
	upgradeHandler := handlers.NewUpgradeHandler(entitlementService, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, sessionStore, queueHealth{jobQueue})

	// Setup router
	r := mux.NewRouter()

	// Apply middleware
	zapLogger.Info("setting_up_middleware")

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
		zapLogger.Info("otel_middleware_enabled")
	}
	// Security headers (set on all responses)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// CORS (load from DB, hot-reload; fallback to FRONTEND_URL)
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, 1*time.Minute)
	r.Use(corsReloader.Middleware())
	// Rate limit middleware (applied selectively to specific routes, not globally)
	rateLimitReloader := middleware.NewRateLimitReloader(redisLimiter.Client(), ratelimitConfigRepo, "5-S", zapLogger, 1*time.Minute)
	if rateLimitReloader == nil {
		zapLogger.Fatal("failed_to_create_rate_limit_reloader")
	}
	rateLimitMW := rateLimitReloader.Middleware()
	// Request size limits; uploads get their own larger cap on the route
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	// Request timeout (generation calls can be slow)
	r.Use(middleware.Timeout(60 * time.Second))
	// Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// Session identity first so audit and request logs can tag the session
	r.Use(middleware.SessionID())
	if entitlementService != nil {
		r.Use(middleware.Entitlement(entitlementService, zapLogger))
	}
	// Audit logging (for security events)
	r.Use(middleware.Audit(zapLogger))
	// Logging (innermost, executes last before handler)
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// OpenAPI spec (public)
	openAPIHandler, err := handlers.NewOpenAPIHandler(filepath.Join("api", "openapi", "openapi.yaml"))
	if err != nil {
		zapLogger.Warn("openapi_spec_not_available", zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	sessionRouter := apiRouter.PathPrefix("/session").Subrouter()
	sessionRouter.Use(rateLimitMW)
	sessionRouter.Use(middleware.ContentType)
	sessionHandler.RegisterRoutes(sessionRouter)

	// Uploads carry PDF payloads, so the tighter global body cap is lifted
	// for this subtree
	documentsRouter := apiRouter.PathPrefix("/documents").Subrouter()
	documentsRouter.Use(rateLimitMW)
	documentsRouter.Use(middleware.MaxRequestSize(cfg.MaxUploadBytes + 4096))
	documentHandler.RegisterRoutes(documentsRouter)

	// Generation endpoints get the stricter limit; upstream quota is the
	// scarce resource
	featuresRouter := apiRouter.PathPrefix("/features").Subrouter()
	featuresRouter.Use(middleware.RateLimitGeneration(redisLimiter))
	featureHandler.RegisterRoutes(featuresRouter)

	chatRouter := apiRouter.PathPrefix("/chat").Subrouter()
	chatRouter.Use(middleware.RateLimitGeneration(redisLimiter))
	chatHandler.RegisterRoutes(chatRouter)

	upgradeRouter := apiRouter.PathPrefix("/upgrade").Subrouter()
	upgradeRouter.Use(rateLimitMW)
	upgradeHandler.RegisterRoutes(upgradeRouter)

	// Catch-all OPTIONS handler for preflight requests
	// The CORS middleware will have set headers before this is called
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   90 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// CORS and rate limit hot-reload loops
	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go corsReloader.Start(reloadCtx)
	go rateLimitReloader.Start(reloadCtx)

	// Evict idle sessions so anonymous traffic cannot pin documents in
	// memory; the Redis store keeps the state for re-hydration
	go sessionManager.StartEvictor(reloadCtx, 5*time.Minute, cfg.SessionIdleTTL)

	// Start DLQ garbage collector if the queue implementation supports it
	// Run every hour, retain messages for 24 hours
	if dlqPurger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, 1*time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(reloadCtx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", 1*time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	// Flush pending session state so the debounce window cannot swallow
	// the last writes
	sessionManager.Shutdown(ctx)

	zapLogger.Info("server_exited")
}

// queueHealth adapts the job queue's health check to the Pinger shape
type queueHealth struct {
	q queue.JobQueue
}

func (p queueHealth) Ping(ctx context.Context) error {
	return p.q.HealthCheck(ctx)
}

// createAIProvider creates an AI provider based on configuration
func createAIProvider(cfg *config.Config, logger *zap.Logger, debugMode bool) (ai.Provider, error) {
	switch cfg.AIProvider {
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not configured")
		}
		return ai.NewGeminiProviderWithLogger(context.Background(), cfg.GeminiKey, cfg.AIModel, logger, debugMode)
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		return ai.NewOpenAIProviderWithLogger(
			cfg.OpenAIKey,
			cfg.AIBaseURL,
			cfg.AIModel,
			logger,
			debugMode,
		), nil
	}

	// Fallback to registry for providers configured by name
	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry)
	ai.RegisterGemini(registry)

	config := map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
	}

	return registry.GetProvider(cfg.AIProvider, config)
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info (sanitized for security)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
