package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/teachai/server/internal"
	"github.com/teachai/server/internal/ai"
	"github.com/teachai/server/internal/ai/anthropic"
	"github.com/teachai/server/internal/ai/mock"
	"github.com/teachai/server/internal/billing"
	"github.com/teachai/server/internal/docstore"
	"github.com/teachai/server/internal/email"
	"github.com/teachai/server/internal/handler"
	"github.com/teachai/server/internal/jobs"
	"github.com/teachai/server/internal/middleware"
	"github.com/teachai/server/internal/repository"
	"github.com/teachai/server/internal/service"
	"github.com/teachai/server/internal/storage"
	"github.com/teachai/server/internal/usage"
	"github.com/teachai/server/internal/worker"
)

// sessionCleanupInterval is how often expired sessions and verification
// tokens are purged.
const sessionCleanupInterval = time.Hour

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// ==========================================================================
	// Document store and usage tracking
	// ==========================================================================

	var store docstore.Store
	switch cfg.DocstoreProvider {
	case "memory":
		store = docstore.NewMemoryStore()
	case "postgres":
		store, err = docstore.NewPostgresStore(db, cfg.DatabaseUrl, logger)
		if err != nil {
			return fmt.Errorf("postgres docstore initialization failed: %w", err)
		}
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		store = docstore.NewRedisStore(client, logger)
	}
	defer store.Close()
	logger.Info("Document store ready", "provider", cfg.DocstoreProvider)

	usageRepo := usage.NewRepository(store, logger)
	tracker := usage.NewTracker(usageRepo, logger, usage.Config{
		WeeklyLimit: cfg.UsageWeeklyLimit,
		Location:    cfg.WeekLocation(),
	})

	// ==========================================================================
	// Services
	// ==========================================================================

	userService := service.NewUserService(repo, logger, service.WithAdminEmails(cfg.AdminEmails))
	toolService := service.NewToolService(repo, logger)
	schoolService := service.NewSchoolService(repo, logger)
	chatService := service.NewChatService(repo, logger)

	if err := toolService.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("tool catalog seeding failed: %w", err)
	}

	// File storage
	var fileStore storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderLocal:
		fileStore, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	case storage.ProviderR2:
		fileStore, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	mediaService := service.NewMediaService(fileStore, service.NewImagingProcessor(), toolService, logger)

	// Email
	var emailService email.EmailService
	smtpService, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("email service initialization failed: %w", err)
	}
	emailService = smtpService

	// AI provider
	var generator ai.Generator
	switch cfg.AIProvider {
	case "anthropic":
		generator, err = anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("anthropic provider initialization failed: %w", err)
		}
	default:
		generator = mock.New(logger)
	}
	logger.Info("AI provider ready", "provider", cfg.AIProvider)

	// Billing (optional, endpoints are only registered when configured)
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			PlusMonthlyPriceID:       cfg.StripePlusMonthlyPriceID,
			PlusYearlyPriceID:        cfg.StripePlusYearlyPriceID,
			EnterpriseMonthlyPriceID: cfg.StripeEnterpriseMonthlyPriceID,
			EnterpriseYearlyPriceID:  cfg.StripeEnterpriseYearlyPriceID,
		})
		logger.Info("Billing enabled")
	}

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		jobWorker, err = worker.New(db, repo, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}

		jobWorker.Register(jobs.NewGenerateResponseJob(generator, toolService, userService, mediaService, emailService, logger))
		jobWorker.Register(jobs.NewTrialNoticeJob(userService, emailService, logger))
		jobWorker.Register(jobs.NewSessionCleanupJob(userService, logger))

		jobWorker.Start(ctx)
		defer jobWorker.Stop()

		go scheduleSessionCleanup(ctx, repo, logger)
	}

	// ==========================================================================
	// Middleware and handlers
	// ==========================================================================

	isSecure := cfg.Env != "development"

	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsMw := middleware.NewMetricsMiddleware()
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	authLimiter := middleware.NewAuthRateLimiter(logger)

	authHandler := handler.NewAuthHandler(userService, schoolService, emailService, repo, logger, isSecure)
	usageHandler := handler.NewUsageHandler(tracker, logger)
	generateHandler := handler.NewGenerateHandler(generator, toolService, tracker, repo, logger)
	toolHandler := handler.NewToolHandler(toolService, mediaService, logger)
	chatHandler := handler.NewChatHandler(chatService, logger)
	schoolHandler := handler.NewSchoolHandler(schoolService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics, basic-auth protected when credentials are set
	metricsHandler := http.Handler(promhttp.Handler())
	if cfg.MetricsUsername != "" || cfg.MetricsPassword != "" {
		metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
		metricsHandler = metricsAuth.Handler(metricsHandler)
	} else {
		logger.Warn("Metrics endpoint is unprotected, set METRICS_USERNAME and METRICS_PASSWORD")
	}
	mux.Handle("GET /metrics", metricsHandler)

	// Locally stored files (development)
	if cfg.StorageProvider == storage.ProviderLocal {
		fileServer := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", fileServer))
	}

	// Middleware stacks
	withUser := middleware.Stack(authMw.WithUser)
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	requireVerified := middleware.Stack(authMw.WithUser, authMw.RequireUser, authMw.RequireEmailVerified)
	requireSiteAdmin := middleware.Stack(authMw.WithUser, authMw.RequireUser, authMw.RequireSiteAdmin)

	// Auth
	mux.Handle("POST /api/auth/register", authLimiter.LimitRegister(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", authLimiter.LimitLogin(authLimiter.TrackLoginOutcome(http.HandlerFunc(authHandler.Login))))
	mux.Handle("POST /api/auth/logout", http.HandlerFunc(authHandler.Logout))
	mux.Handle("GET /api/auth/me", requireUser(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/auth/verify-email", http.HandlerFunc(authHandler.VerifyEmail))
	mux.Handle("POST /api/auth/resend-verification", authLimiter.LimitResend(http.HandlerFunc(authHandler.ResendVerification)))
	mux.Handle("PATCH /api/auth/profile", requireUser(http.HandlerFunc(authHandler.UpdateProfile)))
	mux.Handle("POST /api/auth/password", requireUser(http.HandlerFunc(authHandler.ChangePassword)))

	// Usage quota
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(usageHandler.Snapshot)))
	mux.Handle("GET /api/usage/stream", requireUser(http.HandlerFunc(usageHandler.Stream)))

	// Generation
	mux.Handle("POST /api/generate", requireVerified(http.HandlerFunc(generateHandler.Stream)))
	mux.Handle("POST /api/generate/async", requireVerified(http.HandlerFunc(generateHandler.Async)))

	// Tool catalog
	mux.Handle("GET /api/tools", withUser(http.HandlerFunc(toolHandler.List)))
	mux.Handle("GET /api/tools/{slug}", withUser(http.HandlerFunc(toolHandler.Get)))
	mux.Handle("POST /api/tools", requireSiteAdmin(http.HandlerFunc(toolHandler.Create)))
	mux.Handle("POST /api/tools/{slug}/image", requireSiteAdmin(http.HandlerFunc(toolHandler.UploadImage)))

	// School chat
	mux.Handle("GET /api/chat", requireUser(http.HandlerFunc(chatHandler.List)))
	mux.Handle("POST /api/chat", requireUser(http.HandlerFunc(chatHandler.Post)))

	// Schools
	mux.Handle("POST /api/schools", requireUser(http.HandlerFunc(schoolHandler.Create)))
	mux.Handle("GET /api/schools/{id}", requireUser(http.HandlerFunc(schoolHandler.Get)))
	mux.Handle("POST /api/schools/{id}/join", requireUser(http.HandlerFunc(schoolHandler.Join)))
	mux.Handle("POST /api/schools/leave", requireUser(http.HandlerFunc(schoolHandler.Leave)))
	mux.Handle("GET /api/schools/{id}/members", requireUser(http.HandlerFunc(schoolHandler.Members)))
	mux.Handle("PATCH /api/schools/{id}", requireUser(http.HandlerFunc(schoolHandler.Update)))

	// Billing
	if billingService != nil {
		billingHandler := handler.NewBillingHandler(billingService, userService, logger, cfg.BaseURL)
		webhookHandler := handler.NewWebhookHandler(billingService, userService, logger)

		mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(billingHandler.Checkout)))
		mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(billingHandler.Portal)))
		mux.Handle("POST /api/billing/cancel", requireUser(http.HandlerFunc(billingHandler.Cancel)))
		mux.Handle("POST /api/billing/reactivate", requireUser(http.HandlerFunc(billingHandler.Reactivate)))
		mux.Handle("POST /api/webhooks/stripe", http.HandlerFunc(webhookHandler.HandleStripe))
	}

	// Global middleware, outermost first
	root := middleware.Stack(loggingMw.Handler, metricsMw.Handler, securityMw.Handler)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// scheduleSessionCleanup enqueues the cleanup job once at startup and then
// on an hourly ticker. Duplicate enqueues are harmless; the job is
// idempotent.
func scheduleSessionCleanup(ctx context.Context, repo *repository.Queries, logger *slog.Logger) {
	enqueue := func() {
		_, err := worker.EnqueueJob(ctx, repo, worker.JobTypeSessionCleanup, struct{}{}, worker.WithPriority(worker.PriorityLow))
		if err != nil {
			logger.Error("Failed to enqueue session cleanup", "error", err)
		}
	}

	enqueue()

	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
