// ResponseReady API
// Emergency response dashboard backend: incidents, records, comms and live streams.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"responseready/auth"
	"responseready/config"
	"responseready/db"
	"responseready/handlers"
	"responseready/intel"
	"responseready/logging"
	"responseready/middleware"
	"responseready/realtime"
	"responseready/service"
	"responseready/session"

	firebase "firebase.google.com/go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	if envErr != nil {
		logger.Warn().Msg("⚠️  No .env file found, using system environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("❌ Invalid configuration")
	}

	logger.Info().
		Str("environment", cfg.Server.Environment).
		Str("backend", cfg.Store.Backend).
		Str("auth_mode", cfg.Auth.Mode).
		Msg("🚀 Starting ResponseReady API Server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record store
	var (
		store db.Store
		app   *firebase.App
		err   error
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		store = db.NewMemoryDB()
		logger.Warn().Msg("⚠️  Using the in-memory record store; data is lost on restart")
	default:
		app, err = db.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("❌ Failed to initialize Firebase")
		}
		store, err = db.NewFirestoreDB(ctx, app, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("❌ Failed to initialize Firestore")
		}
	}
	defer store.Close()

	// Sessions
	var sessions *session.Provider
	switch cfg.Auth.Mode {
	case config.AuthFirebase:
		verifier, err := auth.NewFirebaseVerifier(ctx, app)
		if err != nil {
			logger.Fatal().Err(err).Msg("❌ Failed to initialize Firebase Authentication")
		}
		sessions = session.NewExternal(store, verifier, logger)
		logger.Info().Msg("🔐 Identities managed by Firebase Authentication")
	default:
		jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
		sessions = session.NewLocal(store, jwtManager, auth.NewHasher(cfg.Auth.BcryptCost), logger)
		logger.Info().Dur("expiration", cfg.JWT.Expiration).Msg("🔐 JWT Manager initialized")
	}

	// Optional daily report quota
	var quota middleware.ReportQuota
	if cfg.Redis.Address != "" {
		client, err := middleware.ConnectRedis(ctx, cfg.Redis.Address, cfg.Redis.Password)
		if err != nil {
			logger.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("❌ Failed to connect to redis")
		}
		defer client.Close()
		quota = middleware.NewRedisReportQuota(client, cfg.Redis.ReportDailyLimit)
		logger.Info().Int("limit", cfg.Redis.ReportDailyLimit).Msg("🧮 Report quota enabled")
	}

	// Radio analysis
	intelClient := intel.NewClient(cfg.Intel.Endpoint, cfg.Intel.SpeechEndpoint, cfg.Intel.APIKey, cfg.Intel.Timeout)
	var analyzer intel.Analyzer = intel.KeywordAnalyzer{}
	if cfg.Intel.Endpoint != "" {
		analyzer = intelClient
		logger.Info().Str("endpoint", cfg.Intel.Endpoint).Msg("🧠 Remote summarization enabled")
	}

	registry := realtime.NewRegistry(logger)
	svc := service.New(store, sessions, logger)

	router := handlers.NewRouter(handlers.Deps{
		Sessions:       sessions,
		Service:        svc,
		Registry:       registry,
		Analyzer:       analyzer,
		Speech:         intelClient,
		Quota:          quota,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})
	logger.Info().Msg("✅ Handlers initialized")

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.CleanupOldLimiters(ctx, 5*time.Minute)
	logger.Info().Int("requests", cfg.RateLimit.Requests).Dur("window", cfg.RateLimit.Window).Msg("🛡️  Rate limiter initialized")

	// Apply global middleware
	var handler http.Handler = router
	handler = middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(handler)
	handler = rateLimiter.Middleware()(handler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("✅ Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("❌ Server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdown(server, registry, logger)
}

func shutdown(server *http.Server, registry *realtime.Registry, logger zerolog.Logger) {
	logger.Info().Int("subscriptions", registry.Active()).Msg("🛑 Shutting down server...")

	// Hijacked stream connections are invisible to Shutdown.
	registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("❌ Server forced to shutdown")
	}

	logger.Info().Msg("✅ Server stopped gracefully")
}
