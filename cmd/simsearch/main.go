package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/config"
	dbRedis "github.com/civium/simsearch/internal/db/redis"
	logpkg "github.com/civium/simsearch/internal/logger"
	"github.com/civium/simsearch/internal/metrics"
	questionrepo "github.com/civium/simsearch/internal/repository/question"
	"github.com/civium/simsearch/internal/repository/respcache"
	statementrepo "github.com/civium/simsearch/internal/repository/statement"
	"github.com/civium/simsearch/internal/transport/httpapi"
	openaiProvider "github.com/civium/simsearch/internal/transport/openai"
	embeddinguc "github.com/civium/simsearch/internal/usecase/embedding"
	healthuc "github.com/civium/simsearch/internal/usecase/health"
	ingestuc "github.com/civium/simsearch/internal/usecase/ingest"
	lexicaluc "github.com/civium/simsearch/internal/usecase/lexical"
	moderationuc "github.com/civium/simsearch/internal/usecase/moderation"
	pipelineuc "github.com/civium/simsearch/internal/usecase/pipeline"
	vectorindexuc "github.com/civium/simsearch/internal/usecase/vectorindex"
	warmupuc "github.com/civium/simsearch/internal/usecase/warmup"
	"github.com/civium/simsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting simsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Provider clients — one OpenAI client shared by embedding, moderation,
	// and generation.
	providerCfg := &openaiProvider.Config{
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		EmbeddingModel:  cfg.Provider.EmbeddingModel,
		Dimensions:      cfg.Provider.EmbeddingDimensions,
		GenerationModel: cfg.Provider.GenerationModel,
		Logger:          logger,
	}
	client := openaiProvider.NewClient(providerCfg)
	embedder := openaiProvider.NewEmbedder(client, providerCfg)
	moderator := openaiProvider.NewModerator(client, logger)
	generator := openaiProvider.NewGenerator(client, providerCfg)

	// Repositories
	cache := respcache.New(store, cfg.Storage.KeyPrefix, logger)
	stmtRepo := statementrepo.New(store, cfg.Storage.KeyPrefix, statementrepo.IndexParams{
		Dimensions:      cfg.Provider.EmbeddingDimensions,
		HNSWM:           cfg.Search.HNSWM,
		HNSWEFConstruct: cfg.Search.HNSWEFConstruct,
	})
	qRepo := questionrepo.New(store, cfg.Storage.KeyPrefix)
	cachedQuestions := questionrepo.NewCached(qRepo, cache,
		time.Duration(cfg.Cache.QuestionTTLMin)*time.Minute)

	if err := stmtRepo.EnsureIndex(ctx); err != nil {
		// The pipeline degrades to exact scans without the index; creation
		// is retried implicitly on next startup.
		logger.Warn("Failed to ensure statement index", zap.Error(err))
	}

	// Use case services
	embedSvc := embeddinguc.New(
		embedder,
		openaiProvider.IsTransient,
		embeddinguc.RetryPolicy{
			MaxAttempts: cfg.Provider.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Provider.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Provider.RetryMaxDelayMs) * time.Millisecond,
		},
		cfg.Provider.BatchSize,
		time.Duration(cfg.Provider.BatchDelayMs)*time.Millisecond,
		logger,
	)
	gate := moderationuc.New(moderator, cfg.Moderation.FailOpen, logger)
	nearest := vectorindexuc.New(stmtRepo, cfg.Search.OverfetchFactor, logger)
	lexical := lexicaluc.New(generator, cfg.Lexical.LegacyTextMode, cfg.Lexical.MaxCandidates, logger)

	pipeline := pipelineuc.New(
		cachedQuestions, stmtRepo, gate, embedSvc, nearest, lexical, generator,
		cache,
		pipelineuc.CacheTTLs{
			Statements:   time.Duration(cfg.Cache.StatementsTTLMin) * time.Minute,
			RawResults:   time.Duration(cfg.Cache.RawResultsTTLMin) * time.Minute,
			FullResponse: time.Duration(cfg.Cache.FullResponseTTLMin) * time.Minute,
		},
		cfg.Search.Limit,
		logger,
	)
	warmer := warmupuc.New(cachedQuestions, stmtRepo, embedSvc, 0, logger)
	ingest := ingestuc.New(qRepo, cachedQuestions, stmtRepo, embedSvc, logger)
	healthSvc := healthuc.New(store, embedder, store, stmtRepo.IndexName())

	server := httpapi.NewServer(pipeline, warmer, healthSvc, ingest, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"ok":    false,
						"error": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
