package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/infra/adapters/embedding"
	pg "document-ai-pipeline/internal/infra/db/postgres"
	"document-ai-pipeline/internal/infra/logging"
	"document-ai-pipeline/internal/infra/metrics"
	"document-ai-pipeline/internal/infra/parser"
	red "document-ai-pipeline/internal/infra/redis"
	"document-ai-pipeline/internal/infra/sched"
	"document-ai-pipeline/internal/infra/storage"
	"document-ai-pipeline/internal/infra/web"
	"document-ai-pipeline/internal/infra/worker"
	"document-ai-pipeline/internal/queue"
	"document-ai-pipeline/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, no-op embedder without an API key")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		log.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// ---- Redis (optional: cache and rate limiting degrade gracefully) ----
	var queryCache usecase.QueryVectorCache
	var rateLimiter web.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()
		queryCache = red.NewEmbeddingCache(redisClient, cfg.Redis.TTL)
		rateLimiter = red.NewRateLimiter(redisClient)
	} else {
		log.Warn().Msg("redis not configured: query cache and rate limiting disabled")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	docRepo := pg.NewDocumentRepo(pool)
	chunkRepo := pg.NewChunkRepo(pool)

	// ---- Queue ----
	q := queue.New(jobRepo, cfg.Queue.RetryLimit, cfg.Queue.RetryBase, log)

	// ---- File store ----
	store, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		log.Fatal().Err(err).Str("root", cfg.Storage.Root).Msg("file store init failed")
	}

	// ---- Embedder ----
	var embedder adapter.Embedder
	if cfg.Embeddings.OpenAIKey != "" {
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embeddings, log)
		if err != nil {
			log.Fatal().Err(err).Msg("embedder init failed")
		}
		log.Info().Str("model", cfg.Embeddings.Model).Int("dimension", cfg.Embeddings.Dimension).
			Msg("embeddings: OpenAI")
	} else if cfg.Runtime.Dev {
		embedder = embedding.NewNoopEmbedder(cfg.Embeddings.Dimension)
		log.Warn().Msg("embeddings: no API key, using deterministic no-op embedder")
	} else {
		log.Fatal().Msg("embeddings.openai_key is required (or OPENAI_API_KEY, or run with --dev)")
	}
	embedder = embedding.NewLimitedEmbedder(embedder, cfg.Embeddings.ConcurrentLimit)

	// ---- Parser ----
	parserSvc := parser.NewService(cfg.Parser, log)

	// ---- Use cases ----
	docUC := usecase.NewDocumentUseCase(docRepo, store, q, log)
	searchUC := usecase.NewSearchUseCase(chunkRepo, embedder, queryCache,
		cfg.Search.DefaultTopK, cfg.Search.MaxTopK, log)
	parseUC := usecase.NewParseUseCase(docRepo, chunkRepo, store, parserSvc, log)
	embedUC := usecase.NewEmbedUseCase(docRepo, chunkRepo, embedder, log)
	analyzeUC := usecase.NewAnalyzeUseCase(docRepo, chunkRepo, log)

	// ---- Workers ----
	workerPool := worker.NewPool(cfg.Queue.Workers, log)
	dispatcher := worker.NewDispatcher(q, tm, workerPool, cfg.Queue.PollInterval, log)
	dispatcher.Register(parseUC)
	dispatcher.Register(embedUC)
	dispatcher.Register(analyzeUC)

	workerPool.Start(ctx)
	dispatcher.Start(ctx)

	// ---- Expiry sweeper ----
	sweeper := sched.NewSweeper(cfg.Queue.SweepInterval, cfg.Queue.ActiveTTL, q, log)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(docUC, searchUC, q, rateLimiter, cfg.Search, cfg.Server.APIKey, log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info().Msg("shutdown requested")

	// Stop claiming first, then drain in-flight handlers; jobs still running
	// past the grace period are reset to retry without consuming an attempt.
	cancel()
	dispatcher.Shutdown(cfg.Queue.ShutdownGrace)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Queue.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	log.Info().Msg("shutdown complete")
}
