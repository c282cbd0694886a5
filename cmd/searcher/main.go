// Command searcher serves boolean queries over the browsing history.
//
// On start it rebuilds the head and body indexes from the postgres history,
// then keeps them current from the page-visits kafka topic. Queries arrive
// on GET /api/v1/search in prefix or infix form; results are cached in
// redis when it is reachable and every query is reported to the
// search-events topic.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/history"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "default_mode", cfg.Search.DefaultMode)

	defaultMode, err := parser.ParseMode(cfg.Search.DefaultMode)
	if err != nil {
		slog.Error("invalid default query mode", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	engine := indexer.NewEngine(m)
	checker := health.NewChecker()

	if cfg.Indexer.ReplayHistory {
		db, err := postgres.Open(ctx, cfg.Postgres, resilience.DefaultRetryConfig())
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		checker.Register("postgres", false, db.Ping)

		if err := replayHistory(ctx, history.NewStore(db), engine, cfg.Indexer.ReplayBatchSize); err != nil {
			slog.Error("history replay failed", "error", err)
			os.Exit(1)
		}
	}

	pageConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PageVisits, consumer.HandleMessage(engine))
	go func() {
		if err := pageConsumer.Run(ctx); err != nil {
			slog.Error("page consumer stopped", "error", err)
		}
	}()
	slog.Info("page consumer started", "topic", cfg.Kafka.Topics.PageVisits)

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis, resilience.RetryConfig{MaxAttempts: 2})
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		checker.Register("redis", false, redisClient.Ping)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
	defer eventsProducer.Close()
	collector := analytics.NewCollector(eventsProducer, 10000, 100, time.Second)
	collector.Start(ctx)
	defer collector.Close()

	aggregator := analytics.NewAggregator()
	eventsCfg := cfg.Kafka
	eventsCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"
	eventsConsumer := kafka.NewConsumer(eventsCfg, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := eventsConsumer.Run(ctx); err != nil {
			slog.Error("search events consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics started", "topic", cfg.Kafka.Topics.SearchEvents)

	checker.Register("index", true, func(context.Context) error {
		if ctx.Err() != nil {
			return errors.New("shutting down")
		}
		return nil
	})

	exec := executor.New(engine.Head(), engine.Body(), m)
	h := handler.New(exec, engine, queryCache, collector, handler.Options{
		DefaultMode:    defaultMode,
		MaxQueryLength: cfg.Search.MaxQueryLength,
	})
	analyticsH := analytics.NewHandler(aggregator)

	routes := []string{
		"/api/v1/search",
		"/api/v1/documents",
		"/api/v1/index/stats",
		"/api/v1/cache/stats",
		"/api/v1/cache/invalidate",
		"/api/v1/analytics",
		"/health/live",
		"/health/ready",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/documents", h.BuildDocument)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.HandlerTimeout)(chain)
	chain = middleware.Metrics(m, routes...)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// replayHistory rebuilds both indexes from every recorded visit. Migrate
// runs first so a fresh database replays nothing instead of failing.
func replayHistory(ctx context.Context, store *history.Store, engine *indexer.Engine, batchSize int) error {
	start := time.Now()
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	err := resilience.Retry(ctx, "history-replay", resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		if engine.Generation() > 0 {
			// a previous attempt got part way; re-adding is harmless
			slog.Warn("retrying history replay over a partially built index")
		}
		_, err := store.Replay(ctx, batchSize, func(v history.Visit) error {
			return engine.BuildDocument(ctx, indexer.Document{
				ID:        v.DocumentID,
				HeadTerms: v.HeadTerms,
				BodyTerms: v.BodyTerms,
				Source:    indexer.SourceHistory,
			})
		})
		return err
	})
	if err != nil {
		return err
	}
	stats := engine.Stats()
	slog.Info("history replayed",
		"visits", stats.Generation,
		"head_terms", stats.Head.Terms,
		"body_terms", stats.Body.Terms,
		"duration", time.Since(start),
	)
	return nil
}
