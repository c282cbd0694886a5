// Command ingestion accepts page visits from the browser.
//
// POST /api/v1/pages takes a document id with either the page HTML or its
// head and body word lists. Each visit is written to the postgres browsing
// history and published to the page-visits kafka topic, where the search
// service picks it up.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/ingestion.yaml]
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/history"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/ingestion.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Ingestion.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres, resilience.DefaultRetryConfig())
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := history.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to migrate history schema", "error", err)
		os.Exit(1)
	}
	slog.Info("browsing history ready")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageVisits)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.PageVisits)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	pub := publisher.New(store, producer, m)
	h := handler.New(pub, cfg.Ingestion.MaxHTMLBytes)

	checker := health.NewChecker()
	checker.Register("postgres", true, db.Ping)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/pages", h.Ingest)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RateLimit(middleware.NewClientLimiter(cfg.Ingestion.RateLimit, cfg.Ingestion.RateBurst))(chain)
	chain = middleware.Timeout(cfg.Server.HandlerTimeout)(chain)
	chain = middleware.Metrics(m, "/api/v1/pages", "/health/live", "/health/ready")(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Ingestion.Port),
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

	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
