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

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/suggest"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/article-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "namespace", cfg.Search.Namespace)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "searcher")
		defer shutdownMetrics(context.Background())
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	store, err := index.New(redisClient, cfg.Search.Namespace, cfg.Search.TTL)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}

	breaker := resilience.NewCircuitBreaker("redis-read", resilience.CircuitBreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        10 * time.Second,
		HalfOpenMaxRequests: 2,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	})
	m.CircuitBreakerState.WithLabelValues("redis-read").Set(float64(resilience.StateClosed))

	ix := indexer.New(store, cfg.Search, m)
	deps := handler.Deps{
		Searcher:  resolver.New(store, breaker, cfg.Search, m),
		Suggester: suggest.New(store, breaker, cfg.Search.SuggestionLimit, m),
		Indexer:   ix,
	}

	checker := health.NewChecker()
	checker.RegisterPing("redis", redisClient.Ping, true)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, reindex and rebuild disabled", "error", err)
	} else {
		defer db.Close()
		source := articles.NewStore(db)
		deps.Source = source
		deps.Lifecycle = lifecycle.New(store, ix, source, lifecycle.Options{
			BatchSize: cfg.Search.RebuildBatchSize,
			Retry: resilience.RetryConfig{
				MaxAttempts:    3,
				InitialDelay:   200 * time.Millisecond,
				MaxDelay:       5 * time.Second,
				Multiplier:     2,
				JitterFraction: 0.2,
			},
		}, m)
		checker.RegisterPing("postgres", db.Ping, false)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchAnalytics)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, cfg.Search.AnalyticsBuffer, 100, 5*time.Second)
	collector.Start(ctx)
	defer collector.Close()
	deps.Tracker = collector
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.SearchAnalytics)

	mux := http.NewServeMux()
	handler.New(deps).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)
	chain = middleware.CORS(cfg.Server.AllowOrigins, 86400)(chain)
	chain = middleware.Metrics(m)(chain)

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
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped", "analytics_dropped", collector.Dropped())
}
