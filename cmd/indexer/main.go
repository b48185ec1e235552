package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/article-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	rebuildFirst := flag.Bool("rebuild", false, "rebuild the whole index before consuming events")
	migrate := flag.Bool("migrate", false, "create the article tables if missing (local development)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "namespace", cfg.Search.Namespace)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "indexer")
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

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrate {
		if err := articles.Migrate(ctx, db); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		slog.Info("article schema ready")
	}

	source := articles.NewStore(db)
	ix := indexer.New(store, cfg.Search, m)

	if *rebuildFirst {
		manager := lifecycle.New(store, ix, source, lifecycle.Options{
			BatchSize: cfg.Search.RebuildBatchSize,
			Retry: resilience.RetryConfig{
				MaxAttempts:    5,
				InitialDelay:   500 * time.Millisecond,
				MaxDelay:       10 * time.Second,
				Multiplier:     2,
				JitterFraction: 0.2,
			},
		}, m)
		report, err := manager.Run(ctx)
		if err != nil {
			slog.Error("initial rebuild failed", "error", err)
			os.Exit(1)
		}
		slog.Info("initial rebuild complete",
			"indexed", report.Indexed,
			"failed", report.Failed,
			"duration", report.Duration,
		)
	}

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.ArticleLifecycle,
		consumer.HandleMessage(ix, source, m),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.ArticleLifecycle,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("indexer service stopped")
}
