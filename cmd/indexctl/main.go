// Command indexctl runs one-off maintenance against the search index:
// full rebuilds, clearing a namespace, re-indexing or removing a single
// article, reporting index coverage, and enqueueing lifecycle events for
// the indexer service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/article-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

const usage = `usage: indexctl [-config path] <command> [flags]

commands:
  rebuild              clear the namespace and index every visible article
  clear                delete every key in the namespace
  reindex -id N        reload one article and index or remove it
  remove -id N         detach one article from the index
  stats                count keys per index family and coverage of published articles
  notify -type T -id N publish a lifecycle event for the indexer service
`

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	id := fs.Int64("id", 0, "article id")
	eventType := fs.String("type", "", "lifecycle event type (notify only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "notify":
		if *id <= 0 {
			return errors.New("notify requires -id")
		}
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ArticleLifecycle)
		defer producer.Close()
		return articles.NewNotifier(producer).Notify(ctx, articles.EventType(*eventType), *id)
	case "rebuild", "clear", "reindex", "remove", "stats":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if (cmd == "reindex" || cmd == "remove") && *id <= 0 {
		return fmt.Errorf("%s requires -id", cmd)
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	store, err := index.New(redisClient, cfg.Search.Namespace, cfg.Search.TTL)
	if err != nil {
		return err
	}
	// A private registry keeps the collectors off the default one; nothing
	// scrapes a short-lived command.
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	ix := indexer.New(store, cfg.Search, m)

	switch cmd {
	case "clear":
		n, err := store.Clear(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"status": "cleared", "keys": n})
	case "remove":
		if !ix.RemoveDocument(ctx, *id) {
			return fmt.Errorf("removing article %d failed", *id)
		}
		return printJSON(map[string]any{"id": *id, "status": "removed"})
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	source := articles.NewStore(db)

	if cmd == "stats" {
		return printStats(ctx, store, source)
	}

	if cmd == "reindex" {
		article, err := source.Get(ctx, *id)
		if errors.Is(err, articles.ErrArticleNotFound) {
			ix.RemoveDocument(ctx, *id)
			return printJSON(map[string]any{"id": *id, "status": "removed"})
		}
		if err != nil {
			return err
		}
		if !ix.IndexDocument(ctx, article) {
			return fmt.Errorf("indexing article %d failed", *id)
		}
		status := "indexed"
		if !article.IsPubliclyVisible() {
			status = "removed"
		}
		return printJSON(map[string]any{"id": *id, "status": status})
	}

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
		return err
	}
	return printJSON(report)
}

func printStats(ctx context.Context, store *index.Store, source *articles.Store) error {
	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	published, err := source.CountPublished(ctx)
	if err != nil {
		return err
	}
	var coverage float64
	if published > 0 {
		coverage = math.Round(float64(st.Documents)/float64(published)*10000) / 100
	}
	return printJSON(struct {
		index.Stats
		Published       int64   `json:"published"`
		CoveragePercent float64 `json:"coverage_percent"`
	}{st, published, coverage})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
