// Package postgres opens the pooled lib/pq connection to the article
// database and runs work inside transactions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	_ "github.com/lib/pq"
)

// Querier is what both *sql.DB and *sql.Tx offer for reads, so a store can
// run the same query code in or out of a transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Client struct {
	DB     *sql.DB
	target string
}

// New opens the pool and pings the database before returning.
func New(cfg config.PostgresConfig) (*Client, error) {
	target := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening article database %s: %w", target, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging article database %s: %w", target, err)
	}
	slog.Default().Info("connected to article database",
		"component", "postgres",
		"target", target,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return &Client{DB: db, target: target}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping checks the connection, used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("article database %s: %w", c.target, err)
	}
	return nil
}

// InTx runs fn in a read-write transaction, committing when fn returns nil.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return c.inTx(ctx, nil, fn)
}

// InReadTx runs fn in a read-only repeatable-read transaction, so several
// queries (an article page and its tags) see one snapshot.
func (c *Client) InReadTx(ctx context.Context, fn func(q Querier) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return c.inTx(ctx, opts, func(tx *sql.Tx) error { return fn(tx) })
}

func (c *Client) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning transaction on %s: %w", c.target, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction on %s: %w", c.target, err)
	}
	return nil
}
