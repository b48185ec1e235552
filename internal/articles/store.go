package articles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/postgres"
	"github.com/lib/pq"
)

const selectArticle = `
SELECT b.id, b.uuid, b.title, b.slug, b.excerpt, b.description, b.keywords,
       b.status, b.published_at, b.deleted_at, b.author_id, COALESCE(u.name, ''),
       b.views_count, b.comments_count
FROM blogs b
JOIN users u ON u.id = b.author_id`

// Store reads articles and their author/tag relations from PostgreSQL.
//
// It expects the blog schema:
//
//	blogs(id, uuid, title, slug, excerpt, description, keywords JSON, status,
//	      published_at, deleted_at, author_id, views_count, comments_count)
//	users(id, name)
//	tags(id, name, slug)
//	blog_tag(blog_id, tag_id)
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "article-store"),
	}
}

// Get loads one article regardless of visibility, including soft-deleted
// rows, so callers can decide between indexing and removal.
func (s *Store) Get(ctx context.Context, id int64) (*Article, error) {
	var a *Article
	err := s.db.InReadTx(ctx, func(q postgres.Querier) error {
		var err error
		a, err = scanArticle(q.QueryRowContext(ctx, selectArticle+` WHERE b.id = $1`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("article %d: %w", id, ErrArticleNotFound)
		}
		if err != nil {
			return fmt.Errorf("loading article %d: %w", id, err)
		}
		return attachTags(ctx, q, []*Article{a})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListPublished returns up to limit publicly visible articles with id
// greater than afterID, ordered by id. Pass the last id of one page as
// afterID of the next.
func (s *Store) ListPublished(ctx context.Context, afterID int64, limit int) ([]*Article, error) {
	var page []*Article
	err := s.db.InReadTx(ctx, func(q postgres.Querier) error {
		var err error
		if page, err = listPublished(ctx, q, afterID, limit); err != nil {
			return err
		}
		return attachTags(ctx, q, page)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded published page", "after_id", afterID, "count", len(page))
	return page, nil
}

const publiclyVisible = `
WHERE b.status = 'published'
  AND b.published_at IS NOT NULL
  AND b.published_at <= NOW()
  AND b.deleted_at IS NULL`

// CountPublished returns how many articles are publicly visible right now,
// the figure index coverage is measured against.
func (s *Store) CountPublished(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM blogs b JOIN users u ON u.id = b.author_id`+publiclyVisible).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting published articles: %w", err)
	}
	return n, nil
}

func listPublished(ctx context.Context, q postgres.Querier, afterID int64, limit int) ([]*Article, error) {
	rows, err := q.QueryContext(ctx, selectArticle+publiclyVisible+`
  AND b.id > $1
ORDER BY b.id
LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing published articles after %d: %w", afterID, err)
	}
	defer rows.Close()

	page := make([]*Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		page = append(page, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	return page, nil
}

func attachTags(ctx context.Context, q postgres.Querier, page []*Article) error {
	if len(page) == 0 {
		return nil
	}
	ids := make([]int64, len(page))
	byID := make(map[int64]*Article, len(page))
	for i, a := range page {
		ids[i] = a.ID
		byID[a.ID] = a
	}
	rows, err := q.QueryContext(ctx, `
SELECT bt.blog_id, t.name, t.slug
FROM blog_tag bt
JOIN tags t ON t.id = bt.tag_id
WHERE bt.blog_id = ANY($1)
ORDER BY bt.blog_id, t.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("loading tags for %d articles: %w", len(ids), err)
	}
	defer rows.Close()
	for rows.Next() {
		var blogID int64
		var name, slug string
		if err := rows.Scan(&blogID, &name, &slug); err != nil {
			return fmt.Errorf("scanning tag: %w", err)
		}
		if a, ok := byID[blogID]; ok {
			a.TagNames = append(a.TagNames, name)
			a.TagSlugs = append(a.TagSlugs, slug)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a           Article
		keywords    []byte
		status      string
		publishedAt sql.NullTime
		deletedAt   sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.UUID, &a.Title, &a.Slug, &a.Excerpt, &a.DescriptionHTML, &keywords,
		&status, &publishedAt, &deletedAt, &a.AuthorID, &a.AuthorName,
		&a.ViewsCount, &a.CommentsCount,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.PublishedAt = nullTimePtr(publishedAt)
	a.DeletedAt = nullTimePtr(deletedAt)
	a.Keywords, err = decodeKeywords(keywords)
	if err != nil {
		return nil, fmt.Errorf("article %d: %w", a.ID, err)
	}
	return &a, nil
}

// decodeKeywords parses the JSON keywords column. NULL and non-array
// values yield no keywords.
func decodeKeywords(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding keywords: %w", err)
	}
	list, ok := parsed.([]any)
	if !ok {
		return nil, nil
	}
	keywords := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			keywords = append(keywords, s)
		}
	}
	return keywords, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
