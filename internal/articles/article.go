// Package articles is the boundary to the relational source of truth: the
// article model as the search index sees it, a read-only Postgres store
// and the lifecycle events emitted when an article's visibility may change.
package articles

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrArticleNotFound is returned by the store when no row matches.
var ErrArticleNotFound = errors.New("article not found")

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Article is a blog article with the relations the index denormalises.
type Article struct {
	ID              int64
	UUID            uuid.UUID
	Title           string
	Slug            string
	Excerpt         string
	DescriptionHTML string
	Keywords        []string
	Status          Status
	PublishedAt     *time.Time
	DeletedAt       *time.Time
	AuthorID        int64
	AuthorName      string
	TagNames        []string
	TagSlugs        []string
	ViewsCount      int64
	CommentsCount   int64
}

// IsPubliclyVisible reports whether the article is published, its publish
// time has passed and it is not soft-deleted.
func (a *Article) IsPubliclyVisible() bool {
	return a.isVisibleAt(time.Now())
}

func (a *Article) isVisibleAt(now time.Time) bool {
	if a.DeletedAt != nil {
		return false
	}
	if a.Status != StatusPublished || a.PublishedAt == nil {
		return false
	}
	return !a.PublishedAt.After(now)
}

// PublishedUnix returns the publish time in unix seconds, or zero.
func (a *Article) PublishedUnix() int64 {
	if a.PublishedAt == nil {
		return 0
	}
	return a.PublishedAt.Unix()
}
