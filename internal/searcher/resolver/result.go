package resolver

import (
	"regexp"
	"time"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/highlight"
)

// Result is one hydrated hit, ready for display.
type Result struct {
	ID                 int64     `json:"id"`
	UUID               string    `json:"uuid"`
	Slug               string    `json:"slug"`
	Title              string    `json:"title"`
	HighlightedTitle   string    `json:"highlighted_title"`
	Excerpt            string    `json:"excerpt"`
	HighlightedExcerpt string    `json:"highlighted_excerpt"`
	AuthorID           int64     `json:"author_id"`
	AuthorName         string    `json:"author_name"`
	Tags               []string  `json:"tags"`
	PublishedAt        time.Time `json:"published_at"`
	ViewsCount         int64     `json:"views_count"`
	CommentsCount      int64     `json:"comments_count"`
}

func newResult(doc index.Document, marker *regexp.Regexp) Result {
	tags := doc.TagNames()
	if tags == nil {
		tags = []string{}
	}
	r := Result{
		ID:                 doc.ID,
		UUID:               doc.UUID,
		Slug:               doc.Slug,
		Title:              doc.Title,
		HighlightedTitle:   doc.Title,
		Excerpt:            doc.Excerpt,
		HighlightedExcerpt: doc.Excerpt,
		AuthorID:           doc.AuthorID,
		AuthorName:         doc.AuthorName,
		Tags:               tags,
		PublishedAt:        time.Unix(doc.PublishedAt, 0).UTC(),
		ViewsCount:         doc.ViewsCount,
		CommentsCount:      doc.CommentsCount,
	}
	if marker != nil {
		r.HighlightedTitle = highlight.Apply(marker, doc.Title)
		r.HighlightedExcerpt = highlight.Apply(marker, doc.Excerpt)
	}
	return r
}
