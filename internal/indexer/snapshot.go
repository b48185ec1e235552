package indexer

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/tokenizer"
	"github.com/google/uuid"
)

// Snapshot denormalises an article into the document stored in the index.
// The description is stored as plain text.
func Snapshot(a *articles.Article) index.Document {
	doc := index.Document{
		ID:            a.ID,
		Title:         a.Title,
		Excerpt:       a.Excerpt,
		Description:   strings.Join(strings.Fields(tokenizer.StripTags(a.DescriptionHTML)), " "),
		Keywords:      strings.Join(a.Keywords, " "),
		AuthorID:      a.AuthorID,
		AuthorName:    a.AuthorName,
		Tags:          strings.Join(a.TagNames, " "),
		TagSlugs:      strings.Join(a.TagSlugs, ","),
		PublishedAt:   a.PublishedUnix(),
		ViewsCount:    a.ViewsCount,
		CommentsCount: a.CommentsCount,
		Slug:          a.Slug,
	}
	if a.UUID != uuid.Nil {
		doc.UUID = a.UUID.String()
	}
	return doc
}
