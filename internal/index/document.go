package index

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDocumentNotFound is returned when no snapshot exists for an id, either
// because it was never indexed or because it expired.
var ErrDocumentNotFound = errors.New("document not found in index")

// ErrMalformedDocument marks a snapshot whose hash cannot be decoded.
var ErrMalformedDocument = errors.New("malformed document snapshot")

// Document is the denormalised snapshot of one published article. Tags is
// space-joined tag names and TagSlugs comma-joined slugs, matching the
// stored hash.
type Document struct {
	ID            int64
	Title         string
	Excerpt       string
	Description   string
	Keywords      string
	AuthorID      int64
	AuthorName    string
	Tags          string
	TagSlugs      string
	PublishedAt   int64
	ViewsCount    int64
	CommentsCount int64
	Slug          string
	UUID          string
}

// Hash field names.
const (
	fieldID            = "id"
	fieldTitle         = "title"
	fieldExcerpt       = "excerpt"
	fieldDescription   = "description"
	fieldKeywords      = "keywords"
	fieldAuthorID      = "author_id"
	fieldAuthorName    = "author_name"
	fieldTags          = "tags"
	fieldTagSlugs      = "tag_slugs"
	fieldPublishedAt   = "published_at"
	fieldViewsCount    = "views_count"
	fieldCommentsCount = "comments_count"
	fieldSlug          = "slug"
	fieldUUID          = "uuid"
)

// IndexableText is the text whose terms the document is filed under.
func (d Document) IndexableText() string {
	return strings.Join([]string{d.Title, d.Excerpt, d.Description, d.Keywords}, " ")
}

// TagNames splits the stored tag names.
func (d Document) TagNames() []string {
	return strings.Fields(d.Tags)
}

// Slugs splits the stored tag slugs, skipping empty entries.
func (d Document) Slugs() []string {
	if d.TagSlugs == "" {
		return nil
	}
	parts := strings.Split(d.TagSlugs, ",")
	slugs := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			slugs = append(slugs, p)
		}
	}
	return slugs
}

func (d Document) fields() map[string]string {
	return map[string]string{
		fieldID:            FormatID(d.ID),
		fieldTitle:         d.Title,
		fieldExcerpt:       d.Excerpt,
		fieldDescription:   d.Description,
		fieldKeywords:      d.Keywords,
		fieldAuthorID:      FormatID(d.AuthorID),
		fieldAuthorName:    d.AuthorName,
		fieldTags:          d.Tags,
		fieldTagSlugs:      d.TagSlugs,
		fieldPublishedAt:   strconv.FormatInt(d.PublishedAt, 10),
		fieldViewsCount:    strconv.FormatInt(d.ViewsCount, 10),
		fieldCommentsCount: strconv.FormatInt(d.CommentsCount, 10),
		fieldSlug:          d.Slug,
		fieldUUID:          d.UUID,
	}
}

// decodeDocument rebuilds a Document from its hash. Missing text fields
// decode as empty; the numeric fields must parse.
func decodeDocument(h map[string]string) (Document, error) {
	if len(h) == 0 {
		return Document{}, ErrDocumentNotFound
	}
	d := Document{
		Title:       h[fieldTitle],
		Excerpt:     h[fieldExcerpt],
		Description: h[fieldDescription],
		Keywords:    h[fieldKeywords],
		AuthorName:  h[fieldAuthorName],
		Tags:        h[fieldTags],
		TagSlugs:    h[fieldTagSlugs],
		Slug:        h[fieldSlug],
		UUID:        h[fieldUUID],
	}
	ints := []struct {
		field    string
		dst      *int64
		required bool
	}{
		{fieldID, &d.ID, true},
		{fieldAuthorID, &d.AuthorID, false},
		{fieldPublishedAt, &d.PublishedAt, true},
		{fieldViewsCount, &d.ViewsCount, false},
		{fieldCommentsCount, &d.CommentsCount, false},
	}
	for _, f := range ints {
		raw, ok := h[f.field]
		if !ok || raw == "" {
			if f.required {
				return Document{}, fmt.Errorf("%w: missing field %q", ErrMalformedDocument, f.field)
			}
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Document{}, fmt.Errorf("%w: field %q: %v", ErrMalformedDocument, f.field, err)
		}
		*f.dst = v
	}
	return d, nil
}
