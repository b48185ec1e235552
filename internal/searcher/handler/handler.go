// Package handler exposes the search index over HTTP: queries, tag and
// author listings, autocomplete, and the administrative reindex, remove,
// rebuild and clear operations.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/articles"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/suggest"
	apperrors "github.com/Adithya-Monish-Kumar-K/article-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/middleware"
)

const maxQueryLength = 256

type Searcher interface {
	SearchWithOutcome(ctx context.Context, query string, filters resolver.Filters, limit int) ([]resolver.Result, resolver.Outcome)
	SearchByTag(ctx context.Context, slug string, limit int) []resolver.Result
	SearchByAuthor(ctx context.Context, authorID int64, limit int) []resolver.Result
}

type Suggester interface {
	Suggest(ctx context.Context, prefix string, limit int) []suggest.Suggestion
}

type Indexer interface {
	IndexDocument(ctx context.Context, a *articles.Article) bool
	RemoveDocument(ctx context.Context, id int64) bool
}

type ArticleSource interface {
	Get(ctx context.Context, id int64) (*articles.Article, error)
}

type Lifecycle interface {
	Run(ctx context.Context) (lifecycle.Report, error)
	Clear(ctx context.Context) bool
}

// Tracker receives one analytics event per query.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Deps wires the handler. Source, Indexer and Lifecycle may be nil, which
// disables the admin routes that need them. Tracker may be nil.
type Deps struct {
	Searcher  Searcher
	Suggester Suggester
	Indexer   Indexer
	Source    ArticleSource
	Lifecycle Lifecycle
	Tracker   Tracker
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		deps:   deps,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search/tags/{slug}", h.ByTag)
	mux.HandleFunc("GET /api/v1/search/authors/{id}", h.ByAuthor)
	mux.HandleFunc("GET /api/v1/search/suggestions", h.Suggestions)
	mux.HandleFunc("POST /api/v1/search/articles/{id}/reindex", h.Reindex)
	mux.HandleFunc("DELETE /api/v1/search/articles/{id}", h.Remove)
	mux.HandleFunc("POST /api/v1/search/rebuild", h.Rebuild)
	mux.HandleFunc("POST /api/v1/search/clear", h.Clear)
}

type searchResponse struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Results []resolver.Result `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("q"))
	if utf8.RuneCountInString(query) > maxQueryLength {
		h.writeError(w, r, apperrors.Invalid("query must be at most %d characters", maxQueryLength))
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filters := resolver.Filters{Tags: splitList(q.Get("tags"))}
	if raw := q.Get("author"); raw != "" {
		if filters.AuthorID, err = parseID("author", raw); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	results, outcome := h.deps.Searcher.SearchWithOutcome(ctx, query, filters, limit)
	h.track(ctx, analytics.SearchEvent{
		Kind:      outcome.Kind,
		Query:     query,
		Terms:     outcome.Terms,
		Tags:      filters.Tags,
		AuthorID:  filters.AuthorID,
		Returned:  len(results),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	logger.FromContext(ctx).Info("search completed",
		"kind", outcome.Kind,
		"query", query,
		"returned", len(results),
		"latency", time.Since(start),
	)
	h.writeJSON(w, http.StatusOK, searchResponse{Query: query, Count: len(results), Results: results})
}

func (h *Handler) ByTag(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug := strings.TrimSpace(r.PathValue("slug"))
	if slug == "" {
		h.writeError(w, r, apperrors.Invalid("tag slug is required"))
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results := h.deps.Searcher.SearchByTag(r.Context(), slug, limit)
	h.track(r.Context(), analytics.SearchEvent{
		Kind:      resolver.KindTag,
		Tags:      []string{slug},
		Returned:  len(results),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	h.writeJSON(w, http.StatusOK, searchResponse{Count: len(results), Results: results})
}

func (h *Handler) ByAuthor(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	authorID, err := parseID("author id", r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results := h.deps.Searcher.SearchByAuthor(r.Context(), authorID, limit)
	h.track(r.Context(), analytics.SearchEvent{
		Kind:      resolver.KindAuthor,
		AuthorID:  authorID,
		Returned:  len(results),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	h.writeJSON(w, http.StatusOK, searchResponse{Count: len(results), Results: results})
}

func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := strings.TrimSpace(q.Get("q"))
	if utf8.RuneCountInString(prefix) > maxQueryLength {
		h.writeError(w, r, apperrors.Invalid("prefix must be at most %d characters", maxQueryLength))
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":       prefix,
		"suggestions": h.deps.Suggester.Suggest(r.Context(), prefix, limit),
	})
}

// Reindex reloads one article from the source of truth and files it again.
// An article that no longer exists is removed from the index and reported
// as not found.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.deps.Source == nil || h.deps.Indexer == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "reindexing is not configured"))
		return
	}
	ctx := r.Context()
	id, err := parseID("article id", r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	article, err := h.deps.Source.Get(ctx, id)
	if errors.Is(err, articles.ErrArticleNotFound) {
		h.deps.Indexer.RemoveDocument(ctx, id)
		h.writeError(w, r, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "article %d not found", id))
		return
	}
	if err != nil {
		logger.FromContext(ctx).Error("loading article for reindex failed", "article_id", id, "error", err)
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "article store unavailable"))
		return
	}

	if !h.deps.Indexer.IndexDocument(ctx, article) {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "index write failed"))
		return
	}
	status := "indexed"
	if !article.IsPubliclyVisible() {
		status = "removed"
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	if h.deps.Indexer == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "index writes are not configured"))
		return
	}
	id, err := parseID("article id", r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !h.deps.Indexer.RemoveDocument(r.Context(), id) {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "index write failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "removed"})
}

// Rebuild starts a full rebuild that outlives the request and answers 202.
// With ?wait=true it blocks and returns the report.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.deps.Lifecycle == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "rebuild is not configured"))
		return
	}
	ctx := context.WithoutCancel(r.Context())
	log := logger.FromContext(ctx)

	if r.URL.Query().Get("wait") != "true" {
		go func() {
			if _, err := h.deps.Lifecycle.Run(ctx); err != nil {
				log.Error("background rebuild failed", "error", err)
			}
		}()
		h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
		return
	}

	report, err := h.deps.Lifecycle.Run(ctx)
	if err != nil {
		log.Error("rebuild failed", "error", err)
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "rebuild failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.deps.Lifecycle == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "clear is not configured"))
		return
	}
	if !h.deps.Lifecycle.Clear(r.Context()) {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "clear failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) track(ctx context.Context, event analytics.SearchEvent) {
	if h.deps.Tracker == nil {
		return
	}
	event.ZeroResult = event.Returned == 0
	event.RequestID = middleware.GetRequestID(ctx)
	event.Timestamp = time.Now().UTC()
	h.deps.Tracker.Track(event)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Warn("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": apperrors.Message(err)})
}

// parseLimit accepts an empty value, meaning the default.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Invalid("limit must be a positive integer")
	}
	return n, nil
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.Invalid("%s must be a positive integer", name)
	}
	return id, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
