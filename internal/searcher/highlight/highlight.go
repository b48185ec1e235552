// Package highlight marks query terms inside display text.
package highlight

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/indexer/tokenizer"
)

const (
	OpenTag  = `<mark class="search-highlight">`
	CloseTag = `</mark>`
)

// Highlight wraps every case-insensitive whole-word occurrence of a query
// term in text with a mark element. All terms are matched in one pass, so
// inserted markup is never matched again.
func Highlight(text, query string) string {
	if text == "" {
		return text
	}
	re := Compile(query)
	if re == nil {
		return text
	}
	return Apply(re, text)
}

// Compile builds the matcher for query, or nil when query has no terms.
// Longer terms come first so a term never shadows a longer one it
// prefixes.
func Compile(query string) *regexp.Regexp {
	terms := tokenizer.ExtractTerms(query)
	if len(terms) == 0 {
		return nil
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return utf8.RuneCountInString(terms[i]) > utf8.RuneCountInString(terms[j])
	})
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// Apply highlights matches of re in text. Matches touching a word rune on
// either side are left alone.
func Apply(re *regexp.Regexp, text string) string {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(matches)*(len(OpenTag)+len(CloseTag)))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if !atBoundary(text, start, end) {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(OpenTag)
		b.WriteString(text[start:end])
		b.WriteString(CloseTag)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func atBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
