// Package tokenizer normalises free text into indexable terms. The same
// extraction runs on article text at index time and on queries at search
// time, so both sides always agree on what a term looks like.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MinTermLength is the shortest term, in runes, that gets indexed.
const MinTermLength = 2

// ExtractTerms lower-cases text, strips markup, turns every non-word rune
// into a separator and returns the distinct terms of at least MinTermLength
// runes in order of first occurrence.
func ExtractTerms(text string) []string {
	cleaned := Sanitize(StripTags(text))
	words := strings.Fields(cleaned)
	terms := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < MinTermLength {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, word)
	}
	return terms
}

// Sanitize lower-cases s, replaces every rune that is neither a word rune nor
// whitespace with a space and trims the result.
func Sanitize(s string) string {
	s = strings.ToLower(s)
	mapped := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	return strings.TrimSpace(mapped)
}

// StripTags removes markup from s and returns its text content with
// entities decoded. Tags become spaces so adjacent blocks do not fuse into
// one word. Script and style bodies are dropped.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	b.Grow(len(s))
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) {
				skipDepth++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func isRawTextTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
