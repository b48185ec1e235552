package index

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keys builds the namespaced key names of every index structure.
type Keys struct {
	ns string
}

func NewKeys(namespace string) Keys {
	return Keys{ns: namespace}
}

func (k Keys) Namespace() string { return k.ns }

// Document is the hash holding one article snapshot.
func (k Keys) Document(id int64) string {
	return k.ns + ":blogs:" + FormatID(id)
}

func (k Keys) Term(term string) string {
	return k.ns + ":terms:" + strings.ToLower(term)
}

func (k Keys) Tag(slug string) string {
	return k.ns + ":tags:" + slug
}

func (k Keys) Author(authorID int64) string {
	return k.ns + ":authors:" + FormatID(authorID)
}

// Suggestions is the frequency bucket for every term sharing term's first
// rune.
func (k Keys) Suggestions(term string) string {
	return k.ns + ":suggestions:" + FirstRune(term)
}

func (k Keys) Recent() string {
	return k.ns + ":recent"
}

// Pattern matches every key under the namespace.
func (k Keys) Pattern() string {
	return k.ns + ":*"
}

// FamilyPattern matches every key of one family, e.g. "terms".
func (k Keys) FamilyPattern(family string) string {
	return k.ns + ":" + family + ":*"
}

// FirstRune returns the lower-cased first rune of s, or "" for an empty
// string.
func FirstRune(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return string(unicode.ToLower(r))
}

// FormatID renders a document or author id as a posting member.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func ParseID(member string) (int64, error) {
	return strconv.ParseInt(member, 10, 64)
}
