// Package textproc produces a single canonical string per entity for the embedding
// generator. Pure functions: no I/O, no randomness.
package textproc

import (
	"regexp"
	"sort"
	"strings"
)

const maxLen = 2048

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
var whitespacePattern = regexp.MustCompile(`\s+`)

// Fields carries the free-text fields of any entity (event, user, ...) the preprocessor
// knows how to canonicalize. Zero-value (empty) fields are skipped, never rendered as
// a placeholder string.
type Fields struct {
	Title       string
	Category    string
	Tags        []string
	Description string
	Location    string
}

// Canonicalize produces the single canonical string for f: lowercase, collapsed
// whitespace, HTML-like markers stripped, fields joined in a fixed order with " | ",
// tags sorted lexicographically first, truncated to 2048 characters.
func Canonicalize(f Fields) string {
	parts := make([]string, 0, 5)

	if s := clean(f.Title); s != "" {
		parts = append(parts, s)
	}
	if s := clean(f.Category); s != "" {
		parts = append(parts, s)
	}
	if tags := cleanTags(f.Tags); len(tags) > 0 {
		parts = append(parts, strings.Join(tags, ", "))
	}
	if s := clean(f.Description); s != "" {
		parts = append(parts, s)
	}
	if s := clean(f.Location); s != "" {
		parts = append(parts, s)
	}

	out := strings.Join(parts, " | ")
	if runes := []rune(out); len(runes) > maxLen {
		out = string(runes[:maxLen])
	}
	return out
}

func clean(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if c := clean(t); c != "" {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// EventText builds the canonical text for an event: title; category; tags; description; location.
func EventText(title, category string, tags []string, description, location string) string {
	return Canonicalize(Fields{
		Title:       title,
		Category:    category,
		Tags:        tags,
		Description: description,
		Location:    location,
	})
}

// UserText builds the canonical text for a user from bio + interests + location.
// Username is intentionally excluded: it rarely carries topical signal.
func UserText(bio string, interests []string, location string) string {
	return Canonicalize(Fields{
		Description: bio,
		Tags:        interests,
		Location:    location,
	})
}
