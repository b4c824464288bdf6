package ics

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Sanitizer turns HTML-bearing feed text into a single plain-text line.
type Sanitizer struct {
	// ASCIIOnly drops every rune above U+007F. Some calendar consumers we
	// publish to reject non-ASCII content; switch it off for UTF-8 clean ones.
	ASCIIOnly bool
}

var nonASCII = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
}))

// Sanitize strips markup and decodes entities, then drops non-ASCII runes
// (when enabled), then collapses whitespace. The order is fixed.
func (s Sanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	out := StripHTML(text)
	if s.ASCIIOnly {
		out = StripNonASCII(out)
	}
	return CollapseSpace(out)
}

// StripHTML removes tags and returns the decoded text content.
// script and style bodies are dropped along with their tags.
func StripHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		// The HTML tokenizer only fails on reader errors; a strings.Reader
		// has none, but keep the raw text rather than losing it.
		return text
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// StripNonASCII drops runes outside 7-bit ASCII. Nothing is transliterated.
func StripNonASCII(text string) string {
	out, _, err := transform.String(nonASCII, text)
	if err != nil {
		return text
	}
	return out
}

// CollapseSpace joins whitespace-separated fields with single spaces.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
