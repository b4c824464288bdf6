package ics

import "strings"

// textEscaper implements RFC 5545 TEXT escaping. strings.Replacer works in a
// single left-to-right pass, so the backslashes it introduces for , ; and
// newline are never escaped a second time.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`,`, `\,`,
	`;`, `\;`,
	"\n", `\n`,
)

// Escape prepares free text for a SUMMARY, DESCRIPTION or LOCATION value.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return textEscaper.Replace(text)
}

// Unescape reverses Escape. \N is accepted as a newline as well, since
// RFC 5545 allows either case.
func Unescape(text string) string {
	if !strings.Contains(text, `\`) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 == len(text) {
			b.WriteByte(c)
			continue
		}
		i++
		switch text[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(text[i])
		}
	}
	return b.String()
}
