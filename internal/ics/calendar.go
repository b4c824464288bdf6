package ics

import (
	"bytes"
	"unicode/utf8"
)

// DefaultProdID is the PRODID written when none is configured.
const DefaultProdID = "-//Fairmont State//Engage iCal//EN"

const (
	crlf = "\r\n"
	// maxLineOctets is the RFC 5545 §3.1 limit, excluding the CRLF.
	maxLineOctets = 75
)

// Header returns the fixed VCALENDAR preamble.
func Header(prodID string) []string {
	if prodID == "" {
		prodID = DefaultProdID
	}
	return []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
}

// Assemble wraps VEVENT blocks (in order) in a VCALENDAR and serializes the
// result with CRLF after every content line, folding long lines.
func Assemble(prodID string, events [][]string) []byte {
	var buf bytes.Buffer
	for _, line := range Header(prodID) {
		writeLine(&buf, line)
	}
	for _, block := range events {
		for _, line := range block {
			writeLine(&buf, line)
		}
	}
	writeLine(&buf, "END:VCALENDAR")
	return buf.Bytes()
}

// writeLine emits line folded at 75 octets. Continuation lines start with a
// single space, which counts toward their 75 octets. UTF-8 sequences are
// never split.
func writeLine(buf *bytes.Buffer, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		buf.WriteString(line[:cut])
		buf.WriteString(crlf)
		buf.WriteByte(' ')
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	buf.WriteString(line)
	buf.WriteString(crlf)
}
