package ics

import (
	"strings"
	"time"

	appLog "engagecal/internal/log"
)

// ZuluLayout is the fixed-width UTC DATE-TIME form used for every
// DTSTAMP/DTSTART/DTEND line we emit.
const ZuluLayout = "20060102T150405Z"

// Layouts that carry an explicit offset. Parsed values are converted to UTC.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"20060102T150405Z0700",
	"20060102T150405Z",
}

// Layouts without an offset. time.Parse yields UTC for these, which is
// exactly the "relabel, don't shift" rule for naive upstream values.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"20060102T150405",
	"2006-01-02",
}

// ParseTimestamp parses the ISO 8601 variants seen in Engage payloads.
// Values without an offset are taken to be UTC already.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Zulu normalizes an ISO-like timestamp to YYYYMMDDTHHMMSSZ.
// It reports false for empty input and for values it cannot parse; the
// caller then omits the property instead of failing the run.
func Zulu(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	t, ok := ParseTimestamp(s)
	if !ok {
		appLog.Debug("unparseable timestamp treated as absent", "value", s)
		return "", false
	}
	return FormatZulu(t), true
}

// FormatZulu renders t in UTC using ZuluLayout.
func FormatZulu(t time.Time) string {
	return t.UTC().Format(ZuluLayout)
}
