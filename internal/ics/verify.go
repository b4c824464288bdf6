package ics

import (
	"bytes"
	"fmt"

	ical "github.com/arran4/golang-ical"

	appLog "engagecal/internal/log"
)

// Verify parses doc back with an independent iCalendar parser and checks
// that it holds exactly want VEVENTs, each with a UID and DTSTAMP.
func Verify(doc []byte, want int) error {
	cal, err := ical.ParseCalendar(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("verify: parse calendar: %w", err)
	}

	events := cal.Events()
	if len(events) != want {
		return fmt.Errorf("verify: calendar has %d VEVENTs, want %d", len(events), want)
	}

	for i, ve := range events {
		uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
		if uid == nil || uid.Value == "" {
			return fmt.Errorf("verify: VEVENT %d has no UID", i)
		}
		if p := ve.GetProperty(ical.ComponentProperty("DTSTAMP")); p == nil || p.Value == "" {
			return fmt.Errorf("verify: VEVENT %d (%s) has no DTSTAMP", i, uid.Value)
		}
		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			appLog.Debug("verified event", "uid", uid.Value, "summary", Unescape(p.Value))
		}
	}
	return nil
}
