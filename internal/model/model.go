package model

import "encoding/json"

// RawEvent is one untyped record from the Engage "items" array. Nothing about
// its shape is guaranteed; readers must treat every key as optional.
type RawEvent map[string]any

// Page is the envelope returned by the Engage list endpoint.
// TotalItems is a pointer so that an absent total can be told apart from 0.
// It is a json.Number because some deployments encode it as a float.
type Page struct {
	Skip       int          `json:"skip"`
	Take       int          `json:"take"`
	TotalItems *json.Number `json:"totalItems"`
	Items      []RawEvent   `json:"items"`
}

// Total returns the reported total. ok is false when the total is absent or
// not a number; fractional values are truncated.
func (p Page) Total() (n int, ok bool) {
	if p.TotalItems == nil {
		return 0, false
	}
	if i, err := p.TotalItems.Int64(); err == nil {
		return int(i), true
	}
	f, err := p.TotalItems.Float64()
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// CalendarEvent is the typed view of a RawEvent after field mapping.
// Every field is optional: a nil pointer means the source had no usable value.
type CalendarEvent struct {
	ID          *string
	Title       *string
	Description *string

	// ISO-8601-ish timestamps as delivered by the API.
	StartTime *string
	EndTime   *string

	LocationName    *string
	LocationAddress *string

	// ImageURL doubles as the event URL; the feed carries no event page link.
	ImageURL *string

	Status *string
}

// Str returns the value behind p, or "" when absent.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
