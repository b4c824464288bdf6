package ics

import (
	"encoding/json"
	"strconv"
	"strings"

	"engagecal/internal/model"
)

// FieldMap says where each CalendarEvent field lives in a raw Engage record.
// Paths are dot-separated object keys ("state.status"). This table is the one
// place to touch when the upstream payload changes shape.
type FieldMap struct {
	Version         string `yaml:"version"`
	ID              string `yaml:"id"`
	Title           string `yaml:"title"`
	Description     string `yaml:"description"`
	StartTime       string `yaml:"start_time"`
	EndTime         string `yaml:"end_time"`
	LocationName    string `yaml:"location_name"`
	LocationAddress string `yaml:"location_address"`
	ImageURL        string `yaml:"image_url"`
	Status          string `yaml:"status"`
}

// EngageV3 is the mapping for the Engage v3 events endpoint.
var EngageV3 = FieldMap{
	Version:         "engage-v3",
	ID:              "id",
	Title:           "name",
	Description:     "description",
	StartTime:       "startsOn",
	EndTime:         "endsOn",
	LocationName:    "address.name",
	LocationAddress: "address.address",
	ImageURL:        "imageUrl",
	Status:          "state.status",
}

// Merge returns m with every empty path taken from base.
func (m FieldMap) Merge(base FieldMap) FieldMap {
	pick := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	return FieldMap{
		Version:         pick(m.Version, base.Version),
		ID:              pick(m.ID, base.ID),
		Title:           pick(m.Title, base.Title),
		Description:     pick(m.Description, base.Description),
		StartTime:       pick(m.StartTime, base.StartTime),
		EndTime:         pick(m.EndTime, base.EndTime),
		LocationName:    pick(m.LocationName, base.LocationName),
		LocationAddress: pick(m.LocationAddress, base.LocationAddress),
		ImageURL:        pick(m.ImageURL, base.ImageURL),
		Status:          pick(m.Status, base.Status),
	}
}

// Extract builds the typed view of raw. It never fails: a missing key, a
// null, an empty string or a value of the wrong kind all come back as nil.
func (m FieldMap) Extract(raw model.RawEvent) model.CalendarEvent {
	return model.CalendarEvent{
		ID:              lookup(raw, m.ID),
		Title:           lookup(raw, m.Title),
		Description:     lookup(raw, m.Description),
		StartTime:       lookup(raw, m.StartTime),
		EndTime:         lookup(raw, m.EndTime),
		LocationName:    lookup(raw, m.LocationName),
		LocationAddress: lookup(raw, m.LocationAddress),
		ImageURL:        lookup(raw, m.ImageURL),
		Status:          lookup(raw, m.Status),
	}
}

func lookup(raw model.RawEvent, path string) *string {
	if raw == nil || path == "" {
		return nil
	}
	var cur any = map[string]any(raw)
	for _, key := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil
		}
		cur, ok = obj[key]
		if !ok {
			return nil
		}
	}
	s, ok := scalarString(cur)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case model.RawEvent:
		return o, true
	default:
		return nil, false
	}
}

// scalarString renders JSON scalars as text. Ids frequently arrive as numbers.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
