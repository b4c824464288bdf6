package ics

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"engagecal/internal/model"
)

// uidNamespace seeds name-based UIDs for records that carry no id.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:engagecal:event"))

// Mapper converts raw Engage records into VEVENT lines.
type Mapper struct {
	Fields    FieldMap
	UIDDomain string
	Sanitizer Sanitizer
}

// NewMapper returns a Mapper using fields (merged over EngageV3).
func NewMapper(fields FieldMap, uidDomain string, asciiOnly bool) *Mapper {
	return &Mapper{
		Fields:    fields.Merge(EngageV3),
		UIDDomain: uidDomain,
		Sanitizer: Sanitizer{ASCIIOnly: asciiOnly},
	}
}

// Lines renders one VEVENT block for raw. stamp is the generation time and
// becomes DTSTAMP; callers pass the same value for every event of a run.
//
// The property order is fixed: UID, DTSTAMP, DTSTART, DTEND, SUMMARY,
// DESCRIPTION, LOCATION, URL, STATUS.
func (m *Mapper) Lines(raw model.RawEvent, stamp time.Time) []string {
	ev := m.Fields.Extract(raw)

	lines := make([]string, 0, 11)
	lines = append(lines, "BEGIN:VEVENT")
	lines = append(lines, "UID:"+m.uid(ev, raw))
	lines = append(lines, "DTSTAMP:"+FormatZulu(stamp))

	if v, ok := Zulu(model.Str(ev.StartTime)); ok {
		lines = append(lines, "DTSTART:"+v)
	}
	if v, ok := Zulu(model.Str(ev.EndTime)); ok {
		lines = append(lines, "DTEND:"+v)
	}

	lines = append(lines, "SUMMARY:"+Escape(textSafe(model.Str(ev.Title))))

	if desc := m.Sanitizer.Sanitize(model.Str(ev.Description)); desc != "" {
		lines = append(lines, "DESCRIPTION:"+Escape(textSafe(desc)))
	}
	if loc := Location(model.Str(ev.LocationName), model.Str(ev.LocationAddress)); loc != "" {
		lines = append(lines, "LOCATION:"+Escape(textSafe(loc)))
	}
	if u := strings.TrimSpace(dropControl(model.Str(ev.ImageURL))); u != "" {
		lines = append(lines, "URL:"+u)
	}
	if IsCanceled(model.Str(ev.Status)) {
		lines = append(lines, "STATUS:CANCELLED")
	}

	lines = append(lines, "END:VEVENT")
	return lines
}

func (m *Mapper) uid(ev model.CalendarEvent, raw model.RawEvent) string {
	if id := strings.TrimSpace(dropControl(model.Str(ev.ID))); id != "" {
		return id + "@" + m.UIDDomain
	}
	return FallbackUID(raw) + "@" + m.UIDDomain
}

// FallbackUID derives a stable identifier for a record without an id.
// encoding/json sorts map keys, so equal records hash to the same UUID.
func FallbackUID(raw model.RawEvent) string {
	data, err := json.Marshal(raw)
	if err != nil {
		return uuid.New().String()
	}
	return uuid.NewSHA1(uidNamespace, data).String()
}

// Location joins a venue name and a street address.
// Addresses that begin with ", " (the venue line left empty upstream) are
// trimmed first so the result never reads "Hall, , Main St".
func Location(name, address string) string {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(address), ", "))
	switch {
	case name != "" && address != "":
		return name + ", " + address
	case name != "":
		return name
	default:
		return address
	}
}

// IsCanceled reports whether an Engage state string marks a cancelled event.
func IsCanceled(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "canceled")
}

// dropControl removes every control character. Used for values that are
// written unescaped (UID, URL).
func dropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// textSafe removes control characters except LF and HTAB, which TEXT values
// may carry (LF is escaped by Escape).
func textSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
