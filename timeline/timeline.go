// Package timeline models one project's build history as rendered by the
// dashboard: an ordered list of build controls, each carrying a timestamp
// and a status marker.
package timeline

import (
	"regexp"
	"strconv"
	"strings"
)

// Status is the three-way classification of a build control.
type Status int

const (
	Unknown Status = iota
	Failure
	Success
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Label is the archive label for the status. Anything that is not a
// success is archived as an error log.
func (s Status) Label() string {
	if s == Success {
		return "success"
	}
	return "error"
}

// Position identifies a control on the page: either its ordinal in the
// build-history list or the last-known-good shortcut.
type Position struct {
	Index int
	Green bool
}

// GreenPosition is the sentinel position of the last-known-good control.
var GreenPosition = Position{Index: -1, Green: true}

// At returns the ordinal position i.
func At(i int) Position { return Position{Index: i} }

func (p Position) String() string {
	if p.Green {
		return "GREEN"
	}
	return strconv.Itoa(p.Index)
}

// UnknownTimestamp is the placeholder used when a label has no date-time.
const UnknownTimestamp = "unknown_time"

// BuildEntry is one build-history control after extraction.
type BuildEntry struct {
	Position  Position
	Timestamp string // raw "YYYY/M/D H:MM:SS" text or UnknownTimestamp
	Status    Status
}

// DateStamp is the date part of the timestamp with slashes replaced,
// e.g. "2025/7/3 10:00:00" -> "2025_7_3".
func (e BuildEntry) DateStamp() string {
	fields := strings.Fields(e.Timestamp)
	if len(fields) == 0 {
		return ""
	}
	date := fields[0]
	return strings.ReplaceAll(date, "/", "_")
}

// Control is the raw material for one entry: the control's visible label
// and its outer markup, where the status icon lives.
type Control struct {
	Label  string
	Markup string
}

// Timeline is a project's entries in on-page order. When present, the
// synthetic last-known-good entry is always first.
type Timeline struct {
	Entries []BuildEntry
}

// Len returns the number of entries including the synthetic one.
func (t *Timeline) Len() int { return len(t.Entries) }

// HasGreen reports whether the synthetic last-known-good entry is present.
func (t *Timeline) HasGreen() bool {
	return len(t.Entries) > 0 && t.Entries[0].Position.Green
}

// History returns the entries without the synthetic one.
func (t *Timeline) History() []BuildEntry {
	if t.HasGreen() {
		return t.Entries[1:]
	}
	return t.Entries
}

// Counts tallies statuses over the history entries.
func (t *Timeline) Counts() (success, failure, unknown int) {
	for _, e := range t.History() {
		switch e.Status {
		case Success:
			success++
		case Failure:
			failure++
		default:
			unknown++
		}
	}
	return success, failure, unknown
}

// Build turns the rendered history controls into a Timeline. Positions
// follow the order of controls. If green is non-nil a synthetic Success
// entry with the GREEN sentinel is prepended.
func Build(controls []Control, green *Control) *Timeline {
	entries := make([]BuildEntry, 0, len(controls)+1)
	if green != nil {
		entries = append(entries, BuildEntry{
			Position:  GreenPosition,
			Timestamp: ParseTimestamp(green.Label),
			Status:    Success,
		})
	}
	for i, c := range controls {
		entries = append(entries, BuildEntry{
			Position:  At(i),
			Timestamp: ParseTimestamp(c.Label),
			Status:    Classify(c.Markup),
		})
	}
	return &Timeline{Entries: entries}
}

var timestampRe = regexp.MustCompile(`\d{4}/\d{1,2}/\d{1,2}\s*\d{1,2}:\d{2}:\d{2}`)

// ParseTimestamp returns the first date-time substring in label, or
// UnknownTimestamp when there is none.
func ParseTimestamp(label string) string {
	if m := timestampRe.FindString(label); m != "" {
		return m
	}
	return UnknownTimestamp
}

// Classify maps a control's markup to a Status by its icon attribute.
func Classify(markup string) Status {
	switch {
	case strings.Contains(markup, `icon="icons:done"`):
		return Success
	case strings.Contains(markup, `icon="icons:error"`):
		return Failure
	default:
		return Unknown
	}
}
