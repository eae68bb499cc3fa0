// Package changepoint reduces a build timeline to the entries that mark a
// status transition.
package changepoint

import "github.com/use-agent/buildharvest/timeline"

// Tag marks whether an entry must be fetched.
type Tag bool

const (
	Skip   Tag = false
	Select Tag = true
)

func (t Tag) String() string {
	if t == Select {
		return "Select"
	}
	return "Skip"
}

// Mask is parallel to a Timeline's entries.
type Mask []Tag

// Count returns the number of selected entries.
func (m Mask) Count() int {
	n := 0
	for _, t := range m {
		if t == Select {
			n++
		}
	}
	return n
}

// Selected returns the entries of tl whose tag is Select, in order.
func (m Mask) Selected(tl *timeline.Timeline) []timeline.BuildEntry {
	out := make([]timeline.BuildEntry, 0, m.Count())
	for i, t := range m {
		if t == Select && i < len(tl.Entries) {
			out = append(out, tl.Entries[i])
		}
	}
	return out
}

// Compute returns the selection mask for tl.
//
// Within the history (the synthetic last-known-good entry excluded) an entry
// is skipped when it has the same status as every neighbour it has. The
// synthetic entry is always selected. If the history has no Success entry,
// its first entry is selected regardless.
func Compute(tl *timeline.Timeline) Mask {
	mask := make(Mask, 0, tl.Len())
	if tl.HasGreen() {
		mask = append(mask, Select)
	}

	history := tl.History()
	n := len(history)
	hasSuccess := false
	for _, e := range history {
		if e.Status == timeline.Success {
			hasSuccess = true
			break
		}
	}

	for i := 0; i < n; i++ {
		mask = append(mask, tagAt(history, i, hasSuccess))
	}
	return mask
}

func tagAt(h []timeline.BuildEntry, i int, hasSuccess bool) Tag {
	n := len(h)
	switch {
	case i == 0 && !hasSuccess:
		return Select
	case n == 1:
		return Select
	case i == 0:
		if h[0].Status == h[1].Status {
			return Skip
		}
	case i == n-1:
		if h[i].Status == h[i-1].Status {
			return Skip
		}
	default:
		if h[i].Status == h[i-1].Status && h[i].Status == h[i+1].Status {
			return Skip
		}
	}
	return Select
}
