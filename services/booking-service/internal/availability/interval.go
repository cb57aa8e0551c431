package availability

import (
	"sort"
	"time"
)

// Interval is a half-open range [Start, End) of absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// Overlaps reports whether a and b share any instant. Adjacent intervals
// (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapsAny scans busy in any order.
func OverlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// SortByStart sorts in place by start, then end.
func SortByStart(ivs []Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].End.Before(ivs[j].End)
		}
		return ivs[i].Start.Before(ivs[j].Start)
	})
}
