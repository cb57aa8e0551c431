package availability

// FreeStaff returns the members of staffIDs that have no busy interval
// overlapping candidate, in the order of staffIDs. Staff ids missing from
// busyByStaff are free. busyByStaff lists are sorted in place.
func FreeStaff(candidate Interval, busyByStaff map[string][]Interval, staffIDs []string) []string {
	free := make([]string, 0, len(staffIDs))
	for _, id := range staffIDs {
		busy := busyByStaff[id]
		SortByStart(busy)
		if !overlapsSorted(candidate, busy) {
			free = append(free, id)
		}
	}
	return free
}

// IsFree reports whether candidate fits between the busy intervals of one staff member.
func IsFree(candidate Interval, busy []Interval) bool {
	return !OverlapsAny(candidate, busy)
}

// overlapsSorted walks a start-sorted list and stops at the first interval
// starting at or after candidate.End; nothing later can overlap.
func overlapsSorted(candidate Interval, sorted []Interval) bool {
	for _, b := range sorted {
		if !b.Start.Before(candidate.End) {
			return false
		}
		if candidate.Start.Before(b.End) {
			return true
		}
	}
	return false
}

// BusyCount is the number of busy intervals per staff member, used by load-aware assignment.
func BusyCount(busyByStaff map[string][]Interval, staffID string) int {
	return len(busyByStaff[staffID])
}
