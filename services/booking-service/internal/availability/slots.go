package availability

import "time"

// FreeStarts lists the starts on the step grid anchored at window.Start where
// a booking of the given length fits inside window without touching busy.
// Starts earlier than notBefore are dropped.
func FreeStarts(window Interval, length, step time.Duration, busy []Interval, notBefore time.Time) []time.Time {
	if length <= 0 || step <= 0 || !window.Valid() {
		return nil
	}
	last := window.End.Add(-length)
	first := window.Start
	if notBefore.After(first) {
		n := (notBefore.Sub(first) + step - 1) / step
		first = first.Add(n * step)
	}
	if first.After(last) {
		return nil
	}

	sorted := append([]Interval(nil), busy...)
	SortByStart(sorted)

	var starts []time.Time
	cursor := 0
	for t := first; !t.After(last); t = t.Add(step) {
		// Starts only grow, so anything ended by t is behind every later candidate too.
		for cursor < len(sorted) && !sorted[cursor].End.After(t) {
			cursor++
		}
		if !overlapsSorted(Interval{Start: t, End: t.Add(length)}, sorted[cursor:]) {
			starts = append(starts, t)
		}
	}
	return starts
}

// SlotsForStaff maps each staff member to the starts at which they are free.
// Members with no free start are left out.
func SlotsForStaff(window Interval, durationMins, stepMins int, busyByStaff map[string][]Interval, staffIDs []string, now time.Time) map[string][]time.Time {
	length := time.Duration(durationMins) * time.Minute
	step := time.Duration(stepMins) * time.Minute
	out := make(map[string][]time.Time, len(staffIDs))
	for _, id := range staffIDs {
		starts := FreeStarts(window, length, step, busyByStaff[id], now)
		if len(starts) == 0 {
			continue
		}
		out[id] = starts
	}
	return out
}
