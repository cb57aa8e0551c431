// Package policy picks the staff member for a booking that did not name one.
package policy

import "fmt"

// Candidate is a free, qualified staff member in directory listing order.
type Candidate struct {
	StaffID string
	// Load is the number of non-cancelled appointments the member already has that day.
	Load int
}

// Policy must be pure: the same candidates in the same order yield the same pick,
// so a retry after a lost commit race is reproducible.
type Policy interface {
	Name() string
	Pick(candidates []Candidate) (staffID string, ok bool)
}

const (
	NameFirstAvailable = "first"
	NameLeastLoaded    = "least_loaded"
)

// New returns the policy registered under name. An empty name selects FirstAvailable.
func New(name string) (Policy, error) {
	switch name {
	case "", NameFirstAvailable:
		return FirstAvailable{}, nil
	case NameLeastLoaded:
		return LeastLoaded{}, nil
	default:
		return nil, fmt.Errorf("unknown assignment policy %q", name)
	}
}

// FirstAvailable takes the first candidate in directory listing order.
type FirstAvailable struct{}

func (FirstAvailable) Name() string { return NameFirstAvailable }

func (FirstAvailable) Pick(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0].StaffID, true
}

// LeastLoaded takes the candidate with the fewest appointments that day;
// ties go to the lexicographically smallest staff id, independent of listing order.
type LeastLoaded struct{}

func (LeastLoaded) Name() string { return NameLeastLoaded }

func (LeastLoaded) Pick(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Load < best.Load || (c.Load == best.Load && c.StaffID < best.StaffID) {
			best = c
		}
	}
	return best.StaffID, true
}
