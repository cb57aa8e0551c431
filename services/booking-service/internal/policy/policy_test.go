package policy

import "testing"

func TestFirstAvailable(t *testing.T) {
	p := FirstAvailable{}
	if _, ok := p.Pick(nil); ok {
		t.Fatal("expected no pick from an empty set")
	}
	got, ok := p.Pick([]Candidate{{StaffID: "z", Load: 9}, {StaffID: "a", Load: 0}})
	if !ok || got != "z" {
		t.Fatalf("expected listing order to win, got %q", got)
	}
}

func TestLeastLoaded(t *testing.T) {
	p := LeastLoaded{}
	cases := []struct {
		name string
		in   []Candidate
		want string
	}{
		{"lowest load", []Candidate{{"a", 3}, {"b", 1}, {"c", 2}}, "b"},
		{"tie by id", []Candidate{{"m", 1}, {"c", 1}, {"x", 1}}, "c"},
		{"single", []Candidate{{"only", 7}}, "only"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := p.Pick(tc.in)
			if !ok || got != tc.want {
				t.Fatalf("Pick = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLeastLoadedIsOrderIndependent(t *testing.T) {
	p := LeastLoaded{}
	a, _ := p.Pick([]Candidate{{"b", 2}, {"a", 2}, {"c", 5}})
	b, _ := p.Pick([]Candidate{{"c", 5}, {"a", 2}, {"b", 2}})
	if a != b {
		t.Fatalf("expected deterministic pick, got %q and %q", a, b)
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", NameFirstAvailable, NameLeastLoaded} {
		if _, err := New(name); err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
	}
	if _, err := New("round_robin"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
