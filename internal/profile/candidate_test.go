package profile

import (
	"math"
	"strings"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestTotalYears(t *testing.T) {
	c := Candidate{Experience: []ExperienceEntry{
		{Title: "Engineer", Years: ptr(2.5)},
		{Title: "Intern"},
		{Title: "Bogus", Years: ptr(-3)},
	}}

	if got := c.TotalYears(); got != 3.5 {
		t.Fatalf("expected 3.5 years, got %v", got)
	}
}

func TestCandidateText(t *testing.T) {
	c := Candidate{
		Bio:        "  Backend engineer ",
		Skills:     []string{"Go", "SQL"},
		Experience: []ExperienceEntry{{Title: "SRE", Description: ""}},
	}

	text := c.Text()
	if !strings.HasPrefix(text, "Backend engineer\nGo SQL\nSRE") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestDistance(t *testing.T) {
	berlin := Location{City: "Berlin", Lat: ptr(52.52), Lon: ptr(13.405)}
	potsdam := Location{City: "Potsdam", Lat: ptr(52.39), Lon: ptr(13.065)}

	d, ok := berlin.DistanceKm(potsdam)
	if !ok {
		t.Fatalf("expected distance to be known")
	}
	if math.Abs(d-27) > 3 {
		t.Fatalf("expected roughly 27km, got %v", d)
	}

	if d, ok := (Location{City: "berlin"}).DistanceKm(Location{City: "Berlin"}); !ok || d != 0 {
		t.Fatalf("same city without coordinates should be zero distance, got %v %v", d, ok)
	}

	if _, ok := (Location{City: "unknown"}).DistanceKm(berlin); ok {
		t.Fatalf("unknown location must not yield a distance")
	}

	if _, ok := (Location{City: "Paris"}).DistanceKm(Location{City: "Berlin"}); ok {
		t.Fatalf("different cities without coordinates must not yield a distance")
	}
}
