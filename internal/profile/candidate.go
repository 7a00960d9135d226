// Package profile holds the candidate and job records the matcher consumes from
// the profile store, plus the collaborator interfaces used to fetch them.
package profile

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by sources when a record does not exist.
var ErrNotFound = errors.New("record not found")

// CandidateSource resolves candidates by identifier.
type CandidateSource interface {
	GetCandidate(ctx context.Context, id string) (*Candidate, error)
}

// Candidate is a job seeker profile. It is treated as immutable while a match is computed.
type Candidate struct {
	ID         string            `json:"id" yaml:"id" validate:"required"`
	Bio        string            `json:"bio,omitempty" yaml:"bio"`
	Skills     []string          `json:"skills,omitempty" yaml:"skills"`
	Experience []ExperienceEntry `json:"experience,omitempty" yaml:"experience"`
	Education  []EducationEntry  `json:"education,omitempty" yaml:"education"`
	Location   Location          `json:"location,omitempty" yaml:"location"`
	Values     []string          `json:"values,omitempty" yaml:"values"`
	// Attributes carries protected attributes (e.g. "gender", "age_band").
	// They are read only by the fairness detector and never by a scorer.
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes"`
}

// ExperienceEntry is one prior role.
type ExperienceEntry struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Years       *float64 `json:"years,omitempty" yaml:"years"`
}

// EducationEntry is one degree or certificate.
type EducationEntry struct {
	Degree      string `json:"degree,omitempty" yaml:"degree"`
	Field       string `json:"field,omitempty" yaml:"field"`
	Institution string `json:"institution,omitempty" yaml:"institution"`
}

// TotalYears sums the declared years across all experience entries.
// Entries without a duration count as one year.
func (c *Candidate) TotalYears() float64 {
	var total float64
	for _, e := range c.Experience {
		if e.Years == nil {
			total++
			continue
		}
		if *e.Years > 0 {
			total += *e.Years
		}
	}
	return total
}

// Text is the free text used for semantic comparison.
func (c *Candidate) Text() string {
	parts := make([]string, 0, 2+len(c.Experience)*2+len(c.Education))
	parts = append(parts, c.Bio, strings.Join(c.Skills, " "))
	for _, e := range c.Experience {
		parts = append(parts, e.Title, e.Description)
	}
	for _, e := range c.Education {
		parts = append(parts, e.Degree, e.Field)
	}
	return joinNonEmpty(parts)
}

func joinNonEmpty(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
