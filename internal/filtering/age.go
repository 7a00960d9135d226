package filtering

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

type maxAgeFilter struct {
	maxAge time.Duration
}

// NewMaxAge creates a filter that drops jobs posted longer ago than the limit.
// Jobs without a posting time are kept.
func NewMaxAge() Filter {
	return &maxAgeFilter{}
}

func (f *maxAgeFilter) Name() string { return "max_age" }

func (f *maxAgeFilter) Disable(string) {}

func (f *maxAgeFilter) IsEnabled() bool { return true }

func (f *maxAgeFilter) Validate(cfg *Criteria) error {
	if cfg.MaxAgeHours < 0 {
		return fmt.Errorf("max age must not be negative, got %d hours", cfg.MaxAgeHours)
	}
	f.maxAge = time.Duration(cfg.MaxAgeHours) * time.Hour
	return nil
}

func (f *maxAgeFilter) Apply(_ context.Context, deps Deps, jobs *profile.Jobs) (*profile.Jobs, Step, error) {
	initial := jobs.Len()
	if f.maxAge == 0 {
		return jobs, unchanged(jobs), nil
	}

	cutoff := deps.Now().Add(-f.maxAge)
	excluded := jobs.Drop(func(j *profile.Job) bool {
		return !j.PostedAt.IsZero() && j.PostedAt.Before(cutoff)
	})
	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}

func (f *maxAgeFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{"max_age_hours": strconv.Itoa(int(f.maxAge.Hours()))},
	}
}
