package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

type locationsFilter struct {
	locations map[string]struct{}
}

// NewLocations creates a filter that keeps jobs in the requested cities or countries.
// Remote jobs always pass.
func NewLocations() Filter {
	return &locationsFilter{}
}

func (f *locationsFilter) Name() string { return "locations" }

func (f *locationsFilter) Disable(string) {}

func (f *locationsFilter) IsEnabled() bool { return true }

func (f *locationsFilter) Validate(cfg *Criteria) error {
	f.locations = nil
	for _, l := range cfg.Locations {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			if f.locations == nil {
				f.locations = make(map[string]struct{})
			}
			f.locations[l] = struct{}{}
		}
	}
	return nil
}

func (f *locationsFilter) Apply(_ context.Context, deps Deps, jobs *profile.Jobs) (*profile.Jobs, Step, error) {
	initial := jobs.Len()
	if len(f.locations) == 0 {
		return jobs, unchanged(jobs), nil
	}

	excluded := jobs.Drop(func(j *profile.Job) bool {
		if j.Remote {
			return false
		}
		_, city := f.locations[strings.ToLower(strings.TrimSpace(j.Location.City))]
		_, country := f.locations[strings.ToLower(strings.TrimSpace(j.Location.Country))]
		return !city && !country
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding jobs outside requested locations",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}
