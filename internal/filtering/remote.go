package filtering

import (
	"context"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

type remoteOnlyFilter struct {
	enabled bool
}

// NewRemoteOnly creates a filter that keeps remote jobs only when requested.
func NewRemoteOnly() Filter {
	return &remoteOnlyFilter{}
}

func (f *remoteOnlyFilter) Name() string { return "remote_only" }

func (f *remoteOnlyFilter) Disable(string) {}

func (f *remoteOnlyFilter) IsEnabled() bool { return true }

func (f *remoteOnlyFilter) Validate(cfg *Criteria) error {
	f.enabled = cfg.RemoteOnly
	return nil
}

func (f *remoteOnlyFilter) Apply(_ context.Context, _ Deps, jobs *profile.Jobs) (*profile.Jobs, Step, error) {
	initial := jobs.Len()
	if !f.enabled {
		return jobs, unchanged(jobs), nil
	}
	excluded := jobs.Drop(func(j *profile.Job) bool { return !j.Remote })
	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}
