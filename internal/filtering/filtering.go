package filtering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

// Filter represents a single filtering step applied to candidate jobs.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Criteria) error
	Apply(ctx context.Context, deps Deps, jobs *profile.Jobs) (*profile.Jobs, Step, error)
}

// FeedbackHistory lists the jobs a candidate already gave feedback on.
type FeedbackHistory interface {
	FeedbackJobIDs(ctx context.Context, candidateID string) ([]string, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger    *zap.Logger
	Candidate *profile.Candidate
	Feedback  FeedbackHistory
	Now       func() time.Time
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int `json:"initial"`
	Dropped int `json:"dropped"`
	Left    int `json:"left"`
}

// StepReport is a Step tagged with the filter that produced it.
type StepReport struct {
	Name string `json:"name"`
	Step
}

// Criteria is the filterCriteria of a recommendation request.
type Criteria struct {
	ExcludeCompanies    []string `json:"excludeCompanies,omitempty" mapstructure:"exclude-companies"`
	ExcludeFile         string   `json:"excludeFile,omitempty" mapstructure:"exclude-file"`
	ExcludeWithFeedback bool     `json:"excludeWithFeedback,omitempty" mapstructure:"exclude-with-feedback"`
	RemoteOnly          bool     `json:"remoteOnly,omitempty" mapstructure:"remote-only"`
	Locations           []string `json:"locations,omitempty" mapstructure:"locations"`
	MaxAgeHours         int      `json:"maxAgeHours,omitempty" mapstructure:"max-age-hours"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns every filter in the order they run.
func Default() []Filter {
	return []Filter{
		NewFeedbackHistory(),
		NewExcludeFile(),
		NewCompanies(),
		NewRemoteOnly(),
		NewLocations(),
		NewMaxAge(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially, returning the remaining jobs and a report per step.
func Run(ctx context.Context, cfg *Criteria, deps Deps, steps []Filter, jobs *profile.Jobs) (*profile.Jobs, []StepReport, error) {
	if cfg == nil {
		cfg = &Criteria{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	reports := make([]StepReport, 0, len(steps))
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, jobs)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		jobs = next
		reports = append(reports, StepReport{Name: step.Name(), Step: info})
	}

	return jobs, reports, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func unchanged(jobs *profile.Jobs) Step {
	return Step{Initial: jobs.Len(), Dropped: 0, Left: jobs.Len()}
}
