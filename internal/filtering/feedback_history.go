package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

type feedbackHistoryFilter struct {
	enabled  bool
	disabled string
}

// NewFeedbackHistory creates a filter that removes jobs the candidate already gave feedback on.
func NewFeedbackHistory() Filter {
	return &feedbackHistoryFilter{}
}

func (f *feedbackHistoryFilter) Name() string { return "feedback_history" }

func (f *feedbackHistoryFilter) Disable(reason string) {
	if reason == "" {
		reason = "disabled"
	}
	f.disabled = reason
}

func (f *feedbackHistoryFilter) IsEnabled() bool { return f.disabled == "" }

func (f *feedbackHistoryFilter) Validate(cfg *Criteria) error {
	f.enabled = cfg.ExcludeWithFeedback
	return nil
}

func (f *feedbackHistoryFilter) Apply(ctx context.Context, deps Deps, jobs *profile.Jobs) (*profile.Jobs, Step, error) {
	if !f.enabled {
		return jobs, unchanged(jobs), nil
	}
	initial := jobs.Len()

	if deps.Feedback == nil {
		return jobs, Step{}, fmt.Errorf("feedback history is required")
	}
	if deps.Candidate == nil {
		return jobs, Step{}, fmt.Errorf("candidate is required")
	}

	ids, err := deps.Feedback.FeedbackJobIDs(ctx, deps.Candidate.ID)
	if err != nil {
		return jobs, Step{}, fmt.Errorf("get feedback history: %w", err)
	}

	excluded := jobs.Exclude(profile.JobIDField, ids)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding jobs with feedback",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}

func (f *feedbackHistoryFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.disabled,
		Details: map[string]string{"exclude_with_feedback": strconv.FormatBool(f.enabled)},
	}
}
