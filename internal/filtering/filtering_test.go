package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testJobs() *profile.Jobs {
	return &profile.Jobs{Items: []*profile.Job{
		{ID: "1", Company: profile.Company{ID: "acme", Name: "Acme"}, Location: profile.Location{City: "Berlin", Country: "DE"}, PostedAt: now.Add(-2 * time.Hour)},
		{ID: "2", Company: profile.Company{ID: "globex", Name: "Globex"}, Remote: true, PostedAt: now.Add(-100 * time.Hour)},
		{ID: "3", Company: profile.Company{ID: "initech", Name: "Initech"}, Location: profile.Location{City: "Paris", Country: "FR"}},
		{ID: "4", Company: profile.Company{ID: "acme", Name: "Acme"}, Location: profile.Location{City: "Munich", Country: "DE"}, PostedAt: now.Add(-30 * time.Hour)},
	}}
}

type history map[string][]string

func (h history) FeedbackJobIDs(_ context.Context, candidateID string) ([]string, error) {
	if candidateID == "broken" {
		return nil, errors.New("store offline")
	}
	return h[candidateID], nil
}

func TestRunAppliesEachCriterion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{name: "no criteria", criteria: Criteria{}, want: []string{"1", "2", "3", "4"}},
		{name: "exclude companies by name or id", criteria: Criteria{ExcludeCompanies: []string{" ACME ", "globex"}}, want: []string{"3"}},
		{name: "remote only", criteria: Criteria{RemoteOnly: true}, want: []string{"2"}},
		{name: "locations keep remote jobs", criteria: Criteria{Locations: []string{"de"}}, want: []string{"1", "2", "4"}},
		{name: "max age keeps undated jobs", criteria: Criteria{MaxAgeHours: 24}, want: []string{"1", "3"}},
		{name: "feedback history", criteria: Criteria{ExcludeWithFeedback: true}, want: []string{"2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			deps := Deps{
				Candidate: &profile.Candidate{ID: "cand"},
				Feedback:  history{"cand": {"1", "4"}},
				Now:       func() time.Time { return now },
			}
			jobs, reports, err := Run(context.Background(), &tt.criteria, deps, Default(), testJobs())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := jobs.IDs()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}

			if len(reports) != len(Default()) {
				t.Fatalf("expected a report per filter, got %d", len(reports))
			}
			last := reports[len(reports)-1]
			if last.Left != len(tt.want) || reports[0].Initial != 4 {
				t.Fatalf("unexpected step accounting: %+v", reports)
			}
		})
	}
}

func TestExcludeFileFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")
	excluded := (&profile.Jobs{Items: []*profile.Job{{ID: "3"}}}).ToExcluded(profile.ExcludeActorUser, "not interested")
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	core, observed := observer.New(zapcore.InfoLevel)
	jobs, reports, err := Run(context.Background(), &Criteria{ExcludeFile: path}, Deps{Logger: zap.New(core)}, []Filter{NewExcludeFile()}, testJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.FindByID("3") != nil {
		t.Fatalf("job 3 should be excluded")
	}
	if reports[0].Dropped != 1 || reports[0].Left != 3 {
		t.Fatalf("unexpected step: %+v", reports[0])
	}
	if observed.FilterMessage("excluding jobs based on exclude file").Len() != 1 {
		t.Fatalf("expected exclude log entry")
	}

	missing := filepath.Join(t.TempDir(), "missing.json")
	jobs, _, err = Run(context.Background(), &Criteria{ExcludeFile: missing}, Deps{}, []Filter{NewExcludeFile()}, testJobs())
	if err != nil || jobs.Len() != 4 {
		t.Fatalf("missing exclude file should be ignored, got %v / %d", err, jobs.Len())
	}
}

func TestFeedbackHistoryErrors(t *testing.T) {
	criteria := &Criteria{ExcludeWithFeedback: true}

	_, _, err := Run(context.Background(), criteria, Deps{Candidate: &profile.Candidate{ID: "c"}}, []Filter{NewFeedbackHistory()}, testJobs())
	if err == nil {
		t.Fatalf("expected error without feedback history")
	}

	_, _, err = Run(context.Background(), criteria, Deps{Candidate: &profile.Candidate{ID: "broken"}, Feedback: history{}}, []Filter{NewFeedbackHistory()}, testJobs())
	if err == nil {
		t.Fatalf("expected store error to surface")
	}
}

func TestValidateRejectsNegativeAge(t *testing.T) {
	_, _, err := Run(context.Background(), &Criteria{MaxAgeHours: -1}, Deps{}, Default(), testJobs())
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDescribe(t *testing.T) {
	steps := Default()
	if err := steps[len(steps)-1].Validate(&Criteria{MaxAgeHours: 48}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	statuses := Describe(steps)
	if len(statuses) != len(steps) {
		t.Fatalf("expected %d statuses, got %d", len(steps), len(statuses))
	}
	if statuses[len(statuses)-1].Details["max_age_hours"] != "48" {
		t.Fatalf("unexpected status: %+v", statuses[len(statuses)-1])
	}
	if statuses[3].Name != "remote_only" || !statuses[3].Enabled {
		t.Fatalf("unexpected status: %+v", statuses[3])
	}
}

func TestDisabledFeedbackHistoryIsSkipped(t *testing.T) {
	steps := Default()
	DisableByName(steps, "feedback_history", "no feedback store")

	jobs, reports, err := Run(context.Background(), &Criteria{ExcludeWithFeedback: true}, Deps{}, steps, testJobs())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if jobs.Len() != testJobs().Len() {
		t.Fatalf("expected no jobs dropped, got %d left", jobs.Len())
	}
	for _, r := range reports {
		if r.Name == "feedback_history" {
			t.Fatalf("disabled filter should not report: %+v", r)
		}
	}

	status := Describe(steps)[0]
	if status.Enabled || status.Reason != "no feedback store" {
		t.Fatalf("unexpected status: %+v", status)
	}
}
