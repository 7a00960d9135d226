package profile

import (
	"path/filepath"
	"testing"
)

func testJobs() *Jobs {
	return &Jobs{Items: []*Job{
		{ID: "1", Title: "Go Developer", Company: Company{ID: "acme", Name: "Acme"}, Location: Location{City: "Berlin"}},
		{ID: "2", Title: "SRE", Company: Company{ID: "globex", Name: "Globex"}, Remote: true},
		{ID: "3", Title: "Backend Engineer", Company: Company{ID: "acme", Name: "Acme"}},
		{ID: "4", Title: "Data Engineer", Category: "data"},
	}}
}

func TestReportByCompany(t *testing.T) {
	report := testJobs().ReportByCompany()

	entries, ok := report["Acme (acme)"]
	if !ok {
		t.Fatalf("expected company key in report, got %v", report)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["title"] != "Go Developer" || entries[0]["city"] != "Berlin" {
		t.Fatalf("unexpected entry: %v", entries[0])
	}
	if report["Globex (globex)"][0]["remote"] != "yes" {
		t.Fatalf("expected remote flag in report")
	}
}

func TestExcludeRemovesAllMatchesAndKeepsOrder(t *testing.T) {
	jobs := testJobs()

	excluded := jobs.Exclude(JobCompanyIDField, []string{"ACME"})
	if len(excluded) != 2 || excluded[0] != "1" || excluded[1] != "3" {
		t.Fatalf("unexpected excluded ids: %v", excluded)
	}

	ids := jobs.IDs()
	if len(ids) != 2 || ids[0] != "2" || ids[1] != "4" {
		t.Fatalf("unexpected remaining ids: %v", ids)
	}

	if got := jobs.Exclude(JobIDField, nil); got != nil {
		t.Fatalf("expected nothing excluded for empty targets, got %v", got)
	}
}

func TestYearsRequired(t *testing.T) {
	explicit := 4.0
	negative := -2.0

	tests := []struct {
		name   string
		job    Job
		expect float64
	}{
		{name: "explicit years win", job: Job{RequiredYears: &explicit, ExperienceLevel: LevelLead}, expect: 4},
		{name: "negative clamps to zero", job: Job{RequiredYears: &negative}, expect: 0},
		{name: "level fallback", job: Job{ExperienceLevel: "Senior"}, expect: 5},
		{name: "nothing required", job: Job{}, expect: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.YearsRequired(); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestDiversityKey(t *testing.T) {
	jobs := testJobs()
	if jobs.Items[0].DiversityKey() != jobs.Items[2].DiversityKey() {
		t.Fatalf("jobs of the same company must share a diversity key")
	}
	if jobs.Items[3].DiversityKey() != "category:data" {
		t.Fatalf("expected category fallback, got %s", jobs.Items[3].DiversityKey())
	}
}

func TestExcludedJobsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")

	missing, err := LoadExcludedJobs(path)
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if len(missing.Items) != 0 {
		t.Fatalf("expected empty list")
	}

	jobs := testJobs()
	missing.Append(jobs.ToExcluded(ExcludeActorFeedback, "rejected"))
	missing.Append(jobs.ToExcluded(ExcludeActorUser, "duplicate"))
	if len(missing.Items) != 4 {
		t.Fatalf("expected duplicates to be skipped, got %d items", len(missing.Items))
	}

	if err := missing.ToFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadExcludedJobs(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids := loaded.JobIDs()
	if len(ids) != 4 || ids[0] != "1" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if loaded.Items[0].Actor != ExcludeActorFeedback {
		t.Fatalf("expected actor to survive the round trip, got %q", loaded.Items[0].Actor)
	}
}
