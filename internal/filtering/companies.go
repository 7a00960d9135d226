package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

type companiesFilter struct {
	companies []string
}

// NewCompanies creates a filter that removes jobs of excluded companies, matched by ID or name.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate(cfg *Criteria) error {
	f.companies = nil
	for _, c := range cfg.ExcludeCompanies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			f.companies = append(f.companies, c)
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, jobs *profile.Jobs) (*profile.Jobs, Step, error) {
	initial := jobs.Len()
	if len(f.companies) == 0 {
		return jobs, unchanged(jobs), nil
	}

	set := make(map[string]struct{}, len(f.companies))
	for _, c := range f.companies {
		set[c] = struct{}{}
	}
	excluded := jobs.Drop(func(j *profile.Job) bool {
		_, byID := set[strings.ToLower(j.Company.ID)]
		_, byName := set[strings.ToLower(j.Company.Name)]
		return byID || byName
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding jobs by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
