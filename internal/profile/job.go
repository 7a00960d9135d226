package profile

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	JobIDField        = "ID"
	JobCompanyIDField = "CompanyID"
	JobCategoryField  = "Category"
)

// JobSource resolves jobs by identifier and lists recently posted jobs.
type JobSource interface {
	GetJob(ctx context.Context, id string) (*Job, error)
	GetRecentJobs(ctx context.Context, hours int) ([]*Job, error)
}

// Importance ranks how much a job cares about a skill.
type Importance string

const (
	ImportanceRequired Importance = "required"
	ImportanceHigh     Importance = "high"
	ImportanceNormal   Importance = "normal"
)

// Critical reports whether missing the skill is penalised.
func (i Importance) Critical() bool {
	return i == ImportanceRequired || i == ImportanceHigh
}

// ExperienceLevel is the seniority a job asks for.
type ExperienceLevel string

const (
	LevelNone   ExperienceLevel = ""
	LevelEntry  ExperienceLevel = "entry"
	LevelJunior ExperienceLevel = "junior"
	LevelMid    ExperienceLevel = "mid"
	LevelSenior ExperienceLevel = "senior"
	LevelLead   ExperienceLevel = "lead"
)

var levelYears = map[ExperienceLevel]float64{
	LevelNone:   0,
	LevelEntry:  0,
	LevelJunior: 1,
	LevelMid:    3,
	LevelSenior: 5,
	LevelLead:   8,
}

// Skill is a job requirement.
type Skill struct {
	Name       string     `json:"name" yaml:"name"`
	Importance Importance `json:"importance,omitempty" yaml:"importance"`
}

// Company owns a job posting.
type Company struct {
	ID          string   `json:"id,omitempty" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Values      []string `json:"values,omitempty" yaml:"values"`
}

// Job is a posting. It is treated as immutable while a match is computed.
type Job struct {
	ID              string          `json:"id" yaml:"id" validate:"required"`
	Title           string          `json:"title" yaml:"title"`
	Description     string          `json:"description,omitempty" yaml:"description"`
	Category        string          `json:"category,omitempty" yaml:"category"`
	Skills          []Skill         `json:"skills,omitempty" yaml:"skills"`
	ExperienceLevel ExperienceLevel `json:"experience_level,omitempty" yaml:"experience_level"`
	RequiredYears   *float64        `json:"required_years,omitempty" yaml:"required_years"`
	Remote          bool            `json:"remote,omitempty" yaml:"remote"`
	Location        Location        `json:"location,omitempty" yaml:"location"`
	Company         Company         `json:"company,omitempty" yaml:"company"`
	PostedAt        time.Time       `json:"posted_at,omitempty" yaml:"posted_at"`
}

// YearsRequired returns the explicit requirement, falling back to the level's typical years.
func (j *Job) YearsRequired() float64 {
	if j.RequiredYears != nil {
		if *j.RequiredYears < 0 {
			return 0
		}
		return *j.RequiredYears
	}
	return levelYears[ExperienceLevel(strings.ToLower(string(j.ExperienceLevel)))]
}

// Text is the free text used for semantic comparison.
func (j *Job) Text() string {
	names := make([]string, 0, len(j.Skills))
	for _, s := range j.Skills {
		names = append(names, s.Name)
	}
	return joinNonEmpty([]string{j.Title, j.Description, strings.Join(names, " "), j.Company.Description})
}

// DiversityKey groups jobs for the ranking diversity constraint: company first, then category.
func (j *Job) DiversityKey() string {
	if id := strings.TrimSpace(j.Company.ID); id != "" {
		return "company:" + strings.ToLower(id)
	}
	if name := strings.TrimSpace(j.Company.Name); name != "" {
		return "company:" + strings.ToLower(name)
	}
	if cat := strings.TrimSpace(j.Category); cat != "" {
		return "category:" + strings.ToLower(cat)
	}
	return "job:" + j.ID
}

// GetStringField returns the named identifier field used by Exclude.
func (j *Job) GetStringField(name string) string {
	switch name {
	case JobIDField:
		return j.ID
	case JobCompanyIDField:
		return j.Company.ID
	case JobCategoryField:
		return j.Category
	default:
		return ""
	}
}

// Jobs is an ordered job set.
type Jobs struct {
	Items []*Job
}

func (v *Jobs) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Items)
}

func (v *Jobs) FindByID(id string) *Job {
	for _, job := range v.Items {
		if job.ID == id {
			return job
		}
	}
	return nil
}

// IDs lists job identifiers in order.
func (v *Jobs) IDs() []string {
	ids := make([]string, 0, v.Len())
	for _, job := range v.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

// Exclude removes every job whose field matches one of targets (case-insensitive),
// preserving order, and returns the removed job IDs.
func (v *Jobs) Exclude(field string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return v.Drop(func(j *Job) bool {
		_, ok := set[strings.ToLower(j.GetStringField(field))]
		return ok
	})
}

// Drop removes every job for which match returns true, preserving order.
func (v *Jobs) Drop(match func(*Job) bool) []string {
	var excluded []string
	kept := v.Items[:0]
	for _, job := range v.Items {
		if match(job) {
			excluded = append(excluded, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(v.Items); i++ {
		v.Items[i] = nil
	}
	v.Items = kept
	return excluded
}

// ReportByCompany groups a short description of every job by company.
func (v *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range v.Items {
		key := fmt.Sprintf("%s (%s)", job.Company.Name, job.Company.ID)
		remote := "no"
		if job.Remote {
			remote = "yes"
		}
		report[key] = append(report[key], map[string]string{
			"id":       job.ID,
			"title":    job.Title,
			"category": job.Category,
			"city":     job.Location.City,
			"remote":   remote,
		})
	}
	return report
}
