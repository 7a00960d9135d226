package profile

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

const (
	ExcludeActorUser     = "user"
	ExcludeActorFeedback = "feedback"
)

// ExcludedJobs is the on-disk list of jobs a candidate never wants recommended again.
type ExcludedJobs struct {
	Items []*ExcludedJob
}

type ExcludedJob struct {
	ID          string
	CompanyName string
	Actor       string
	Reason      string
	ExcludedAt  time.Time
}

// ToExcluded converts the job set into exclusion records.
func (v *Jobs) ToExcluded(actor, reason string) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, job := range v.Items {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			ID:          job.ID,
			CompanyName: job.Company.Name,
			Actor:       actor,
			Reason:      reason,
			ExcludedAt:  time.Now().UTC(),
		})
	}
	return excluded
}

// LoadExcludedJobs reads an exclude file. A missing or empty file yields an empty list.
func LoadExcludedJobs(path string) (*ExcludedJobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ExcludedJobs{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds records whose IDs are not present yet.
func (v *ExcludedJobs) Append(s *ExcludedJobs) {
	seen := make(map[string]struct{}, len(v.Items))
	for _, item := range v.Items {
		seen[item.ID] = struct{}{}
	}
	for _, item := range s.Items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		v.Items = append(v.Items, item)
	}
}

func (v *ExcludedJobs) JobIDs() []string {
	ids := make([]string, 0, len(v.Items))
	for _, job := range v.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

// ToFile rewrites the exclude file.
func (v *ExcludedJobs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
