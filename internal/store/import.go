package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

// Fixture is the layout of an import file. JSON files are accepted too.
type Fixture struct {
	Candidates []*profile.Candidate `yaml:"candidates"`
	Jobs       []*profile.Job       `yaml:"jobs"`
	Feedback   []map[string]any     `yaml:"feedback"`
}

type ImportStats struct {
	Candidates int
	Jobs       int
	Feedback   int
}

var validate = validator.New()

// ImportFile loads candidates and jobs from a YAML or JSON file and queues
// any feedback entries on the inbox stream.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	var stats ImportStats

	data, err := os.ReadFile(path)
	if err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}

	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return stats, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, c := range fx.Candidates {
		if err := validate.Struct(c); err != nil {
			return stats, fmt.Errorf("candidate #%d: %w", i, err)
		}
		if err := s.SaveCandidate(ctx, c); err != nil {
			return stats, err
		}
		stats.Candidates++
	}

	for i, j := range fx.Jobs {
		if err := validate.Struct(j); err != nil {
			return stats, fmt.Errorf("job #%d: %w", i, err)
		}
		if err := s.SaveJob(ctx, j); err != nil {
			return stats, err
		}
		stats.Jobs++
	}

	for _, payload := range fx.Feedback {
		if _, err := s.Push(ctx, payload); err != nil {
			return stats, err
		}
		stats.Feedback++
	}

	return stats, nil
}

func timeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
