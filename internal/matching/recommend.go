package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/filtering"
	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/ranking"
)

type RecommendOptions struct {
	Count int `json:"count"`
	// DiversityFactor overrides the configured factor when set.
	DiversityFactor *float64           `json:"diversity_factor,omitempty"`
	Criteria        filtering.Criteria `json:"filter_criteria"`
	Match           MatchOptions       `json:"match"`
}

type Recommendation struct {
	Job    *profile.Job `json:"job"`
	Result *MatchResult `json:"result"`
}

type RecommendationMetadata struct {
	Timestamp       time.Time              `json:"timestamp"`
	Duration        time.Duration          `json:"duration"`
	EngineVersion   string                 `json:"engine_version"`
	WeightsVersion  uint64                 `json:"weights_version"`
	Candidates      int                    `json:"candidate_jobs"`
	Filters         []filtering.StepReport `json:"filters"`
	Ranking         ranking.Stats          `json:"ranking"`
	DiversityFactor float64                `json:"diversity_factor"`
}

type Recommendations struct {
	CandidateID     string                 `json:"candidate_id"`
	Recommendations []Recommendation       `json:"recommendations"`
	Metadata        RecommendationMetadata `json:"metadata"`
}

// Jobs returns the recommended jobs in rank order.
func (r *Recommendations) Jobs() *profile.Jobs {
	jobs := &profile.Jobs{Items: make([]*profile.Job, 0, len(r.Recommendations))}
	for _, rec := range r.Recommendations {
		jobs.Items = append(jobs.Items, rec.Job)
	}
	return jobs
}

// DumpToTmpFile writes the recommendations as indented JSON to a new temp file.
func (r *Recommendations) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "recommendations_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// GetRecommendations ranks recent jobs for a candidate after the filter pipeline.
func (e *Engine) GetRecommendations(ctx context.Context, candidateID string, opts RecommendOptions) (*Recommendations, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := e.now()
	log := logger.WithMatch(e.logger, candidateID, "")

	c, err := e.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("getting candidate: %w", err)
	}

	hours := e.cfg.RecentHours
	if opts.Criteria.MaxAgeHours > 0 && (hours <= 0 || opts.Criteria.MaxAgeHours < hours) {
		hours = opts.Criteria.MaxAgeHours
	}
	recent, err := e.jobs.GetRecentJobs(ctx, hours)
	if err != nil {
		return nil, fmt.Errorf("getting recent jobs: %w", err)
	}
	log.Debug("recent jobs loaded", zap.Int("count", len(recent)), zap.Int("hours", hours))

	filters := filtering.Default()
	if e.history == nil {
		filtering.DisableByName(filters, "feedback_history", "no feedback history configured")
	}
	log.Debug("filters", zap.Any("status", filtering.Describe(filters)))
	deps := filtering.Deps{Logger: log, Candidate: c, Feedback: e.history, Now: e.now}
	left, steps, err := filtering.Run(ctx, &opts.Criteria, deps, filters, &profile.Jobs{Items: recent})
	if err != nil {
		return nil, fmt.Errorf("filtering jobs: %w", err)
	}

	factor := e.cfg.DiversityFactor
	if opts.DiversityFactor != nil {
		factor = *opts.DiversityFactor
	}

	ranked, stats, err := ranking.Rank(ctx, left.Items,
		func(ctx context.Context, j *profile.Job) (*MatchResult, error) {
			return e.match(ctx, c, j, opts.Match)
		},
		ranking.Options{Count: opts.Count, DiversityFactor: factor, BatchSize: e.cfg.BatchSize},
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("ranking jobs: %w", err)
	}

	out := &Recommendations{
		CandidateID:     c.ID,
		Recommendations: make([]Recommendation, 0, len(ranked)),
		Metadata: RecommendationMetadata{
			Timestamp:       start.UTC(),
			EngineVersion:   Version,
			WeightsVersion:  e.model.Snapshot().Version,
			Candidates:      len(recent),
			Filters:         steps,
			Ranking:         stats,
			DiversityFactor: factor,
		},
	}
	for _, r := range ranked {
		out.Recommendations = append(out.Recommendations, Recommendation{Job: r.Job, Result: r.Match})
	}
	out.Metadata.Duration = e.now().Sub(start)

	log.Info("recommendations ready",
		zap.Int("recommended", len(out.Recommendations)),
		zap.Int("evaluated", stats.Evaluated),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", out.Metadata.Duration),
	)
	return out, nil
}
