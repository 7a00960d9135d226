package matching

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/cache"
	"github.com/ideamlabs/guidesignal-matcher/internal/explain"
	"github.com/ideamlabs/guidesignal-matcher/internal/fairness"
	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/scoring"
	"github.com/ideamlabs/guidesignal-matcher/internal/utils"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

// MatchOptions are part of the cache fingerprint.
type MatchOptions struct {
	// SkipFairness reports the raw score without fairness correction.
	SkipFairness   bool `json:"skip_fairness,omitempty"`
	MaxSuggestions int  `json:"max_suggestions,omitempty"`
}

// MatchResult is immutable once created and shared by every caller that hits
// the same fingerprint.
type MatchResult struct {
	CandidateID string              `json:"candidate_id"`
	JobID       string              `json:"job_id"`
	Score       float64             `json:"match_score"`
	RawScore    float64             `json:"raw_score"`
	Confidence  float64             `json:"confidence"`
	Components  weights.Vector      `json:"components"`
	Weights     weights.Snapshot    `json:"weights"`
	Explanation explain.Explanation `json:"explanation"`
	Metadata    Metadata            `json:"metadata"`
}

type Metadata struct {
	Fingerprint     string              `json:"fingerprint"`
	Timestamp       time.Time           `json:"timestamp"`
	Duration        time.Duration       `json:"duration"`
	EngineVersion   string              `json:"engine_version"`
	FairnessApplied bool                `json:"fairness_applied"`
	Fairness        fairness.Adjustment `json:"fairness"`
	Failures        []scoring.Failure   `json:"failures,omitempty"`
}

// MatchScore lets results be ranked.
func (r *MatchResult) MatchScore() float64 { return r.Score }

// Degraded reports whether any component failed.
func (r *MatchResult) Degraded() bool { return len(r.Metadata.Failures) > 0 }

// MatchJob scores a candidate against a job. Scorer failures and timeouts
// degrade the result instead of failing it; an error is returned only when a
// record cannot be loaded or ctx ends first.
func (e *Engine) MatchJob(ctx context.Context, candidateID, jobID string, opts MatchOptions) (*MatchResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	start := e.now()

	res, err := e.cached(ctx, candidateID, jobID, opts, e.load(candidateID, jobID))
	e.record(e.now().Sub(start), err)
	return res, err
}

// load fetches both records from the collaborators.
func (e *Engine) load(candidateID, jobID string) func(context.Context) (*profile.Candidate, *profile.Job, error) {
	return func(ctx context.Context) (*profile.Candidate, *profile.Job, error) {
		c, err := e.candidates.GetCandidate(ctx, candidateID)
		if err != nil {
			return nil, nil, fmt.Errorf("getting candidate: %w", err)
		}
		j, err := e.jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, nil, fmt.Errorf("getting job: %w", err)
		}
		return c, j, nil
	}
}

// match scores records that are already loaded, going through the same cache.
func (e *Engine) match(ctx context.Context, c *profile.Candidate, j *profile.Job, opts MatchOptions) (*MatchResult, error) {
	start := e.now()
	res, err := e.cached(ctx, c.ID, j.ID, opts, func(context.Context) (*profile.Candidate, *profile.Job, error) {
		return c, j, nil
	})
	e.record(e.now().Sub(start), err)
	return res, err
}

// matchKey is everything besides the two records that a result depends on.
type matchKey struct {
	Options        MatchOptions `json:"options"`
	WeightsVersion uint64       `json:"weights_version"`
}

// cached serves a result computed with the live weights. Results of older
// weight versions are never returned; they age out of the cache.
func (e *Engine) cached(ctx context.Context, candidateID, jobID string, opts MatchOptions, load func(context.Context) (*profile.Candidate, *profile.Job, error)) (*MatchResult, error) {
	snap := e.model.Snapshot()
	key, err := cache.Fingerprint(candidateID, jobID, matchKey{Options: opts, WeightsVersion: snap.Version})
	if err != nil {
		return nil, err
	}

	res, _, err := e.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*MatchResult, error) {
		c, j, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return e.compute(ctx, c, j, opts, key, snap), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) compute(ctx context.Context, c *profile.Candidate, j *profile.Job, opts MatchOptions, key string, snap *weights.Snapshot) *MatchResult {
	start := e.now()
	log := logger.WithMatch(e.logger, c.ID, j.ID).With(zap.String(logger.FieldFingerprint, key))

	scores := scoring.Evaluate(ctx, e.scorers, c, j, log)
	raw := utils.Clamp01(snap.Weights.Dot(scores.Scores))

	adj := fairness.Adjustment{Raw: raw, Score: raw}
	if !opts.SkipFairness {
		adj = e.adjuster.Adjust(raw, c, j)
	}

	maxSuggestions := opts.MaxSuggestions
	if maxSuggestions <= 0 {
		maxSuggestions = e.cfg.MaxSuggestions
	}
	exp := explain.Generate(explain.Input{
		Scores:         scores.Scores,
		Weights:        snap.Weights,
		Score:          adj.Score,
		MissingSkills:  e.skills.Missing(c, j),
		MaxSuggestions: maxSuggestions,
	})

	// every failed component costs an equal share of confidence
	penalty := 1 - float64(scores.Failed())/float64(weights.NumComponents)
	exp.Confidence = utils.Clamp01(exp.Confidence * penalty)

	res := &MatchResult{
		CandidateID: c.ID,
		JobID:       j.ID,
		Score:       adj.Score,
		RawScore:    raw,
		Confidence:  exp.Confidence,
		Components:  scores.Scores,
		Weights:     *snap,
		Explanation: exp,
		Metadata: Metadata{
			Fingerprint:     key,
			Timestamp:       start.UTC(),
			Duration:        e.now().Sub(start),
			EngineVersion:   Version,
			FairnessApplied: adj.Applied,
			Fairness:        adj,
			Failures:        scores.Failures,
		},
	}

	if res.Degraded() {
		e.degraded.Add(1)
	}
	log.Debug("match computed",
		zap.Float64("score", res.Score),
		zap.Float64("confidence", res.Confidence),
		zap.Uint64(logger.FieldWeightsVersion, snap.Version),
		zap.Bool("fairness_applied", adj.Applied),
		zap.String("reasoning", utils.TruncateForLog(exp.Reasoning, 120)),
	)
	return res
}

func (e *Engine) record(d time.Duration, err error) {
	e.processed.Add(1)
	e.latency.Add(int64(d))
	if err != nil {
		e.failures.Add(1)
	}
}
