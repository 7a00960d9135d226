// Package scoring computes the five component scores of a match.
//
// Scorers are side-effect free. Evaluate runs them concurrently and never
// fails as a whole: a scorer that errors, panics, times out or returns a value
// outside [0,1] contributes 0 and is listed in Result.Failures.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
	"github.com/ideamlabs/guidesignal-matcher/internal/workerpool"
)

var ErrScorerFailure = errors.New("scorer failure")

// Scorer produces one component score in [0,1].
type Scorer interface {
	Component() weights.Component
	Score(ctx context.Context, c *profile.Candidate, j *profile.Job) (float64, error)
}

// Failure records why a component was degraded to 0.
type Failure struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
	Timeout   bool   `json:"timeout,omitempty"`

	err error
}

func (f Failure) Error() string { return f.err.Error() }
func (f Failure) Unwrap() error { return f.err }

// Result holds the component scores of one evaluation.
type Result struct {
	Scores   weights.Vector
	Failures []Failure
}

// Failed reports how many components were degraded.
func (r Result) Failed() int { return len(r.Failures) }

// Evaluate runs every scorer concurrently and waits for all of them.
func Evaluate(ctx context.Context, scorers []Scorer, c *profile.Candidate, j *profile.Job, log *zap.Logger) Result {
	log = logger.OrNop(log)

	type outcome struct {
		score float64
		err   error
	}
	outcomes := make([]outcome, len(scorers))

	var g errgroup.Group
	for i, s := range scorers {
		g.Go(func() error {
			score, err := safeScore(ctx, s, c, j)
			outcomes[i] = outcome{score: score, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, s := range scorers {
		comp := s.Component()
		o := outcomes[i]
		if o.err == nil {
			res.Scores[comp] = o.score
			continue
		}

		err := fmt.Errorf("%w: %s: %w", ErrScorerFailure, comp, o.err)
		res.Scores[comp] = 0
		res.Failures = append(res.Failures, Failure{
			Component: comp.String(),
			Reason:    o.err.Error(),
			Timeout:   errors.Is(o.err, workerpool.ErrTimeout),
			err:       err,
		})
		log.Warn("component degraded",
			zap.String(logger.FieldComponent, comp.String()),
			zap.Error(o.err),
		)
	}
	return res
}

func safeScore(ctx context.Context, s Scorer, c *profile.Candidate, j *profile.Job) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			score, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()

	score, err = s.Score(ctx, c, j)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("score %v outside [0,1]", score)
	}
	return score, nil
}
