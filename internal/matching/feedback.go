package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

// pollPageSize bounds how many inbox events one poll handles.
const pollPageSize = 100

// ProvideFeedback hands an outcome to the learning loop. The component scores
// the feedback is judged against come from the match under the live weights,
// cached or recomputed. Feedback does not count towards match metrics.
func (e *Engine) ProvideFeedback(ctx context.Context, ev learning.FeedbackEvent) (learning.Ack, error) {
	if e.closed.Load() {
		return learning.Ack{}, ErrEngineClosed
	}
	if err := ev.Prepare(e.now()); err != nil {
		e.logger.Warn("rejecting feedback", zap.Error(err))
		return learning.Ack{}, err
	}

	res, err := e.cached(ctx, ev.CandidateID, ev.JobID, MatchOptions{}, e.load(ev.CandidateID, ev.JobID))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			err = fmt.Errorf("%w: %w", learning.ErrUpdateRejected, err)
		}
		return learning.Ack{}, err
	}

	return e.loop.Provide(ctx, learning.Entry{
		Event:          ev,
		Components:     res.Components,
		ActualScore:    res.Score,
		WeightsVersion: res.Weights.Version,
	})
}

// PollFeedback feeds events from src into ProvideFeedback until ctx ends.
func (e *Engine) PollFeedback(ctx context.Context, src learning.StreamSource, interval time.Duration) error {
	return learning.Poll(ctx, src, interval, pollPageSize, func(ctx context.Context, ev learning.FeedbackEvent) error {
		_, err := e.ProvideFeedback(ctx, ev)
		return err
	}, e.logger.Named("poll"))
}

// DrainFeedback handles every pending event in src once.
func (e *Engine) DrainFeedback(ctx context.Context, src learning.StreamSource) (int, error) {
	total := 0
	for {
		n, err := learning.PollOnce(ctx, src, pollPageSize, func(ctx context.Context, ev learning.FeedbackEvent) error {
			_, err := e.ProvideFeedback(ctx, ev)
			return err
		}, e.logger.Named("poll"))
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}
