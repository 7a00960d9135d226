package learning

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/utils"
)

// RawEvent is an undecoded feedback payload from a stream.
type RawEvent struct {
	ID      int64
	Payload map[string]any
}

// StreamSource is a pollable feedback stream.
type StreamSource interface {
	Pending(ctx context.Context, limit int) ([]RawEvent, error)
	Ack(ctx context.Context, ids ...int64) error
}

// Sink receives decoded feedback.
type Sink func(ctx context.Context, ev FeedbackEvent) error

// Poll drains src into sink every interval until ctx is cancelled.
func Poll(ctx context.Context, src StreamSource, interval time.Duration, limit int, sink Sink, l *zap.Logger) error {
	l = logger.OrNop(l)

	for {
		n, err := PollOnce(ctx, src, limit, sink, l)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			l.Warn("polling feedback stream", zap.Error(err))
		}
		if n > 0 {
			l.Debug("feedback consumed", zap.Int("events", n))
		}
		// a full page usually means more is waiting
		if err == nil && limit > 0 && n == limit {
			continue
		}
		if err := utils.WaitFor(ctx, interval); err != nil {
			return nil
		}
	}
}

// PollOnce processes one page of pending events and returns how many were
// acknowledged. Malformed or rejected events are acknowledged and dropped;
// any other sink error stops the page so the event is retried next time.
func PollOnce(ctx context.Context, src StreamSource, limit int, sink Sink, l *zap.Logger) (int, error) {
	l = logger.OrNop(l)

	events, err := src.Pending(ctx, limit)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, raw := range events {
		ev, err := DecodeEvent(raw.Payload)
		if err == nil {
			err = sink(ctx, ev)
		}
		if err != nil {
			if !errors.Is(err, ErrUpdateRejected) {
				return done, err
			}
			l.Warn("dropping feedback event", zap.Int64("stream_id", raw.ID), zap.Error(err))
		}

		if err := src.Ack(ctx, raw.ID); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
