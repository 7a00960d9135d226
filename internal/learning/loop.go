package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

var ErrLoopStopped = errors.New("learning loop is not running")

type Config struct {
	LearningRate float64
	Momentum     float64
	// HighConfidence is the user confidence above which feedback triggers an
	// immediate gradient step.
	HighConfidence float64
	// BatchSize logged entries trigger one background recalibration.
	BatchSize  int
	MinSamples int
	// Window caps how many recent entries a recalibration reads. 0 reads all.
	Window int
}

// Ack confirms that feedback was processed.
type Ack struct {
	EventID        string `json:"event_id"`
	Logged         bool   `json:"logged"`
	Applied        bool   `json:"applied"`
	WeightsVersion uint64 `json:"weights_version"`
	Recalibrating  bool   `json:"recalibrating"`
	// Duplicate is set when the event ID was already logged; nothing else
	// happens for such feedback.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Stats counts processed feedback.
type Stats struct {
	Accepted       int64 `json:"accepted"`
	Rejected       int64 `json:"rejected"`
	Applied        int64 `json:"applied"`
	Recalibrations int64 `json:"recalibrations"`
	Skipped        int64 `json:"recalibrations_skipped"`
}

type request struct {
	ctx   context.Context
	entry Entry
	reply chan reply
}

type reply struct {
	ack Ack
	err error
}

// Loop serializes feedback handling on one goroutine. Batch recalibration
// runs on a second goroutine so it never delays feedback or matching; both
// publish through weights.Model.Update, which admits one writer at a time.
type Loop struct {
	cfg    Config
	model  *weights.Model
	log    FeedbackLog
	logger *zap.Logger
	now    func() time.Time

	requests    chan request
	recalibrate chan struct{}
	done        chan struct{}
	running     atomic.Bool

	accepted       atomic.Int64
	rejected       atomic.Int64
	applied        atomic.Int64
	recalibrations atomic.Int64
	skipped        atomic.Int64
}

func NewLoop(model *weights.Model, log FeedbackLog, cfg Config, l *zap.Logger) *Loop {
	if log == nil {
		log = NewMemoryLog()
	}
	return &Loop{
		cfg:         cfg,
		model:       model,
		log:         log,
		logger:      logger.OrNop(l),
		now:         time.Now,
		requests:    make(chan request),
		recalibrate: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Run processes feedback until ctx is cancelled. It must be called once.
// Before returning it waits for a running recalibration and runs one that
// is still queued.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("learning loop already started")
	}
	defer close(l.done)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.recalibrationWorker(ctx)
	}()

	l.logger.Debug("learning loop started",
		zap.Float64("learning_rate", l.cfg.LearningRate),
		zap.Float64("momentum", l.cfg.Momentum),
		zap.Int("batch_size", l.cfg.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			// a recalibration queued before shutdown still runs
			select {
			case <-l.recalibrate:
				l.runRecalibration(context.WithoutCancel(ctx))
			default:
			}
			l.logger.Debug("learning loop stopped")
			return nil
		case req := <-l.requests:
			ack, err := l.handle(req.ctx, req.entry)
			req.reply <- reply{ack: ack, err: err}
		}
	}
}

// Provide submits feedback and waits until it has been logged and, for
// high-confidence feedback, applied.
func (l *Loop) Provide(ctx context.Context, entry Entry) (Ack, error) {
	if err := entry.Event.Prepare(l.now()); err != nil {
		l.rejected.Add(1)
		l.logger.Warn("rejecting feedback", zap.Error(err))
		return Ack{}, err
	}

	req := request{ctx: ctx, entry: entry, reply: make(chan reply, 1)}
	select {
	case l.requests <- req:
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	case <-l.done:
		return Ack{}, ErrLoopStopped
	}

	select {
	case r := <-req.reply:
		return r.ack, r.err
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

func (l *Loop) handle(ctx context.Context, e Entry) (Ack, error) {
	ev := e.Event
	log := l.logger.With(logger.MatchFields(ev.CandidateID, ev.JobID)...).With(zap.String("event_id", ev.ID))
	ack := Ack{EventID: ev.ID}

	if err := checkMatch(e); err != nil {
		l.rejected.Add(1)
		log.Warn("rejecting feedback", zap.Error(err))
		return ack, err
	}

	count, inserted, err := l.log.Append(ctx, e)
	if err != nil {
		return ack, fmt.Errorf("appending to feedback log: %w", err)
	}
	ack.Logged = true
	if !inserted {
		ack.Duplicate = true
		ack.WeightsVersion = l.model.Snapshot().Version
		log.Info("duplicate feedback ignored")
		return ack, nil
	}
	l.accepted.Add(1)

	if ev.Confidence() > l.cfg.HighConfidence {
		expected := ev.ExpectedScore()
		snap, err := l.model.Update(ctx, "feedback:"+ev.ID, func(cur weights.Vector) (weights.Vector, error) {
			return GradientStep(cur, e.Components, expected, e.ActualScore, l.cfg.LearningRate, l.cfg.Momentum)
		})
		if err != nil {
			l.rejected.Add(1)
			log.Warn("weight update rejected", zap.Error(err))
			if !errors.Is(err, ErrUpdateRejected) {
				err = fmt.Errorf("%w: %w", ErrUpdateRejected, err)
			}
			ack.WeightsVersion = l.model.Snapshot().Version
			return ack, err
		}
		ack.Applied = true
		l.applied.Add(1)
		log.Info("weights adjusted from feedback",
			zap.Uint64(logger.FieldWeightsVersion, snap.Version),
			zap.Float64("expected", expected),
			zap.Float64("actual", e.ActualScore),
		)
	}
	ack.WeightsVersion = l.model.Snapshot().Version

	if l.cfg.BatchSize > 0 && count%l.cfg.BatchSize == 0 {
		ack.Recalibrating = l.TriggerRecalibration()
	}
	return ack, nil
}

func checkMatch(e Entry) error {
	values := append(e.Components[:], e.ActualScore)
	for _, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: match scores out of range", ErrUpdateRejected)
		}
	}
	return nil
}

// TriggerRecalibration schedules a background recalibration. It reports
// false when one is already pending.
func (l *Loop) TriggerRecalibration() bool {
	select {
	case l.recalibrate <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *Loop) recalibrationWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.recalibrate:
			// runs to completion even when ctx ends meanwhile
			l.runRecalibration(context.WithoutCancel(ctx))
		}
	}
}

func (l *Loop) runRecalibration(ctx context.Context) {
	if _, _, err := l.RecalibrateNow(ctx); err != nil && !errors.Is(err, ErrInsufficientData) {
		l.logger.Warn("recalibration failed", zap.Error(err))
	}
}

// RecalibrateNow fits new weights from the feedback log and blends them into
// the live vector with momentum.
func (l *Loop) RecalibrateNow(ctx context.Context) (Recalibration, *weights.Snapshot, error) {
	entries, err := l.log.Entries(ctx, l.cfg.Window)
	if err != nil {
		return Recalibration{}, nil, fmt.Errorf("reading feedback log: %w", err)
	}

	res, err := Recalibrate(entries, l.cfg.MinSamples)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			l.skipped.Add(1)
			l.logger.Info("recalibration skipped", zap.Error(err), zap.Int("entries", len(entries)))
		}
		return res, nil, err
	}

	snap, err := l.model.Update(ctx, "recalibration", func(cur weights.Vector) (weights.Vector, error) {
		return cur.Blend(res.Weights, l.cfg.Momentum).Normalize()
	})
	if err != nil {
		return res, nil, fmt.Errorf("%w: %w", ErrUpdateRejected, err)
	}
	l.recalibrations.Add(1)

	l.logger.Info("weights recalibrated",
		zap.Uint64(logger.FieldWeightsVersion, snap.Version),
		zap.Int("samples", res.Samples),
		zap.Int("positives", res.Positives),
		zap.Float64("accuracy", res.Accuracy),
		zap.Stringer("fitted", res.Weights),
	)
	return res, snap, nil
}

func (l *Loop) Stats() Stats {
	return Stats{
		Accepted:       l.accepted.Load(),
		Rejected:       l.rejected.Load(),
		Applied:        l.applied.Load(),
		Recalibrations: l.recalibrations.Load(),
		Skipped:        l.skipped.Load(),
	}
}
