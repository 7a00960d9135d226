// Package matching is the matching and scoring engine. It ties the
// fingerprint cache, the worker pool, the feature scorers, the weight model,
// the fairness adjuster and the explanation generator together behind
// MatchJob, and builds recommendations and feedback handling on top of it.
package matching

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/cache"
	"github.com/ideamlabs/guidesignal-matcher/internal/config"
	"github.com/ideamlabs/guidesignal-matcher/internal/embedding"
	"github.com/ideamlabs/guidesignal-matcher/internal/fairness"
	"github.com/ideamlabs/guidesignal-matcher/internal/filtering"
	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/scoring"
	"github.com/ideamlabs/guidesignal-matcher/internal/textsim"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
	"github.com/ideamlabs/guidesignal-matcher/internal/workerpool"
)

// Version is reported in every match result.
var Version = "dev"

var ErrEngineClosed = errors.New("matching engine closed")

type Engine struct {
	cfg        config.Config
	candidates profile.CandidateSource
	jobs       profile.JobSource
	history    filtering.FeedbackHistory
	logger     *zap.Logger
	now        func() time.Time

	embedder   embedding.Embedder
	similarity textsim.Func
	scorers    []scoring.Scorer
	skills     *scoring.Skills
	detector   fairness.Detector
	feedback   learning.FeedbackLog

	pool     *workerpool.Pool
	cache    *cache.Cache[*MatchResult]
	model    *weights.Model
	adjuster *fairness.Adjuster
	loop     *learning.Loop

	stop     context.CancelFunc
	loopDone chan struct{}
	closed   atomic.Bool

	processed atomic.Int64
	failures  atomic.Int64
	degraded  atomic.Int64
	latency   atomic.Int64
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEmbedder sets the embedding provider used by the semantic scorer.
// The default is a local hashing embedder.
func WithEmbedder(emb embedding.Embedder) Option {
	return func(e *Engine) { e.embedder = emb }
}

// WithSimilarity injects the text similarity function used for skills,
// experience titles and values.
func WithSimilarity(sim textsim.Func) Option {
	return func(e *Engine) { e.similarity = sim }
}

// WithScorers replaces the standard scorers.
func WithScorers(scorers ...scoring.Scorer) Option {
	return func(e *Engine) { e.scorers = scorers }
}

func WithModel(m *weights.Model) Option {
	return func(e *Engine) { e.model = m }
}

func WithFeedbackLog(log learning.FeedbackLog) Option {
	return func(e *Engine) { e.feedback = log }
}

// WithFeedbackHistory enables the feedback_history recommendation filter.
func WithFeedbackHistory(h filtering.FeedbackHistory) Option {
	return func(e *Engine) { e.history = h }
}

func WithDetector(d fairness.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// New builds an engine and starts its learning loop. cfg must already be
// validated. Close releases the pool and stops the loop.
func New(cfg config.Config, candidates profile.CandidateSource, jobs profile.JobSource, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:        cfg,
		candidates: candidates,
		jobs:       jobs,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrNop(e.logger)

	if e.embedder == nil {
		e.embedder = embedding.NewHashing(cfg.Embedding.Dimension)
	}
	if e.similarity == nil {
		e.similarity = textsim.Similarity
	}
	if e.detector == nil {
		e.detector = fairness.NewDisparityDetector(cfg.FairnessMinGroup)
	}
	if e.model == nil {
		m, err := weights.NewModel(weights.Default(), weights.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.model = m
	}

	e.pool = workerpool.New(cfg.Pool(), scoring.PoolHandlers(e.embedder), e.logger.Named("pool"))
	if e.scorers == nil {
		e.scorers = scoring.Standard(e.pool, e.similarity)
	}
	e.skills = scoring.NewSkills(e.similarity)
	e.cache = cache.New[*MatchResult](cfg.Cache(), e.logger.Named("cache"))
	e.adjuster = fairness.NewAdjuster(e.detector, cfg.Fairness(), e.logger.Named("fairness"))
	e.loop = learning.NewLoop(e.model, e.feedback, cfg.Learning(), e.logger.Named("learning"))

	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	e.loopDone = make(chan struct{})
	go func() {
		defer close(e.loopDone)
		if err := e.loop.Run(ctx); err != nil {
			e.logger.Error("learning loop failed", zap.Error(err))
		}
	}()

	e.logger.Info("matching engine started",
		zap.String("version", Version),
		zap.Int("workers", e.pool.Size()),
		zap.String("embedding_model", e.embedder.Model()),
		zap.Uint64(logger.FieldWeightsVersion, e.model.Snapshot().Version),
	)
	return e, nil
}

// Weights returns the live weight snapshot.
func (e *Engine) Weights() *weights.Snapshot {
	return e.model.Snapshot()
}

// Recalibrate runs a batch recalibration immediately.
func (e *Engine) Recalibrate(ctx context.Context) (learning.Recalibration, *weights.Snapshot, error) {
	return e.loop.RecalibrateNow(ctx)
}

// Close stops the learning loop and the worker pool. It is safe to call twice.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.stop()
	<-e.loopDone
	e.pool.Close()
	e.logger.Debug("matching engine stopped")
	return nil
}
