// Package weights holds the process-wide weight vector that combines
// component scores into a match score.
//
// Readers take an immutable Snapshot per computation. Writers go through
// Model.Update, which is serialized, validates the candidate vector and only
// then publishes it as a new version.
package weights

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
)

// Snapshot is one published version of the weight vector. Never mutated
// after publication.
type Snapshot struct {
	Weights   Vector    `json:"weights"`
	Version   uint64    `json:"version"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PersistFunc stores a snapshot before it becomes visible. An error rejects
// the update.
type PersistFunc func(ctx context.Context, s Snapshot) error

type Option func(*Model)

func WithPersist(fn PersistFunc) Option {
	return func(m *Model) { m.persist = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Model) { m.logger = logger.OrNop(l) }
}

func withClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

type Model struct {
	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]

	persist PersistFunc
	now     func() time.Time
	logger  *zap.Logger
}

// NewModel publishes initial as version 1.
func NewModel(initial Vector, opts ...Option) (*Model, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	m := &Model{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.current.Store(&Snapshot{Weights: initial, Version: 1, Source: "initial", UpdatedAt: m.now()})
	return m, nil
}

// Snapshot returns the live version. Callers must not modify it.
func (m *Model) Snapshot() *Snapshot {
	return m.current.Load()
}

// Update computes a new vector from the current one and publishes it. The
// vector fn returns must already be normalized; anything failing Validate is
// rejected and the live vector stays as it was.
func (m *Model) Update(ctx context.Context, source string, fn func(current Vector) (Vector, error)) (*Snapshot, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	cur := m.current.Load()
	next, err := fn(cur.Weights)
	if err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Weights:   next,
		Version:   cur.Version + 1,
		Source:    source,
		UpdatedAt: m.now(),
	}
	if m.persist != nil {
		if err := m.persist(ctx, *snap); err != nil {
			return nil, fmt.Errorf("persist weights v%d: %w", snap.Version, err)
		}
	}
	m.current.Store(snap)

	m.logger.Debug("weights updated",
		zap.Uint64(logger.FieldWeightsVersion, snap.Version),
		zap.String("source", source),
		zap.Stringer("weights", snap.Weights),
	)
	return snap, nil
}

// Restore replaces the live snapshot with a previously persisted one without
// calling the persist hook. Used at startup.
func (m *Model) Restore(s Snapshot) error {
	if err := s.Weights.Validate(); err != nil {
		return err
	}
	if s.Version == 0 {
		s.Version = 1
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.current.Store(&s)
	return nil
}
