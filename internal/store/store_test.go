package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "matcher.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCandidateRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	c := &profile.Candidate{ID: "c1", Skills: []string{"Go"}, Attributes: map[string]string{"gender": "f"}}
	require.NoError(t, s.SaveCandidate(ctx, c))

	c.Skills = []string{"Go", "SQL"}
	require.NoError(t, s.SaveCandidate(ctx, c))

	got, err := s.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "SQL"}, got.Skills)
	assert.Equal(t, "f", got.Attributes["gender"])

	_, err = s.GetCandidate(ctx, "missing")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestGetRecentJobs(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SaveJob(ctx, &profile.Job{ID: "old", PostedAt: now.Add(-72 * time.Hour)}))
	require.NoError(t, s.SaveJob(ctx, &profile.Job{ID: "new", PostedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.SaveJob(ctx, &profile.Job{ID: "undated"}))

	recent, err := s.GetRecentJobs(ctx, 24)
	require.NoError(t, err)
	ids := (&profile.Jobs{Items: recent}).IDs()
	assert.Equal(t, []string{"undated", "new"}, ids)

	all, err := s.GetRecentJobs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func entry(id, candidate, job string, outcome learning.Outcome) learning.Entry {
	return learning.Entry{
		Event: learning.FeedbackEvent{
			ID: id, CandidateID: candidate, JobID: job, Outcome: outcome,
			Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Components:     weights.Vector{0.5, 0.9, 0.4, 1, 0.5},
		ActualScore:    0.7,
		WeightsVersion: 3,
	}
}

func TestFeedbackLog(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	n, inserted, err := s.Append(ctx, entry("e1", "c1", "j1", learning.OutcomeHired))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, inserted)

	n, inserted, err = s.Append(ctx, entry("e2", "c1", "j2", learning.OutcomeRejected))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, inserted)

	// duplicate event IDs are ignored
	n, inserted, err = s.Append(ctx, entry("e2", "c1", "j2", learning.OutcomeRejected))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, inserted)

	_, _, err = s.Append(ctx, entry("e3", "c2", "j1", learning.OutcomeInterviewed))
	require.NoError(t, err)

	entries, err := s.Entries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].Event.ID)
	assert.Equal(t, "e3", entries[1].Event.ID)
	assert.InDelta(t, 0.9, entries[0].Components[weights.Skills], 1e-9)
	assert.Equal(t, uint64(3), entries[0].WeightsVersion)

	all, err := s.Entries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ids, err := s.FeedbackJobIDs(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2"}, ids)

	counts, err := s.OutcomeCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"hired": 1, "rejected": 1, "interviewed": 1}, counts)
}

func TestInboxStream(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first, err := s.Push(ctx, map[string]any{"candidate_id": "c1", "job_id": "j1", "outcome": "hired"})
	require.NoError(t, err)
	_, err = s.Push(ctx, map[string]any{"candidate_id": "c1", "job_id": "j2", "outcome": "rejected"})
	require.NoError(t, err)

	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "hired", pending[0].Payload["outcome"])

	require.NoError(t, s.Ack(ctx, first))

	pending, err = s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "j2", pending[0].Payload["job_id"])
}

func TestPollDrainsInbox(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.Push(ctx, map[string]any{"candidateId": "c1", "jobId": "j1", "outcome": "interviewed"})
	require.NoError(t, err)
	_, err = s.Push(ctx, map[string]any{"outcome": "bogus"})
	require.NoError(t, err)

	var got []learning.FeedbackEvent
	sink := func(_ context.Context, ev learning.FeedbackEvent) error {
		if err := ev.Prepare(time.Now()); err != nil {
			return err
		}
		got = append(got, ev)
		return nil
	}

	n, err := learning.PollOnce(ctx, s, 10, sink, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, got, 1)
	assert.Equal(t, "j1", got[0].JobID)

	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRedeliveredFeedbackMovesWeightsOnce(t *testing.T) {
	s := openTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model, err := weights.NewModel(weights.Default())
	require.NoError(t, err)
	loop := learning.NewLoop(model, s, learning.Config{
		LearningRate: 0.01, Momentum: 0.9, HighConfidence: 0.8, BatchSize: 100, MinSamples: 20,
	}, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	e := entry("evt-1", "c1", "j1", learning.OutcomeHired)
	e.Event.UserFeedback = &learning.UserFeedback{Confidence: 0.9}

	first, err := loop.Provide(ctx, e)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := loop.Provide(ctx, e)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Applied)
	assert.Equal(t, first.WeightsVersion, model.Snapshot().Version)

	entries, err := s.Entries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWeightsPersistence(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.LoadWeights(ctx)
	assert.ErrorIs(t, err, profile.ErrNotFound)

	model, err := weights.NewModel(weights.Default(), weights.WithPersist(s.SaveWeights))
	require.NoError(t, err)

	_, err = model.Update(ctx, "test", func(v weights.Vector) (weights.Vector, error) {
		return weights.Vector{0.2, 0.4, 0.2, 0.1, 0.1}, nil
	})
	require.NoError(t, err)

	snap, err := s.LoadWeights(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Snapshot().Version, snap.Version)
	assert.Equal(t, "test", snap.Source)
	assert.InDelta(t, 0.4, snap.Weights[weights.Skills], 1e-9)

	history, err := s.WeightHistory(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, snap.Version, history[0].Version)
}

const fixture = `
candidates:
  - id: c1
    bio: Backend engineer
    skills: [Go, PostgreSQL]
    location: {city: Berlin}
jobs:
  - id: j1
    title: Go Developer
    skills:
      - {name: Go, importance: required}
    company: {id: acme, name: Acme}
    posted_at: 2025-02-01T10:00:00Z
feedback:
  - candidate_id: c1
    job_id: j1
    outcome: interviewed
`

func TestImportFile(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	stats, err := s.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Candidates: 1, Jobs: 1, Feedback: 1}, stats)

	c, err := s.GetCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Berlin", c.Location.City)

	j, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, profile.ImportanceRequired, j.Skills[0].Importance)
	assert.Equal(t, 2025, j.PostedAt.Year())

	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Candidates: 1, Jobs: 1, Pending: 1}, counts)
}

func TestImportRejectsMissingIDs(t *testing.T) {
	s := openTest(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - title: no id\n"), 0o644))

	_, err := s.ImportFile(context.Background(), path)
	assert.Error(t, err)
}
