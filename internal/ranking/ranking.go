// Package ranking orders match results for a candidate across many jobs.
package ranking

import (
	"context"
	"math"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

const (
	DefaultBatchSize       = 32
	DefaultCount           = 10
	DefaultDiversityFactor = 0.3
)

// Match is anything carrying a final match score.
type Match interface {
	MatchScore() float64
}

type Options struct {
	Count int
	// DiversityFactor is the largest share of the top Count results that may
	// come from one company or category. 0 disables the constraint.
	DiversityFactor float64
	BatchSize       int
}

type Ranked[M Match] struct {
	Job   *profile.Job
	Match M
}

type Stats struct {
	Batches   int `json:"batches"`
	Evaluated int `json:"evaluated"`
	Failed    int `json:"failed"`
	// DiversityRelaxed counts results admitted above the per-group cap
	// because too few groups were left to fill the list.
	DiversityRelaxed int `json:"diversity_relaxed,omitempty"`
}

// Rank scores jobs batch by batch, sorts them and applies the diversity
// constraint. Every job in a batch is scored concurrently; the worker pool
// behind match bounds the actual parallelism. A job whose match fails is
// left out and counted in Stats.Failed.
func Rank[M Match](ctx context.Context, jobs []*profile.Job, match func(ctx context.Context, job *profile.Job) (M, error), opts Options, l *zap.Logger) ([]Ranked[M], Stats, error) {
	l = logger.OrNop(l)
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}

	var stats Stats
	var failed atomic.Int64
	results := make([]Ranked[M], 0, len(jobs))

	for start := 0; start < len(jobs); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(jobs))
		batch := jobs[start:end]
		scored := make([]*Ranked[M], len(batch))

		var g errgroup.Group
		for i, job := range batch {
			g.Go(func() error {
				m, err := match(ctx, job)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed.Add(1)
					l.Warn("ranking skipped job", zap.String(logger.FieldJob, job.ID), zap.Error(err))
					return nil
				}
				scored[i] = &Ranked[M]{Job: job, Match: m}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, stats, err
		}

		stats.Batches++
		for _, r := range scored {
			if r != nil {
				results = append(results, *r)
			}
		}
	}
	stats.Evaluated = len(results)
	stats.Failed = int(failed.Load())

	Sort(results)
	ranked, relaxed := Diversify(results, opts.Count, opts.DiversityFactor)
	stats.DiversityRelaxed = relaxed
	if relaxed > 0 {
		l.Debug("diversity cap relaxed",
			zap.Int("relaxed", relaxed),
			zap.Int("max_per_group", MaxPerGroup(opts.Count, opts.DiversityFactor)),
		)
	}
	return ranked, stats, nil
}

// Sort orders by score, then by most recent posting, then by job ID.
func Sort[M Match](items []Ranked[M]) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if sa, sb := a.Match.MatchScore(), b.Match.MatchScore(); sa != sb {
			return sa > sb
		}
		if !a.Job.PostedAt.Equal(b.Job.PostedAt) {
			return a.Job.PostedAt.After(b.Job.PostedAt)
		}
		return a.Job.ID < b.Job.ID
	})
}

// MaxPerGroup is how many of count results one diversity group may hold.
func MaxPerGroup(count int, factor float64) int {
	if factor <= 0 || factor >= 1 {
		return count
	}
	return max(1, int(math.Ceil(factor*float64(count))))
}

// Diversify picks count items from a sorted list so that no diversity group
// exceeds MaxPerGroup. When too few groups exist to fill count, the best
// remaining items are appended after the diverse selection; relaxed is how
// many were appended that way.
func Diversify[M Match](sorted []Ranked[M], count int, factor float64) (selected []Ranked[M], relaxed int) {
	if count <= 0 || len(sorted) == 0 {
		return nil, 0
	}
	limit := MaxPerGroup(count, factor)

	selected = make([]Ranked[M], 0, min(count, len(sorted)))
	var overflow []Ranked[M]
	perGroup := make(map[string]int)

	for _, r := range sorted {
		if len(selected) == count {
			break
		}
		key := r.Job.DiversityKey()
		if perGroup[key] >= limit {
			overflow = append(overflow, r)
			continue
		}
		perGroup[key]++
		selected = append(selected, r)
	}

	for _, r := range overflow {
		if len(selected) == count {
			break
		}
		selected = append(selected, r)
		relaxed++
	}
	return selected, relaxed
}
