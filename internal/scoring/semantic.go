package scoring

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ideamlabs/guidesignal-matcher/internal/embedding"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
	"github.com/ideamlabs/guidesignal-matcher/internal/workerpool"
)

// Submitter hands CPU-bound work to the worker pool.
type Submitter interface {
	Submit(ctx context.Context, op workerpool.Operation, payload any) (any, error)
}

// VectorPair is the payload of an OpSimilarity task.
type VectorPair struct {
	A, B []float32
}

// PoolHandlers registers the embedding and similarity operations served by
// the worker pool.
func PoolHandlers(embedder embedding.Embedder) map[workerpool.Operation]workerpool.Handler {
	return map[workerpool.Operation]workerpool.Handler{
		workerpool.OpEmbedding: func(ctx context.Context, payload any) (any, error) {
			text, ok := payload.(string)
			if !ok {
				return nil, fmt.Errorf("embedding payload is %T, want string", payload)
			}
			return embedder.Embed(ctx, text)
		},
		workerpool.OpSimilarity: func(_ context.Context, payload any) (any, error) {
			pair, ok := payload.(VectorPair)
			if !ok {
				return nil, fmt.Errorf("similarity payload is %T, want VectorPair", payload)
			}
			return embedding.Cosine(pair.A, pair.B), nil
		},
	}
}

// Semantic is the cosine similarity of the candidate and job text embeddings,
// floored at 0.
type Semantic struct {
	pool Submitter
}

func NewSemantic(pool Submitter) *Semantic {
	return &Semantic{pool: pool}
}

func (s *Semantic) Component() weights.Component { return weights.Semantic }

func (s *Semantic) Score(ctx context.Context, c *profile.Candidate, j *profile.Job) (float64, error) {
	candidateText, jobText := c.Text(), j.Text()
	if strings.TrimSpace(candidateText) == "" || strings.TrimSpace(jobText) == "" {
		return 0, nil
	}

	var a, b []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = s.embed(gctx, candidateText)
		return err
	})
	g.Go(func() (err error) {
		b, err = s.embed(gctx, jobText)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	v, err := s.pool.Submit(ctx, workerpool.OpSimilarity, VectorPair{A: a, B: b})
	if err != nil {
		return 0, fmt.Errorf("similarity: %w", err)
	}
	sim, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("similarity result is %T", v)
	}
	if sim < 0 {
		return 0, nil
	}
	if sim > 1 {
		return 1, nil
	}
	return sim, nil
}

func (s *Semantic) embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.pool.Submit(ctx, workerpool.OpEmbedding, text)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	vec, ok := v.([]float32)
	if !ok {
		return nil, fmt.Errorf("embedding result is %T", v)
	}
	return vec, nil
}
