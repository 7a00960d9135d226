package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/ideamlabs/guidesignal-matcher/internal/textsim"
)

const defaultHashingDimension = 256

// Hashing is an offline embedder using signed feature hashing of unigrams and bigrams.
// It is CPU-bound and deterministic.
type Hashing struct {
	dim int
}

func NewHashing(dimension int) *Hashing {
	if dimension <= 0 {
		dimension = defaultHashingDimension
	}
	return &Hashing{dim: dimension}
}

func (h *Hashing) Model() string {
	return fmt.Sprintf("hashing-%d", h.dim)
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := strings.FieldsFunc(textsim.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})

	vec := make([]float32, h.dim)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *Hashing) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum32()
	idx := int(sum % uint32(h.dim))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
