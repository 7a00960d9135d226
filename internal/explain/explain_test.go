package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

func TestTopFactors(t *testing.T) {
	scores := weights.Vector{0.5, 1.0, 0.2, 1.0, 0.9}
	top := TopFactors(scores, weights.Default(), 3)

	require.Len(t, top, 3)
	assert.Equal(t, "skills", top[0].Component)
	assert.Equal(t, "semantic", top[1].Component)
	assert.Equal(t, "location", top[2].Component)
	assert.InDelta(t, 0.35, top[0].Contribution, 1e-9)
}

func TestBand(t *testing.T) {
	assert.Equal(t, "excellent", Band(0.81))
	assert.Equal(t, "good", Band(0.8))
	assert.Equal(t, "good", Band(0.61))
	assert.Equal(t, "moderate", Band(0.6))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 1.0, Confidence(weights.Vector{1, 1, 1, 1, 1}), 1e-9)
	assert.Equal(t, 0.0, Confidence(weights.Vector{}))
	// mean 0.5, population stddev sqrt(0.2)
	assert.InDelta(t, 0.2764, Confidence(weights.Vector{0, 1, 0, 1, 0.5}), 1e-4)
}

func TestGenerate(t *testing.T) {
	exp := Generate(Input{
		Scores:        weights.Vector{0.9, 0.3, 0.4, 1, 0.5},
		Weights:       weights.Default(),
		Score:         0.55,
		MissingSkills: []string{"Go", "Kubernetes"},
	})

	assert.Equal(t, "moderate", exp.Band)
	assert.Contains(t, exp.Reasoning, "Moderate match at 55%")
	assert.Contains(t, exp.Reasoning, "semantic (90%)")
	require.Len(t, exp.Suggestions, 2)
	assert.Equal(t, "Build or highlight experience with Go, Kubernetes", exp.Suggestions[0])
	assert.Contains(t, exp.Suggestions[1], "experience")
	assert.GreaterOrEqual(t, exp.Confidence, 0.0)
	assert.LessOrEqual(t, exp.Confidence, 1.0)
}

func TestSuggestionsAreCapped(t *testing.T) {
	exp := Generate(Input{Scores: weights.Vector{}, Weights: weights.Default(), MaxSuggestions: 2})
	assert.Len(t, exp.Suggestions, 2)

	exp = Generate(Input{Scores: weights.Vector{1, 1, 1, 1, 1}, Weights: weights.Default(), Score: 1})
	assert.Empty(t, exp.Suggestions)
	assert.Equal(t, "excellent", exp.Band)
}
