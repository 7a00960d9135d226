package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "golang dev", Normalize("  GoLang\t\tＤｅｖ \n"))
	assert.Equal(t, "", Normalize("   "))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Go", "go"))
	assert.Equal(t, 0.0, Similarity("", "go"))
	assert.Equal(t, 0.0, Similarity("Rust", "Excel"))

	assert.Greater(t, Similarity("PostgreSQL", "Postgres"), 0.7)
	assert.Greater(t, Similarity("distributed systems", "systems, distributed"), 0.9)
	assert.Less(t, Similarity("Go", "Golang"), 0.7)

	ab := Similarity("Kubernetes operators", "kubernetes")
	ba := Similarity("kubernetes", "Kubernetes operators")
	assert.InDelta(t, ab, ba, 1e-12, "similarity must be symmetric")
}
