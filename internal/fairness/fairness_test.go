package fairness

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

func candidate(attrs map[string]string) *profile.Candidate {
	return &profile.Candidate{ID: "c", Attributes: attrs}
}

func seed(d Detector, n int, score float64, attrs map[string]string) {
	for i := 0; i < n; i++ {
		d.Observe(score, candidate(attrs), nil)
	}
}

func TestDisparityIndicator(t *testing.T) {
	d := NewDisparityDetector(5)
	seed(d, 10, 0.8, map[string]string{"gender": "a"})
	seed(d, 10, 0.5, map[string]string{"gender": "b"})

	ind, attr := d.Indicator(0.8, candidate(map[string]string{"gender": "A"}), nil)
	assert.InDelta(t, 0.3, ind, 1e-9)
	assert.Equal(t, "gender", attr)

	ind, _ = d.Indicator(0.5, candidate(map[string]string{"gender": "b"}), nil)
	assert.Equal(t, 0.0, ind, "disadvantaged group is never corrected")

	ind, _ = d.Indicator(0.9, candidate(nil), nil)
	assert.Equal(t, 0.0, ind)
}

func TestDisparityIgnoresSmallGroups(t *testing.T) {
	d := NewDisparityDetector(5)
	seed(d, 10, 0.9, map[string]string{"age_band": "young"})
	seed(d, 2, 0.1, map[string]string{"age_band": "older"})

	ind, _ := d.Indicator(0.9, candidate(map[string]string{"age_band": "young"}), nil)
	assert.Equal(t, 0.0, ind)

	disp := d.Disparities()["age_band"]
	assert.Equal(t, 1.0, disp.ImpactRatio)
	assert.Equal(t, 2, disp.Groups["older"].Count)
}

func TestAdjusterFiresAboveThreshold(t *testing.T) {
	d := NewDisparityDetector(5)
	seed(d, 20, 0.9, map[string]string{"gender": "a"})
	seed(d, 20, 0.4, map[string]string{"gender": "b"})
	a := NewAdjuster(d, Config{Threshold: 0.1, MaxCorrection: 0.2}, nil)

	adj := a.Adjust(0.9, candidate(map[string]string{"gender": "a"}), nil)
	require.True(t, adj.Applied)
	assert.Equal(t, "gender", adj.Attribute)
	// the gap is ~0.5, so the correction is capped at 20%
	assert.InDelta(t, 0.72, adj.Score, 1e-9)

	adj = a.Adjust(0.4, candidate(map[string]string{"gender": "b"}), nil)
	assert.False(t, adj.Applied)
	assert.Equal(t, 0.4, adj.Score)

	r := a.Report()
	assert.Equal(t, int64(2), r.Evaluated)
	assert.Equal(t, int64(1), r.Adjusted)
	assert.Less(t, r.OverallFairness, 0.5)
	assert.Contains(t, r.DisparityMetrics, "gender")
}

func TestAdjusterBelowThresholdLeavesScore(t *testing.T) {
	d := NewDisparityDetector(5)
	seed(d, 20, 0.62, map[string]string{"gender": "a"})
	seed(d, 20, 0.6, map[string]string{"gender": "b"})
	a := NewAdjuster(d, Config{Threshold: 0.1}, nil)

	adj := a.Adjust(0.62, candidate(map[string]string{"gender": "a"}), nil)
	assert.False(t, adj.Applied)
	assert.Equal(t, 0.62, adj.Score)
	assert.Greater(t, a.Report().OverallFairness, 0.9)
}

type constDetector float64

func (constDetector) Observe(float64, *profile.Candidate, *profile.Job) {}
func (c constDetector) Indicator(float64, *profile.Candidate, *profile.Job) (float64, string) {
	return float64(c), "stub"
}

func TestAdjustedNeverExceedsRaw(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	indicators := []float64{-1, 0, 0.05, 0.5, 3, math.Inf(1), math.NaN()}

	for _, ind := range indicators {
		a := NewAdjuster(constDetector(ind), Config{Threshold: 0.1, MaxCorrection: 0.2}, nil)
		for i := 0; i < 200; i++ {
			raw := r.Float64()
			adj := a.Adjust(raw, candidate(nil), nil)
			assert.LessOrEqual(t, adj.Score, raw, "indicator %v", ind)
			assert.GreaterOrEqual(t, adj.Score, 0.0)
		}
	}

	a := NewAdjuster(constDetector(1), Config{Threshold: 0.1}, nil)
	assert.Equal(t, 0.0, a.Adjust(math.NaN(), candidate(nil), nil).Score)
	assert.Equal(t, 1.0, a.Report().OverallFairness, "detector without disparities reports parity")
}
