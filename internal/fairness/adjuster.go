// Package fairness corrects match scores that favour a protected group.
//
// The adjusted score is never higher than the raw score. A correction fires
// only when the detector's indicator exceeds the configured threshold and is
// proportional to the indicator, capped at MaxCorrection.
package fairness

import (
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

const (
	DefaultThreshold     = 0.1
	DefaultMaxCorrection = 0.2
)

type Config struct {
	Threshold     float64
	MaxCorrection float64
}

// Adjustment is the outcome of one Adjust call.
type Adjustment struct {
	Raw       float64 `json:"raw"`
	Score     float64 `json:"score"`
	Indicator float64 `json:"indicator"`
	Applied   bool    `json:"applied"`
	Attribute string  `json:"attribute,omitempty"`
}

type Adjuster struct {
	cfg      Config
	detector Detector
	logger   *zap.Logger

	evaluated atomic.Int64
	applied   atomic.Int64
}

func NewAdjuster(detector Detector, cfg Config, l *zap.Logger) *Adjuster {
	if cfg.MaxCorrection <= 0 || cfg.MaxCorrection > 1 {
		cfg.MaxCorrection = DefaultMaxCorrection
	}
	if detector == nil {
		detector = NewDisparityDetector(0)
	}
	return &Adjuster{cfg: cfg, detector: detector, logger: logger.OrNop(l)}
}

// Adjust records raw with the detector and returns a score no greater than raw.
func (a *Adjuster) Adjust(raw float64, c *profile.Candidate, j *profile.Job) Adjustment {
	if math.IsNaN(raw) || raw < 0 {
		raw = 0
	}
	a.evaluated.Add(1)
	a.detector.Observe(raw, c, j)

	indicator, attr := a.detector.Indicator(raw, c, j)
	adj := Adjustment{Raw: raw, Score: raw, Indicator: indicator}
	if math.IsNaN(indicator) || indicator <= a.cfg.Threshold {
		return adj
	}

	correction := math.Min(indicator, a.cfg.MaxCorrection)
	adj.Score = raw * (1 - correction)
	if adj.Score > raw {
		adj.Score = raw
	}
	adj.Applied = true
	adj.Attribute = attr
	a.applied.Add(1)

	a.logger.Debug("fairness correction applied",
		zap.String("attribute", attr),
		zap.Float64("indicator", indicator),
		zap.Float64("raw", raw),
		zap.Float64("adjusted", adj.Score),
	)
	return adj
}

// Report summarises detector state and how often corrections fired.
type Report struct {
	OverallFairness  float64                       `json:"overall_fairness"`
	DisparityMetrics map[string]AttributeDisparity `json:"disparity_metrics"`
	Evaluated        int64                         `json:"evaluated"`
	Adjusted         int64                         `json:"adjusted"`
	Threshold        float64                       `json:"threshold"`
}

// Report includes per-attribute disparities when the detector provides them.
func (a *Adjuster) Report() Report {
	r := Report{
		OverallFairness:  1,
		DisparityMetrics: map[string]AttributeDisparity{},
		Evaluated:        a.evaluated.Load(),
		Adjusted:         a.applied.Load(),
		Threshold:        a.cfg.Threshold,
	}

	dd, ok := a.detector.(interface {
		Disparities() map[string]AttributeDisparity
	})
	if !ok {
		return r
	}
	r.DisparityMetrics = dd.Disparities()
	for _, m := range r.DisparityMetrics {
		if m.ImpactRatio < r.OverallFairness {
			r.OverallFairness = m.ImpactRatio
		}
	}
	return r
}
