package learning

import (
	"errors"
	"fmt"
	"math"

	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

const (
	recalibrationIterations = 1000
	recalibrationStep       = 0.5
)

var ErrInsufficientData = errors.New("insufficient feedback for recalibration")

// Recalibration is the outcome of a batch fit.
type Recalibration struct {
	Weights      weights.Vector `json:"weights"`
	Coefficients weights.Vector `json:"coefficients"`
	Samples      int            `json:"samples"`
	Positives    int            `json:"positives"`
	Accuracy     float64        `json:"accuracy"`
}

// Recalibrate fits a class-balanced, L2-regularized logistic regression of
// success (interviewed or better) on the standardized component scores and
// turns the absolute coefficients into a normalized weight vector.
func Recalibrate(entries []Entry, minSamples int) (Recalibration, error) {
	n := len(entries)
	if n < minSamples {
		return Recalibration{}, fmt.Errorf("%w: %d samples, need %d", ErrInsufficientData, n, minSamples)
	}

	y := make([]float64, n)
	positives := 0
	for i, e := range entries {
		if e.Event.Outcome.Success() {
			y[i] = 1
			positives++
		}
	}
	if positives < 2 {
		return Recalibration{}, fmt.Errorf("%w: %d positive outcomes", ErrInsufficientData, positives)
	}
	if positives == n {
		return Recalibration{}, fmt.Errorf("%w: no negative outcomes", ErrInsufficientData)
	}

	x := standardize(entries)

	// balanced class weights
	wPos := float64(n) / (2 * float64(positives))
	wNeg := float64(n) / (2 * float64(n-positives))
	lambda := 1 / float64(n)

	var coef weights.Vector
	var bias float64
	for it := 0; it < recalibrationIterations; it++ {
		var grad weights.Vector
		var gradBias, total float64
		for i := range x {
			p := sigmoid(coef.Dot(x[i]) + bias)
			sw := wNeg
			if y[i] == 1 {
				sw = wPos
			}
			diff := sw * (p - y[i])
			for k := range grad {
				grad[k] += diff * x[i][k]
			}
			gradBias += diff
			total += sw
		}
		for k := range coef {
			coef[k] -= recalibrationStep * (grad[k]/total + lambda*coef[k])
		}
		bias -= recalibrationStep * gradBias / total
	}

	var abs weights.Vector
	for k, c := range coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Recalibration{}, fmt.Errorf("%w: coefficient %s diverged", ErrUpdateRejected, weights.Component(k))
		}
		abs[k] = math.Abs(c)
	}
	normalized, err := abs.Normalize()
	if err != nil {
		return Recalibration{}, fmt.Errorf("%w: %w", ErrInsufficientData, err)
	}

	correct := 0
	for i := range x {
		predicted := 0.0
		if sigmoid(coef.Dot(x[i])+bias) >= 0.5 {
			predicted = 1
		}
		if predicted == y[i] {
			correct++
		}
	}

	return Recalibration{
		Weights:      normalized,
		Coefficients: coef,
		Samples:      n,
		Positives:    positives,
		Accuracy:     float64(correct) / float64(n),
	}, nil
}

// standardize scales each component to zero mean and unit variance. Constant
// components become all zeros.
func standardize(entries []Entry) []weights.Vector {
	n := float64(len(entries))
	var mean, std weights.Vector
	for _, e := range entries {
		for k, v := range e.Components {
			mean[k] += v
		}
	}
	for k := range mean {
		mean[k] /= n
	}
	for _, e := range entries {
		for k, v := range e.Components {
			d := v - mean[k]
			std[k] += d * d
		}
	}
	for k := range std {
		std[k] = math.Sqrt(std[k] / n)
	}

	out := make([]weights.Vector, len(entries))
	for i, e := range entries {
		for k, v := range e.Components {
			if std[k] > 1e-12 {
				out[i][k] = (v - mean[k]) / std[k]
			}
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
