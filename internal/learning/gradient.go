package learning

import (
	"fmt"

	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

// GradientStep moves current toward the components that explain the gap
// between expected and actual score:
//
//	updated_i = current_i + lr * (expected - actual) * component_i
//
// updated is renormalized and blended back with momentum. The result is
// validated; NaN or out-of-range vectors are rejected.
func GradientStep(current, components weights.Vector, expected, actual, lr, momentum float64) (weights.Vector, error) {
	delta := lr * (expected - actual)

	var updated weights.Vector
	for i := range current {
		updated[i] = current[i] + delta*components[i]
	}

	normalized, err := updated.Normalize()
	if err != nil {
		return weights.Vector{}, fmt.Errorf("%w: %w", ErrUpdateRejected, err)
	}

	next, err := current.Blend(normalized, momentum).Normalize()
	if err != nil {
		return weights.Vector{}, fmt.Errorf("%w: %w", ErrUpdateRejected, err)
	}
	if err := next.Validate(); err != nil {
		return weights.Vector{}, fmt.Errorf("%w: %w", ErrUpdateRejected, err)
	}
	return next, nil
}
