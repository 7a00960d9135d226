package scoring

import (
	"context"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

const unknownLocationScore = 0.5

var distanceSteps = []struct {
	below float64
	score float64
}{
	{10, 1.0},
	{50, 0.8},
	{200, 0.6},
	{500, 0.3},
}

// Location is 1 for remote jobs and otherwise steps down with distance in km.
type Location struct{}

func NewLocation() *Location { return &Location{} }

func (Location) Component() weights.Component { return weights.Location }

func (Location) Score(_ context.Context, c *profile.Candidate, j *profile.Job) (float64, error) {
	if j.Remote {
		return 1, nil
	}
	km, ok := c.Location.DistanceKm(j.Location)
	if !ok {
		return unknownLocationScore, nil
	}
	return DistanceScore(km), nil
}

// DistanceScore is the step function applied to a known distance.
func DistanceScore(km float64) float64 {
	for _, step := range distanceSteps {
		if km < step.below {
			return step.score
		}
	}
	return 0.1
}
