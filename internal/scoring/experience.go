package scoring

import (
	"context"
	"math"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/textsim"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

const (
	experienceSteepness = 8.0
	experienceMidpoint  = 0.6

	relevantRoleThreshold = 0.7
	relevantRoleBonus     = 0.05
	maxRelevantRoleBonus  = 0.1
)

// Experience maps the ratio of candidate years to required years through a
// sigmoid centred at 0.6 and adds a small bonus for prior roles whose title
// resembles the job title.
type Experience struct {
	sim textsim.Func
}

func NewExperience(sim textsim.Func) *Experience {
	if sim == nil {
		sim = textsim.Similarity
	}
	return &Experience{sim: sim}
}

func (e *Experience) Component() weights.Component { return weights.Experience }

func (e *Experience) Score(_ context.Context, c *profile.Candidate, j *profile.Job) (float64, error) {
	required := j.YearsRequired()
	if required <= 0 {
		return 1, nil
	}

	ratio := c.TotalYears() / required
	score := 1 / (1 + math.Exp(-experienceSteepness*(ratio-experienceMidpoint)))

	var bonus float64
	for _, role := range c.Experience {
		if e.sim(role.Title, j.Title) > relevantRoleThreshold {
			bonus += relevantRoleBonus
		}
	}
	score += math.Min(bonus, maxRelevantRoleBonus)

	return math.Min(score, 1), nil
}
