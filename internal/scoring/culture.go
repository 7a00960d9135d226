package scoring

import (
	"context"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/textsim"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

const neutralCultureScore = 0.5

// Culture compares candidate values with company values. Each value on
// either side is paired with its closest counterpart and the pair
// similarities are averaged.
type Culture struct {
	sim textsim.Func
}

func NewCulture(sim textsim.Func) *Culture {
	if sim == nil {
		sim = textsim.Similarity
	}
	return &Culture{sim: sim}
}

func (cu *Culture) Component() weights.Component { return weights.Culture }

func (cu *Culture) Score(_ context.Context, c *profile.Candidate, j *profile.Job) (float64, error) {
	mine, theirs := c.Values, j.Company.Values
	if len(mine) == 0 || len(theirs) == 0 {
		return neutralCultureScore, nil
	}

	var total float64
	for _, v := range mine {
		total += cu.best(v, theirs)
	}
	for _, v := range theirs {
		total += cu.best(v, mine)
	}
	return total / float64(len(mine)+len(theirs)), nil
}

func (cu *Culture) best(v string, others []string) float64 {
	var best float64
	for _, o := range others {
		if s := cu.sim(v, o); s > best {
			best = s
		}
	}
	return best
}
