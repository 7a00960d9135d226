package scoring

import (
	"context"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
	"github.com/ideamlabs/guidesignal-matcher/internal/textsim"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

const (
	SkillMatchThreshold = 0.7
	MissingSkillPenalty = 0.2
)

// Skills pairs each candidate skill with its closest job skill. Pairs above
// SkillMatchThreshold count as matches and are averaged; every required or
// high-importance job skill left unmatched costs MissingSkillPenalty.
type Skills struct {
	sim textsim.Func
}

func NewSkills(sim textsim.Func) *Skills {
	if sim == nil {
		sim = textsim.Similarity
	}
	return &Skills{sim: sim}
}

func (s *Skills) Component() weights.Component { return weights.Skills }

func (s *Skills) Score(_ context.Context, c *profile.Candidate, j *profile.Job) (float64, error) {
	if len(j.Skills) == 0 {
		return 1, nil
	}

	avg, covered := s.match(c, j)
	var missing int
	for i, want := range j.Skills {
		if !covered[i] && want.Importance.Critical() {
			missing++
		}
	}

	score := avg - MissingSkillPenalty*float64(missing)
	if score < 0 {
		return 0, nil
	}
	return score, nil
}

// Missing lists the required and high-importance job skills no candidate
// skill matched.
func (s *Skills) Missing(c *profile.Candidate, j *profile.Job) []string {
	_, covered := s.match(c, j)
	var out []string
	for i, want := range j.Skills {
		if !covered[i] && want.Importance.Critical() {
			out = append(out, want.Name)
		}
	}
	return out
}

// match returns the mean similarity of matched candidate skills and which
// job skills were matched.
func (s *Skills) match(c *profile.Candidate, j *profile.Job) (float64, []bool) {
	covered := make([]bool, len(j.Skills))
	var total float64
	var matched int
	for _, have := range c.Skills {
		best, bestIdx := 0.0, -1
		for i, want := range j.Skills {
			if sim := s.sim(have, want.Name); sim > best {
				best, bestIdx = sim, i
			}
		}
		if best > SkillMatchThreshold {
			total += best
			matched++
			covered[bestIdx] = true
		}
	}
	if matched == 0 {
		return 0, covered
	}
	return total / float64(matched), covered
}
