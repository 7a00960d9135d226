package scoring

import "github.com/ideamlabs/guidesignal-matcher/internal/textsim"

// Standard returns the five scorers in component order.
func Standard(pool Submitter, sim textsim.Func) []Scorer {
	return []Scorer{
		NewSemantic(pool),
		NewSkills(sim),
		NewExperience(sim),
		NewLocation(),
		NewCulture(sim),
	}
}
