// Package explain turns component scores into a human-readable explanation.
package explain

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ideamlabs/guidesignal-matcher/internal/utils"
	"github.com/ideamlabs/guidesignal-matcher/internal/weights"
)

const (
	DefaultMaxSuggestions = 3
	topFactorCount        = 3

	excellentBand = 0.8
	goodBand      = 0.6

	skillsSuggestionThreshold     = 0.7
	experienceSuggestionThreshold = 0.6
	locationSuggestionThreshold   = 0.5
	cultureSuggestionThreshold    = 0.5
	semanticSuggestionThreshold   = 0.4
)

// Factor is one component's share of the final score.
type Factor struct {
	Component    string  `json:"component"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

type Explanation struct {
	TopFactors  []Factor `json:"top_factors"`
	Band        string   `json:"band"`
	Reasoning   string   `json:"reasoning"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type Input struct {
	Scores  weights.Vector
	Weights weights.Vector
	Score   float64
	// MissingSkills names critical job skills the candidate lacks.
	MissingSkills  []string
	MaxSuggestions int
}

// Generate builds the explanation for one match.
func Generate(in Input) Explanation {
	if in.MaxSuggestions <= 0 {
		in.MaxSuggestions = DefaultMaxSuggestions
	}

	factors := TopFactors(in.Scores, in.Weights, topFactorCount)
	band := Band(in.Score)

	return Explanation{
		TopFactors:  factors,
		Band:        band,
		Reasoning:   reasoning(band, in.Score, factors),
		Confidence:  Confidence(in.Scores),
		Suggestions: suggestions(in),
	}
}

// TopFactors ranks components by weight times score.
func TopFactors(scores, w weights.Vector, n int) []Factor {
	factors := make([]Factor, 0, weights.NumComponents)
	for _, c := range weights.Components {
		factors = append(factors, Factor{
			Component:    c.String(),
			Score:        scores[c],
			Weight:       w[c],
			Contribution: scores[c] * w[c],
		})
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Contribution > factors[j].Contribution
	})
	if n < len(factors) {
		factors = factors[:n]
	}
	return factors
}

// Band names the score range: excellent above 0.8, good above 0.6, else moderate.
func Band(score float64) string {
	switch {
	case score > excellentBand:
		return "excellent"
	case score > goodBand:
		return "good"
	default:
		return "moderate"
	}
}

// Confidence is min(1, (1 - stddev) * mean) over the component scores,
// clamped to [0,1].
func Confidence(scores weights.Vector) float64 {
	var mean float64
	for _, s := range scores {
		mean += s
	}
	mean /= weights.NumComponents

	var variance float64
	for _, s := range scores {
		variance += (s - mean) * (s - mean)
	}
	std := math.Sqrt(variance / weights.NumComponents)

	return utils.Clamp01(math.Min(1, (1-std)*mean))
}

func reasoning(band string, score float64, factors []Factor) string {
	names := make([]string, 0, len(factors))
	for _, f := range factors {
		if f.Contribution > 0 {
			names = append(names, fmt.Sprintf("%s (%.0f%%)", f.Component, f.Score*100))
		}
	}
	drivers := "no single factor stands out"
	if len(names) > 0 {
		drivers = "driven by " + strings.Join(names, ", ")
	}

	switch band {
	case "excellent":
		return fmt.Sprintf("Excellent match at %.0f%%, %s.", score*100, drivers)
	case "good":
		return fmt.Sprintf("Good match at %.0f%%, %s.", score*100, drivers)
	default:
		return fmt.Sprintf("Moderate match at %.0f%%, %s. Some requirements are not covered yet.", score*100, drivers)
	}
}

func suggestions(in Input) []string {
	var out []string
	add := func(s string) {
		if len(out) < in.MaxSuggestions {
			out = append(out, s)
		}
	}

	if in.Scores[weights.Skills] < skillsSuggestionThreshold {
		if len(in.MissingSkills) > 0 {
			add("Build or highlight experience with " + strings.Join(in.MissingSkills, ", "))
		} else {
			add("Highlight the skills from the job description that you already have")
		}
	}
	if in.Scores[weights.Experience] < experienceSuggestionThreshold {
		add("Gain more experience in roles similar to this one, or describe related work in more detail")
	}
	if in.Scores[weights.Semantic] < semanticSuggestionThreshold {
		add("Describe your background using terms closer to the job description")
	}
	if in.Scores[weights.Location] < locationSuggestionThreshold {
		add("Consider remote roles or positions closer to your location")
	}
	if in.Scores[weights.Culture] < cultureSuggestionThreshold {
		add("Mention the values you share with the company")
	}
	return out
}
