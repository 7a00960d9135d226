// Package textsim provides the text similarity function injected into the
// skill and culture scorers. Callers may replace it with an NLP-backed one.
package textsim

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Func scores the similarity of two short texts in [0,1].
type Func func(a, b string) float64

// Normalize applies NFKC, lowercases, strips control characters and collapses whitespace.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Similarity is the default Func: the larger of token Jaccard and padded
// character-trigram Dice overlap over normalized text.
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	tokens := jaccard(tokenSet(a), tokenSet(b))
	grams := dice(trigrams(a), trigrams(b))
	if tokens > grams {
		return tokens
	}
	return grams
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	}) {
		set[f] = struct{}{}
	}
	return set
}

func trigrams(s string) map[string]int {
	runes := []rune(" " + s + " ")
	grams := make(map[string]int)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])]++
	}
	return grams
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func dice(a, b map[string]int) float64 {
	var total, inter int
	for k, n := range a {
		total += n
		if m, ok := b[k]; ok {
			inter += min(n, m)
		}
	}
	for _, n := range b {
		total += n
	}
	if total == 0 {
		return 0
	}
	return 2 * float64(inter) / float64(total)
}
