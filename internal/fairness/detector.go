package fairness

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ideamlabs/guidesignal-matcher/internal/profile"
)

const DefaultMinGroupSamples = 10

// Detector estimates whether a raw score favours the candidate's group.
// Implementations must be safe for concurrent use.
type Detector interface {
	// Observe records a raw score for later comparisons.
	Observe(raw float64, c *profile.Candidate, j *profile.Job)
	// Indicator returns a non-negative bias estimate for c and the attribute
	// responsible for it.
	Indicator(raw float64, c *profile.Candidate, j *profile.Job) (float64, string)
}

type group struct {
	count int
	sum   float64
}

func (g group) mean() float64 {
	if g.count == 0 {
		return 0
	}
	return g.sum / float64(g.count)
}

// DisparityDetector tracks mean raw scores per protected-attribute value
// (demographic parity). The indicator for a candidate is how far their
// group's mean exceeds the mean of everyone else on the same attribute,
// taking the largest gap across attributes. Groups with fewer than
// MinGroupSamples observations are ignored.
type DisparityDetector struct {
	MinGroupSamples int

	mu     sync.Mutex
	groups map[string]map[string]*group
}

func NewDisparityDetector(minGroupSamples int) *DisparityDetector {
	if minGroupSamples <= 0 {
		minGroupSamples = DefaultMinGroupSamples
	}
	return &DisparityDetector{
		MinGroupSamples: minGroupSamples,
		groups:          make(map[string]map[string]*group),
	}
}

func normalizeAttr(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (d *DisparityDetector) Observe(raw float64, c *profile.Candidate, _ *profile.Job) {
	if c == nil || len(c.Attributes) == 0 || math.IsNaN(raw) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for attr, value := range c.Attributes {
		attr, value = normalizeAttr(attr), normalizeAttr(value)
		if attr == "" || value == "" {
			continue
		}
		byValue, ok := d.groups[attr]
		if !ok {
			byValue = make(map[string]*group)
			d.groups[attr] = byValue
		}
		g, ok := byValue[value]
		if !ok {
			g = &group{}
			byValue[value] = g
		}
		g.count++
		g.sum += raw
	}
}

func (d *DisparityDetector) Indicator(_ float64, c *profile.Candidate, _ *profile.Job) (float64, string) {
	if c == nil || len(c.Attributes) == 0 {
		return 0, ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var worst float64
	var worstAttr string
	for attr, value := range c.Attributes {
		attr, value = normalizeAttr(attr), normalizeAttr(value)
		byValue := d.groups[attr]
		own, ok := byValue[value]
		if !ok || own.count < d.MinGroupSamples {
			continue
		}

		var rest group
		for v, g := range byValue {
			if v == value || g.count < d.MinGroupSamples {
				continue
			}
			rest.count += g.count
			rest.sum += g.sum
		}
		if rest.count == 0 {
			continue
		}

		gap := own.mean() - rest.mean()
		if gap > worst || (gap == worst && gap > 0 && attr < worstAttr) {
			worst, worstAttr = gap, attr
		}
	}
	return worst, worstAttr
}

// GroupStats describes one attribute value.
type GroupStats struct {
	Count     int     `json:"count"`
	MeanScore float64 `json:"mean_score"`
}

// AttributeDisparity summarises one protected attribute. ImpactRatio is the
// lowest group mean over the highest (1 is perfect parity).
type AttributeDisparity struct {
	Groups      map[string]GroupStats `json:"groups"`
	ImpactRatio float64               `json:"impact_ratio"`
	MaxGap      float64               `json:"max_gap"`
}

// Disparities reports every attribute that has at least two comparable groups.
func (d *DisparityDetector) Disparities() map[string]AttributeDisparity {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]AttributeDisparity, len(d.groups))
	for attr, byValue := range d.groups {
		ad := AttributeDisparity{Groups: make(map[string]GroupStats, len(byValue))}
		var means []float64
		for value, g := range byValue {
			ad.Groups[value] = GroupStats{Count: g.count, MeanScore: g.mean()}
			if g.count >= d.MinGroupSamples {
				means = append(means, g.mean())
			}
		}
		if len(means) < 2 {
			ad.ImpactRatio = 1
			out[attr] = ad
			continue
		}
		sort.Float64s(means)
		lo, hi := means[0], means[len(means)-1]
		ad.MaxGap = hi - lo
		ad.ImpactRatio = 1
		if hi > 0 {
			ad.ImpactRatio = lo / hi
		}
		out[attr] = ad
	}
	return out
}
