package weights

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Tolerance is the allowed drift of a normalized vector's sum from 1.
const Tolerance = 1e-6

var ErrInvalidVector = errors.New("invalid weight vector")

// Component identifies one feature scorer.
type Component int

const (
	Semantic Component = iota
	Skills
	Experience
	Location
	Culture

	NumComponents = 5
)

// Components lists every component in vector order.
var Components = [NumComponents]Component{Semantic, Skills, Experience, Location, Culture}

var componentNames = [NumComponents]string{"semantic", "skills", "experience", "location", "culture"}

func (c Component) String() string {
	if c < 0 || int(c) >= NumComponents {
		return fmt.Sprintf("component(%d)", int(c))
	}
	return componentNames[c]
}

func ParseComponent(name string) (Component, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range componentNames {
		if n == name {
			return Component(i), nil
		}
	}
	return 0, fmt.Errorf("unknown component %q", name)
}

// Vector holds one value per component. It carries both the weight
// coefficients and the per-component scores they are applied to.
type Vector [NumComponents]float64

// Default is the vector used until feedback has moved it.
func Default() Vector {
	return Vector{
		Semantic:   0.30,
		Skills:     0.35,
		Experience: 0.15,
		Location:   0.10,
		Culture:    0.10,
	}
}

func (v Vector) Get(c Component) float64 { return v[c] }

func (v Vector) Sum() float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

// Dot is the weighted sum of scores under v.
func (v Vector) Dot(scores Vector) float64 {
	var s float64
	for i := range v {
		s += v[i] * scores[i]
	}
	return s
}

// Normalize clamps negative entries to zero and rescales to sum to 1.
func (v Vector) Normalize() (Vector, error) {
	var out Vector
	var sum float64
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Vector{}, fmt.Errorf("%w: %s is %v", ErrInvalidVector, Component(i), x)
		}
		if x < 0 {
			x = 0
		}
		out[i] = x
		sum += x
	}
	if sum <= 0 {
		return Vector{}, fmt.Errorf("%w: all components are zero", ErrInvalidVector)
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

// Validate checks that v is a usable weight vector: finite, within [0,1],
// and summing to 1.
func (v Vector) Validate() error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidVector, Component(i), x)
		}
		if x < 0 || x > 1 {
			return fmt.Errorf("%w: %s=%.6f out of range", ErrInvalidVector, Component(i), x)
		}
	}
	if sum := v.Sum(); math.Abs(sum-1) > Tolerance {
		return fmt.Errorf("%w: sum is %.6f", ErrInvalidVector, sum)
	}
	return nil
}

// Blend mixes v toward updated: momentum*v + (1-momentum)*updated.
func (v Vector) Blend(updated Vector, momentum float64) Vector {
	var out Vector
	for i := range v {
		out[i] = momentum*v[i] + (1-momentum)*updated[i]
	}
	return out
}

// Largest returns the component with the highest value, lowest index on ties.
func (v Vector) Largest() Component {
	best := Component(0)
	for i := 1; i < NumComponents; i++ {
		if v[i] > v[best] {
			best = Component(i)
		}
	}
	return best
}

func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumComponents)
	for i, x := range v {
		m[componentNames[i]] = x
	}
	return m
}

// FromMap builds a vector from component names. Missing components are zero.
func FromMap(m map[string]float64) (Vector, error) {
	var v Vector
	for name, x := range m {
		c, err := ParseComponent(name)
		if err != nil {
			return Vector{}, err
		}
		v[c] = x
	}
	return v, nil
}

func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

func (v *Vector) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Vector) String() string {
	parts := make([]string, 0, NumComponents)
	for i, x := range v {
		parts = append(parts, fmt.Sprintf("%s=%.4f", componentNames[i], x))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
