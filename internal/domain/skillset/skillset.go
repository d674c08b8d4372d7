// Package skillset defines the eight difficulty dimensions, the rate grid
// and the tables that carry a rating per rate.
package skillset

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/skillcalc/internal/domain/types"
)

// Skillset identifies one difficulty dimension.
type Skillset int

// Skillsets in output order.
const (
	Overall Skillset = iota
	Stream
	Jumpstream
	Handstream
	Stamina
	JackSpeed
	Chordjack
	Technical

	Count = 8
)

var names = [Count]string{"overall", "stream", "jumpstream", "handstream", "stamina", "jackspeed", "chordjack", "technical"}

func (s Skillset) String() string {
	if s < 0 || int(s) >= Count {
		return fmt.Sprintf("skillset(%d)", int(s))
	}
	return names[s]
}

// All returns every skillset in output order.
func All() []Skillset {
	return []Skillset{Overall, Stream, Jumpstream, Handstream, Stamina, JackSpeed, Chordjack, Technical}
}

// Components returns the seven skillsets that make up Overall.
func Components() []Skillset { return All()[1:] }

// Parse maps a name (case-insensitive) to a Skillset. The 6K/7K aliases
// chordstream and bracketing resolve to jumpstream and handstream.
func Parse(name string) (Skillset, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "chordstream":
		return Jumpstream, nil
	case "bracketing":
		return Handstream, nil
	}
	for i, v := range names {
		if v == n {
			return Skillset(i), nil
		}
	}
	return 0, fmt.Errorf("unknown skillset %q", name)
}

// Vector is a rating per skillset.
type Vector struct {
	Overall    float64 `json:"overall"`
	Stream     float64 `json:"stream"`
	Jumpstream float64 `json:"jumpstream"`
	Handstream float64 `json:"handstream"`
	Stamina    float64 `json:"stamina"`
	JackSpeed  float64 `json:"jackspeed"`
	Chordjack  float64 `json:"chordjack"`
	Technical  float64 `json:"technical"`
}

func (v *Vector) ptr(s Skillset) *float64 {
	switch s {
	case Overall:
		return &v.Overall
	case Stream:
		return &v.Stream
	case Jumpstream:
		return &v.Jumpstream
	case Handstream:
		return &v.Handstream
	case Stamina:
		return &v.Stamina
	case JackSpeed:
		return &v.JackSpeed
	case Chordjack:
		return &v.Chordjack
	case Technical:
		return &v.Technical
	}
	return nil
}

// Get returns the value for s, or 0 for an unknown skillset.
func (v Vector) Get(s Skillset) float64 {
	if p := v.ptr(s); p != nil {
		return *p
	}
	return 0
}

// Set assigns the value for s. Unknown skillsets are ignored.
func (v *Vector) Set(s Skillset, x float64) {
	if p := v.ptr(s); p != nil {
		*p = x
	}
}

// Array returns the values in output order.
func (v Vector) Array() [Count]float64 {
	return [Count]float64{v.Overall, v.Stream, v.Jumpstream, v.Handstream, v.Stamina, v.JackSpeed, v.Chordjack, v.Technical}
}

// Max returns the largest of the seven components and which one it is.
func (v Vector) Max() (Skillset, float64) {
	best, val := Stream, v.Stream
	for _, s := range Components()[1:] {
		if x := v.Get(s); x > val {
			best, val = s, x
		}
	}
	return best, val
}

// Chordstream is the 6K/7K name for Jumpstream.
func (v Vector) Chordstream() float64 { return v.Jumpstream }

// Bracketing is the 6K/7K name for Handstream.
func (v Vector) Bracketing() float64 { return v.Handstream }

// MaxRating is the upper bound accepted by Validate.
const MaxRating = 1000

// Validate checks that every value is finite and within [0, MaxRating].
func (v Vector) Validate() error {
	for i, x := range v.Array() {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 || x > MaxRating {
			return fmt.Errorf("%w: %s = %v", ErrOutOfBounds, Skillset(i), x)
		}
	}
	return nil
}

// Combine computes Overall from the seven components:
// max(m, (1-beta)*m + beta*||c||_q) where m is the largest component.
// The result is never below m and is continuous in every component.
func Combine(v Vector, beta, q float64) Vector {
	_, m := v.Max()
	if m <= 0 {
		v.Overall = 0
		return v
	}
	var sum float64
	for _, s := range Components() {
		sum += math.Pow(v.Get(s)/m, q)
	}
	norm := m * math.Pow(sum, 1/q)
	v.Overall = math.Max(m, (1-beta)*m+beta*norm)
	return v
}

// validateRate is shared by table lookups.
func validateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%w: %v", types.ErrInvalidRate, rate)
	}
	return nil
}
