package skillset

import (
	"fmt"
	"math"
	"strconv"

	"github.com/okian/skillcalc/internal/domain/types"
)

// Rate grid.
const (
	MinRate   = 0.7
	MaxRate   = 2.0
	RateStep  = 0.1
	RateCount = 14

	rateEpsilon = 1e-6
)

// Rates returns the 14 grid rates in increasing order.
func Rates() []float64 {
	out := make([]float64, RateCount)
	for i := range out {
		out[i] = RateAt(i)
	}
	return out
}

// RateAt returns the rate stored at table index i.
func RateAt(i int) float64 {
	// Round to one decimal so 0.7+0.1*i lands on the literal value.
	return math.Round((MinRate+RateStep*float64(i))*10) / 10
}

// RateIndex maps a grid rate to its table slot.
func RateIndex(rate float64) (int, error) {
	if err := validateRate(rate); err != nil {
		return 0, err
	}
	i := int(math.Round((rate - MinRate) / RateStep))
	if i < 0 || i >= RateCount || math.Abs(RateAt(i)-rate) > rateEpsilon {
		return 0, fmt.Errorf("%w: %v is not on the %v..%v grid", types.ErrInvalidRate, rate, MinRate, MaxRate)
	}
	return i, nil
}

// Table is the raw difficulty table: one vector per grid rate.
type Table [RateCount]Vector

// At returns the vector stored for a grid rate.
func (t Table) At(rate float64) (Vector, error) {
	i, err := RateIndex(rate)
	if err != nil {
		return Vector{}, err
	}
	return t[i], nil
}

// AsMap keys the table by rate formatted with one decimal ("0.7".."2.0").
func (t Table) AsMap() map[string]Vector {
	return t.AsMapWithFormat(func(r float64) string { return strconv.FormatFloat(r, 'f', 1, 64) })
}

// AsMapWithFormat keys the table by format(rate).
func (t Table) AsMapWithFormat(format func(float64) string) map[string]Vector {
	out := make(map[string]Vector, RateCount)
	for i, v := range t {
		out[format(RateAt(i))] = v
	}
	return out
}

// Subset returns the vectors for the given grid rates, in the given order.
func (t Table) Subset(rates []float64) ([]Vector, error) {
	out := make([]Vector, 0, len(rates))
	for _, r := range rates {
		v, err := t.At(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
