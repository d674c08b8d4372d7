// Package aggregate reduces a sequence of window signals into one rating
// per skillset.
package aggregate

import (
	"context"
	"math"
	"slices"

	"github.com/okian/skillcalc/internal/domain/calibration"
	"github.com/okian/skillcalc/internal/domain/pattern"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
)

// Source is what Collect drains; *pattern.Iterator satisfies it. A source
// may skip empty windows as long as Signals.Index reports the position of
// every window it does return.
type Source interface {
	Next() (pattern.Signals, bool)
}

// Profile is the drained content of one rate's windows. Its size follows the
// occupied windows, not the span of the chart.
type Profile struct {
	hop     float64
	windows int

	// Peak-driven series over occupied windows, in window order.
	stream, jumpstream, handstream []float64
	jack, chordjack, technical     []float64
	notes                          []float64

	// index and loads describe the occupied windows for the stamina strain.
	index []int
	loads []float64
}

// Collect drains src. hop is the window spacing in effective seconds.
// The context is checked between windows.
func Collect(ctx context.Context, src Source, hop float64) (*Profile, error) {
	p := &Profile{hop: hop}
	for {
		if err := ctx.Err(); err != nil {
			return nil, types.Cancelled("aggregate", err)
		}
		sig, ok := src.Next()
		if !ok {
			return p, nil
		}
		k := max(sig.Index, p.windows)
		p.windows = k + 1
		if sig.Empty() {
			continue
		}
		p.index = append(p.index, k)
		p.loads = append(p.loads, sig.Load)
		p.stream = append(p.stream, sig.Stream)
		p.jumpstream = append(p.jumpstream, sig.Jumpstream)
		p.handstream = append(p.handstream, sig.Handstream)
		p.jack = append(p.jack, sig.JackSpeed)
		p.chordjack = append(p.chordjack, sig.Chordjack)
		p.technical = append(p.technical, sig.Technical)
		p.notes = append(p.notes, float64(sig.Notes))
	}
}

// Windows returns the number of window positions covered, occupied or not.
func (p *Profile) Windows() int { return p.windows }

// Occupied returns the number of windows holding at least one onset.
func (p *Profile) Occupied() int { return len(p.notes) }

// Strain runs the stamina strain s_k = s_{k-1}*decay + load_k*(1-decay),
// decay = base^hop, over every window position. Empty windows have no load,
// so a run of m of them is crossed in closed form. It returns the strain at
// each occupied window and the mean strain over all windows.
func (p *Profile) Strain(base float64) (occupied []float64, mean float64) {
	if p.windows == 0 {
		return nil, 0
	}
	decay := math.Pow(base, p.hop)
	occupied = make([]float64, len(p.loads))
	var s, sum float64
	prev := -1
	for i, k := range p.index {
		if m := k - prev - 1; m > 0 {
			sum += decayed(s, decay, m)
			s *= math.Pow(decay, float64(m))
		}
		s = s*decay + p.loads[i]*(1-decay)
		occupied[i] = s
		sum += s
		prev = k
	}
	if m := p.windows - prev - 1; m > 0 {
		sum += decayed(s, decay, m)
	}
	return occupied, sum / float64(p.windows)
}

// decayed is s*d + s*d^2 + ... + s*d^m.
func decayed(s, d float64, m int) float64 {
	if s == 0 {
		return 0
	}
	if d >= 1 {
		return s * float64(m)
	}
	return s * d * (1 - math.Pow(d, float64(m))) / (1 - d)
}

// Samples returns the per-window difficulty of s together with the note
// count of each window, over occupied windows. Overall has no samples.
func (p *Profile) Samples(s skillset.Skillset, params calibration.Aggregate) (x, n []float64) {
	switch s {
	case skillset.Stream:
		x = p.stream
	case skillset.Jumpstream:
		x = p.jumpstream
	case skillset.Handstream:
		x = p.handstream
	case skillset.JackSpeed:
		x = p.jack
	case skillset.Chordjack:
		x = p.chordjack
	case skillset.Technical:
		x = p.technical
	case skillset.Stamina:
		x, _ = p.Strain(params.StaminaDecayBase)
		return x, slices.Clone(p.notes)
	default:
		return nil, nil
	}
	return slices.Clone(x), slices.Clone(p.notes)
}

// Reduce turns the profile into a vector. Peak-driven skillsets blend a
// high percentile with a power mean; stamina is the weighted mean strain.
// A profile without occupied windows reduces to the zero vector.
func (p *Profile) Reduce(params calibration.Aggregate) skillset.Vector {
	var v skillset.Vector
	if p.Occupied() == 0 {
		return v
	}
	peak := func(xs []float64) float64 {
		return params.PeakWeight*Percentile(xs, params.Percentile) +
			(1-params.PeakWeight)*PowerMean(xs, params.PowerExponent)
	}
	v.Stream = peak(p.stream)
	v.Jumpstream = peak(p.jumpstream)
	v.Handstream = peak(p.handstream)
	v.JackSpeed = peak(p.jack)
	v.Chordjack = peak(p.chordjack)
	v.Technical = peak(p.technical)
	_, strain := p.Strain(params.StaminaDecayBase)
	v.Stamina = params.StaminaWeight * strain

	for i, s := range skillset.Components() {
		v.Set(s, v.Get(s)*params.Multipliers[i])
	}
	return skillset.Combine(v, params.OverallBeta, params.OverallNorm)
}

// Percentile returns the q-quantile of xs with linear interpolation.
func Percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// PowerMean returns (mean of x^e)^(1/e).
func PowerMean(xs []float64, e float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Pow(x, e)
	}
	return math.Pow(sum/float64(len(xs)), 1/e)
}
