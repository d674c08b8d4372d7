// Package pattern slides a fixed-length window over a note stream, viewed at
// a playback rate, and measures the pattern content of every window.
package pattern

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/okian/skillcalc/internal/domain/calibration"
	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/types"
)

// Signals is the measurement of one window. All rates are per second of
// effective (rate-scaled) time.
type Signals struct {
	Index int
	Start float64
	Rows  int
	Notes int

	Stream     float64
	Jumpstream float64
	Handstream float64
	JackSpeed  float64
	Chordjack  float64
	Technical  float64

	// Load is notes per second; it drives the stamina strain.
	Load float64
}

// Empty reports whether the window holds no onsets.
func (s Signals) Empty() bool { return s.Rows == 0 }

// MaxWindows bounds the number of window positions of one analysis.
const MaxWindows = 1 << 30

// Analyzer produces window iterators. It holds only calibration and is safe
// for concurrent use.
type Analyzer struct {
	p calibration.Pattern
}

// New returns an Analyzer for the given tuning.
func New(p calibration.Pattern) *Analyzer {
	return &Analyzer{p: p}
}

// Analyze prepares the windows of s at rate. Work per window happens lazily
// in Iterator.Next.
func (a *Analyzer) Analyze(s *notes.Stream, rate float64) (*Iterator, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidRate, rate)
	}
	if s == nil || s.Len() == 0 {
		return nil, types.ErrEmptyStream
	}
	if s.Len() < a.p.MinEvents {
		return nil, fmt.Errorf("%w: %d onsets, need %d", types.ErrInsufficientData, s.Len(), a.p.MinEvents)
	}

	// Only windows near onsets are visited, but their count must fit an int.
	windows := math.Floor(s.Duration()/rate/a.p.HopSeconds) + 1
	if !(windows <= MaxWindows) {
		return nil, fmt.Errorf("%w: %.3gs at %vx needs %.3g windows, limit %d",
			types.ErrInvalidNoteData, s.Duration(), rate, windows, MaxWindows)
	}

	n := s.Len()
	it := &Iterator{
		p:       a.p,
		times:   make([]float64, n),
		masks:   make([]uint32, n),
		jackGap: make([]float64, n),
		repeat:  make([]bool, n),
	}
	last := make([]float64, notes.MaxKeycount)
	for i := range last {
		last[i] = math.Inf(-1)
	}
	for i := 0; i < n; i++ {
		e := s.At(i)
		t := e.Time / rate
		it.times[i] = t
		it.masks[i] = e.Columns

		gap := math.Inf(1)
		for m := e.Columns; m != 0; m &= m - 1 {
			lane := bits.TrailingZeros32(m)
			if d := t - last[lane]; d < gap {
				gap = d
			}
			last[lane] = t
		}
		it.jackGap[i] = gap
		if i > 0 {
			it.repeat[i] = e.Columns&it.masks[i-1] != 0
		}
	}

	it.count = int(windows)
	return it, nil
}

// Iterator yields the windows that hold onsets, in order, and always the
// last window. Runs of empty windows are skipped; Signals.Index tells the
// caller how many were passed over. It is finite and single use; it is not
// safe for concurrent use.
type Iterator struct {
	p calibration.Pattern

	times   []float64
	masks   []uint32
	jackGap []float64
	repeat  []bool

	count int
	next  int
	lo    int
}

// Len returns the total number of window positions, empty or not.
func (it *Iterator) Len() int { return it.count }

// Next returns the next non-empty window, or false once the last window was
// produced.
func (it *Iterator) Next() (Signals, bool) {
	if it.next >= it.count {
		return Signals{}, false
	}
	k := it.next
	start := it.start(k)
	for it.lo < len(it.times) && it.times[it.lo] < start {
		it.lo++
	}
	if it.lo == len(it.times) {
		k = it.count - 1
	} else if it.times[it.lo] >= start+it.p.WindowSeconds {
		k = min(it.first(it.times[it.lo], k), it.count-1)
	}
	if k != it.next {
		start = it.start(k)
		for it.lo < len(it.times) && it.times[it.lo] < start {
			it.lo++
		}
	}
	it.next = k + 1

	end := start + it.p.WindowSeconds
	hi := it.lo + sort.Search(len(it.times)-it.lo, func(j int) bool { return it.times[it.lo+j] >= end })

	sig := it.measure(it.lo, hi)
	sig.Index = k
	sig.Start = start
	return sig, true
}

func (it *Iterator) start(k int) float64 {
	return it.times[0] + float64(k)*it.p.HopSeconds
}

// first returns the earliest window after k whose span reaches t.
func (it *Iterator) first(t float64, k int) int {
	j := int(math.Floor((t-it.p.WindowSeconds-it.times[0])/it.p.HopSeconds)) + 1
	if j-1 > k && it.start(j-1)+it.p.WindowSeconds > t {
		j--
	}
	return max(j, k+1)
}

// measure computes the signals of rows [lo, hi).
func (it *Iterator) measure(lo, hi int) Signals {
	w := it.p.WindowSeconds
	var sig Signals
	sig.Rows = hi - lo
	if sig.Rows == 0 {
		return sig
	}

	var (
		singles, singlePairs, alternating int
		interleavedJumps                  int
		handNotes, chordjackNotes         int
		minJack                           = math.Inf(1)
	)
	for i := lo; i < hi; i++ {
		c := bits.OnesCount32(it.masks[i])
		sig.Notes += c

		switch {
		case c == 1:
			singles++
			if i > lo && bits.OnesCount32(it.masks[i-1]) == 1 {
				singlePairs++
				if it.masks[i] != it.masks[i-1] {
					alternating++
				}
			}
		case c == 2:
			if it.singleNeighbor(i, lo, hi) {
				interleavedJumps++
			}
		default:
			handNotes += c
		}
		if c >= 2 && i > lo && it.repeat[i] {
			chordjackNotes += c
		}
		if it.jackGap[i] < minJack {
			minJack = it.jackGap[i]
		}
	}

	cv, entropy := it.rhythm(lo, hi)

	if singlePairs > 0 {
		alt := float64(alternating) / float64(singlePairs)
		sig.Stream = it.p.StreamWeight * float64(singles) / w * alt / (1 + cv)
	}
	sig.Jumpstream = it.p.JumpstreamWeight * 2 * float64(interleavedJumps) / w
	sig.Handstream = it.p.HandstreamWeight * float64(handNotes) / w
	if minJack > 0 && !math.IsInf(minJack, 1) {
		sig.JackSpeed = it.p.JackWeight / minJack
	}
	sig.Chordjack = it.p.ChordjackWeight * float64(chordjackNotes) / w
	sig.Technical = it.p.TechnicalWeight * float64(sig.Rows) / w * 0.5 * (math.Min(cv, 1) + entropy)
	sig.Load = float64(sig.Notes) / w
	return sig
}

func (it *Iterator) singleNeighbor(i, lo, hi int) bool {
	if i > lo && bits.OnesCount32(it.masks[i-1]) == 1 {
		return true
	}
	return i+1 < hi && bits.OnesCount32(it.masks[i+1]) == 1
}

// rhythm returns the coefficient of variation of the inter-row gaps and the
// normalised entropy of their successive ratios, bucketed in half-octaves.
func (it *Iterator) rhythm(lo, hi int) (cv, entropy float64) {
	if hi-lo < 3 {
		return 0, 0
	}
	gaps := make([]float64, 0, hi-lo-1)
	var mean float64
	for i := lo + 1; i < hi; i++ {
		g := it.times[i] - it.times[i-1]
		gaps = append(gaps, g)
		mean += g
	}
	mean /= float64(len(gaps))
	var variance float64
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	if mean > 0 {
		cv = math.Sqrt(variance) / mean
	}

	buckets := make([]int, 0, len(gaps))
	counts := make([]int, 0, len(gaps))
	for i := 1; i < len(gaps); i++ {
		b := int(math.Round(math.Log2(gaps[i]/gaps[i-1]) * 2))
		found := false
		for j, v := range buckets {
			if v == b {
				counts[j]++
				found = true
				break
			}
		}
		if !found {
			buckets = append(buckets, b)
			counts = append(counts, 1)
		}
	}
	ratios := float64(len(gaps) - 1)
	if ratios < 2 {
		return cv, 0
	}
	for _, c := range counts {
		p := float64(c) / ratios
		entropy -= p * math.Log(p)
	}
	return cv, entropy / math.Log(ratios)
}
