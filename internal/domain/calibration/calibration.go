// Package calibration holds the tuning constants of the difficulty engine.
// A Params value is bound to a calculator at construction and never
// mutated afterwards.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidParams is returned by Validate.
var ErrInvalidParams = errors.New("invalid calibration")

// Params is the full tuning set.
type Params struct {
	Pattern   Pattern   `koanf:"pattern" json:"pattern"`
	Aggregate Aggregate `koanf:"aggregate" json:"aggregate"`
	Score     Score     `koanf:"score" json:"score"`
	Search    Search    `koanf:"search" json:"search"`
	Cap       Cap       `koanf:"cap" json:"cap"`
}

// Pattern tunes the window analyzer.
type Pattern struct {
	WindowSeconds float64 `koanf:"window_seconds" json:"window_seconds"`
	HopSeconds    float64 `koanf:"hop_seconds" json:"hop_seconds"`
	MinEvents     int     `koanf:"min_events" json:"min_events"`

	StreamWeight     float64 `koanf:"stream_weight" json:"stream_weight"`
	JumpstreamWeight float64 `koanf:"jumpstream_weight" json:"jumpstream_weight"`
	HandstreamWeight float64 `koanf:"handstream_weight" json:"handstream_weight"`
	JackWeight       float64 `koanf:"jack_weight" json:"jack_weight"`
	ChordjackWeight  float64 `koanf:"chordjack_weight" json:"chordjack_weight"`
	TechnicalWeight  float64 `koanf:"technical_weight" json:"technical_weight"`
}

// Aggregate tunes the per-skillset reduction.
type Aggregate struct {
	// Percentile of occupied windows taken as the peak value.
	Percentile float64 `koanf:"percentile" json:"percentile"`
	// PeakWeight blends percentile (1) against power mean (0).
	PeakWeight    float64 `koanf:"peak_weight" json:"peak_weight"`
	PowerExponent float64 `koanf:"power_exponent" json:"power_exponent"`

	StaminaWeight    float64 `koanf:"stamina_weight" json:"stamina_weight"`
	StaminaDecayBase float64 `koanf:"stamina_decay_base" json:"stamina_decay_base"`

	// Overall = max(m, (1-OverallBeta)*m + OverallBeta*||v||_OverallNorm).
	OverallBeta float64 `koanf:"overall_beta" json:"overall_beta"`
	OverallNorm float64 `koanf:"overall_norm" json:"overall_norm"`

	// Multipliers scale the seven components, indexed like skillset.Components.
	Multipliers [7]float64 `koanf:"multipliers" json:"multipliers"`
}

// Score tunes the simulated score curve used by goal inversion.
type Score struct {
	Exponent      float64 `koanf:"exponent" json:"exponent"`
	ReferenceGoal float64 `koanf:"reference_goal" json:"reference_goal"`
	DefaultGoal   float64 `koanf:"default_goal" json:"default_goal"`
}

// Search bounds the pressure bisection.
type Search struct {
	DMin          float64 `koanf:"d_min" json:"d_min"`
	DMax          float64 `koanf:"d_max" json:"d_max"`
	Tolerance     float64 `koanf:"tolerance" json:"tolerance"`
	MaxIterations int     `koanf:"max_iterations" json:"max_iterations"`
}

// Cap is the rating band for capped output.
type Cap struct {
	Floor   float64 `koanf:"floor" json:"floor"`
	Ceiling float64 `koanf:"ceiling" json:"ceiling"`
}

// Default returns the built-in tuning.
func Default() Params {
	return Params{
		Pattern: Pattern{
			WindowSeconds:    1.0,
			HopSeconds:       0.5,
			MinEvents:        2,
			StreamWeight:     1.0,
			JumpstreamWeight: 1.0,
			HandstreamWeight: 1.0,
			JackWeight:       1.0,
			ChordjackWeight:  1.0,
			TechnicalWeight:  1.0,
		},
		Aggregate: Aggregate{
			Percentile:       0.93,
			PeakWeight:       0.5,
			PowerExponent:    4,
			StaminaWeight:    0.5,
			StaminaDecayBase: 0.9,
			OverallBeta:      0.3,
			OverallNorm:      6,
			Multipliers:      [7]float64{1, 1, 1, 1, 1, 1, 1},
		},
		Score: Score{
			Exponent:      2,
			ReferenceGoal: 0.93,
			DefaultGoal:   0.93,
		},
		Search: Search{
			DMin:          1e-3,
			DMax:          1e3,
			Tolerance:     1e-6,
			MaxIterations: 100,
		},
		Cap: Cap{
			Floor:   0,
			Ceiling: 50,
		},
	}
}

// Validate reports the first out-of-range constant.
func (p Params) Validate() error {
	checks := []struct {
		ok   bool
		name string
		val  any
	}{
		{positive(p.Pattern.WindowSeconds), "pattern.window_seconds", p.Pattern.WindowSeconds},
		{positive(p.Pattern.HopSeconds), "pattern.hop_seconds", p.Pattern.HopSeconds},
		{p.Pattern.MinEvents >= 1, "pattern.min_events", p.Pattern.MinEvents},
		{nonNegative(p.Pattern.StreamWeight), "pattern.stream_weight", p.Pattern.StreamWeight},
		{nonNegative(p.Pattern.JumpstreamWeight), "pattern.jumpstream_weight", p.Pattern.JumpstreamWeight},
		{nonNegative(p.Pattern.HandstreamWeight), "pattern.handstream_weight", p.Pattern.HandstreamWeight},
		{nonNegative(p.Pattern.JackWeight), "pattern.jack_weight", p.Pattern.JackWeight},
		{nonNegative(p.Pattern.ChordjackWeight), "pattern.chordjack_weight", p.Pattern.ChordjackWeight},
		{nonNegative(p.Pattern.TechnicalWeight), "pattern.technical_weight", p.Pattern.TechnicalWeight},
		{unit(p.Aggregate.Percentile), "aggregate.percentile", p.Aggregate.Percentile},
		{unit(p.Aggregate.PeakWeight), "aggregate.peak_weight", p.Aggregate.PeakWeight},
		{p.Aggregate.PowerExponent >= 1 && finite(p.Aggregate.PowerExponent), "aggregate.power_exponent", p.Aggregate.PowerExponent},
		{nonNegative(p.Aggregate.StaminaWeight), "aggregate.stamina_weight", p.Aggregate.StaminaWeight},
		{p.Aggregate.StaminaDecayBase > 0 && p.Aggregate.StaminaDecayBase < 1, "aggregate.stamina_decay_base", p.Aggregate.StaminaDecayBase},
		{unit(p.Aggregate.OverallBeta), "aggregate.overall_beta", p.Aggregate.OverallBeta},
		{p.Aggregate.OverallNorm >= 1 && finite(p.Aggregate.OverallNorm), "aggregate.overall_norm", p.Aggregate.OverallNorm},
		{positive(p.Score.Exponent), "score.exponent", p.Score.Exponent},
		{p.Score.ReferenceGoal > 0 && p.Score.ReferenceGoal < 1, "score.reference_goal", p.Score.ReferenceGoal},
		{unit(p.Score.DefaultGoal), "score.default_goal", p.Score.DefaultGoal},
		{positive(p.Search.DMin), "search.d_min", p.Search.DMin},
		{positive(p.Search.DMax) && p.Search.DMax > p.Search.DMin, "search.d_max", p.Search.DMax},
		{positive(p.Search.Tolerance), "search.tolerance", p.Search.Tolerance},
		{p.Search.MaxIterations >= 1, "search.max_iterations", p.Search.MaxIterations},
		{nonNegative(p.Cap.Floor), "cap.floor", p.Cap.Floor},
		{finite(p.Cap.Ceiling) && p.Cap.Ceiling > p.Cap.Floor, "cap.ceiling", p.Cap.Ceiling},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s = %v", ErrInvalidParams, c.name, c.val)
		}
	}
	for i, m := range p.Aggregate.Multipliers {
		if !nonNegative(m) {
			return fmt.Errorf("%w: aggregate.multipliers[%d] = %v", ErrInvalidParams, i, m)
		}
	}
	return nil
}

// ID identifies the tuning: equal Params give equal IDs, and any changed
// constant gives a different one with overwhelming probability.
func (p Params) ID() string {
	raw, err := json.Marshal(p)
	if err != nil {
		// Only non-finite constants fail to encode; Validate rejects them.
		return fmt.Sprintf("invalid-%x", xxhash.Sum64String(fmt.Sprintf("%#v", p)))
	}
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}

func finite(x float64) bool      { return !math.IsNaN(x) && !math.IsInf(x, 0) }
func positive(x float64) bool    { return finite(x) && x > 0 }
func nonNegative(x float64) bool { return finite(x) && x >= 0 }
func unit(x float64) bool        { return finite(x) && x >= 0 && x <= 1 }
