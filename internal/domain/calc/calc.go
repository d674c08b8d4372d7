// Package calc is the entry point of the difficulty engine. A Calculator
// rates a note stream per skillset, across the rate grid (MSD) or for one
// rate and score goal (SSR).
package calc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/okian/skillcalc/internal/domain/aggregate"
	"github.com/okian/skillcalc/internal/domain/calibration"
	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/pattern"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
	"github.com/okian/skillcalc/pkg/logger"
	"github.com/okian/skillcalc/pkg/metrics"
)

// CurrentVersion identifies the calculation rules. It changes whenever
// ratings for the same chart may change.
const CurrentVersion = 20261012

// Calculator is immutable and safe for concurrent use.
type Calculator struct {
	params      calibration.Params
	tuning      string
	analyzer    *pattern.Analyzer
	logger      logger.Logger
	parallelism int
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithCalibration replaces the default tuning.
func WithCalibration(p calibration.Params) Option {
	return func(c *Calculator) { c.params = p }
}

// WithLogger sets the logger. Without it nothing is logged.
func WithLogger(l logger.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithParallelism bounds how many rates a sweep evaluates at once.
func WithParallelism(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// New builds a Calculator. The calibration is validated once here.
func New(opts ...Option) (*Calculator, error) {
	c := &Calculator{
		params:      calibration.Default(),
		logger:      logger.Nop(),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.params.Validate(); err != nil {
		return nil, err
	}
	c.tuning = c.params.ID()
	c.analyzer = pattern.New(c.params.Pattern)
	return c, nil
}

// Version returns CurrentVersion.
func (c *Calculator) Version() int { return CurrentVersion }

// Params returns the bound calibration.
func (c *Calculator) Params() calibration.Params { return c.params }

// Tuning returns the ID of the bound calibration.
func (c *Calculator) Tuning() string { return c.tuning }

// AtRate returns the uncapped rating of s at one rate. The rate need not be
// on the sweep grid.
func (c *Calculator) AtRate(ctx context.Context, s *notes.Stream, rate float64) (v skillset.Vector, err error) {
	defer observe("at_rate", time.Now(), &err)
	if err = c.validate(s, rate); err != nil {
		return skillset.Vector{}, err
	}
	p, err := c.profile(ctx, s, rate)
	if err != nil {
		return skillset.Vector{}, err
	}
	v = p.Reduce(c.params.Aggregate)
	if err = checkOutput(v); err != nil {
		return skillset.Vector{}, err
	}
	return v, nil
}

// RateSweep rates s at every grid rate, uncapped.
func (c *Calculator) RateSweep(ctx context.Context, s *notes.Stream) (tbl skillset.Table, err error) {
	defer observe("rate_sweep", time.Now(), &err)
	if s == nil || s.Len() == 0 {
		return tbl, types.ErrEmptyStream
	}
	tbl, err = c.sweep(ctx, func(ctx context.Context, rate float64) (skillset.Vector, error) {
		p, err := c.profile(ctx, s, rate)
		if err != nil {
			return skillset.Vector{}, err
		}
		return p.Reduce(c.params.Aggregate), nil
	})
	if err != nil {
		return skillset.Table{}, err
	}
	c.logger.Debug(ctx, "rate sweep complete",
		logger.Int("onsets", s.Len()),
		logger.Float64("overall_1x", tbl[3].Overall))
	return tbl, nil
}

// RateSweepCapped sweeps with an explicit keycount. When capped is set
// every rate is rated as SSR at the default score goal and clamped into
// the cap band; otherwise it equals RateSweep.
func (c *Calculator) RateSweepCapped(ctx context.Context, s *notes.Stream, keycount int, capped bool) (tbl skillset.Table, err error) {
	if s == nil || s.Len() == 0 {
		return tbl, types.ErrEmptyStream
	}
	if err = checkKeycount(s, keycount); err != nil {
		return tbl, err
	}
	if !capped {
		return c.RateSweep(ctx, s)
	}
	defer observe("rate_sweep_capped", time.Now(), &err)
	goal := c.params.Score.DefaultGoal
	tbl, err = c.sweep(ctx, func(ctx context.Context, rate float64) (skillset.Vector, error) {
		return c.goal(ctx, s, rate, goal, true)
	})
	if err != nil {
		return skillset.Table{}, err
	}
	return tbl, nil
}

// GoalRating rates s at rate for a score goal in [0, 1]. The result equals
// AtRate at the reference goal, rises with the goal and, when capped, is
// clamped into the cap band.
func (c *Calculator) GoalRating(ctx context.Context, s *notes.Stream, rate, goal float64, keycount int, capped bool) (v skillset.Vector, err error) {
	defer observe("goal_rating", time.Now(), &err)
	if err = c.validate(s, rate); err != nil {
		return skillset.Vector{}, err
	}
	if math.IsNaN(goal) || goal < 0 || goal > 1 {
		return skillset.Vector{}, fmt.Errorf("%w: %v", types.ErrInvalidScoreGoal, goal)
	}
	if err = checkKeycount(s, keycount); err != nil {
		return skillset.Vector{}, err
	}
	if v, err = c.goal(ctx, s, rate, goal, capped); err != nil {
		return skillset.Vector{}, err
	}
	if err = checkOutput(v); err != nil {
		return skillset.Vector{}, err
	}
	return v, nil
}

// checkOutput rejects ratings that are not finite or fall outside
// [0, skillset.MaxRating]. Only degenerate charts produce them, so they are
// reported as note data errors.
func checkOutput(v skillset.Vector) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidNoteData, err)
	}
	return nil
}

func (c *Calculator) validate(s *notes.Stream, rate float64) error {
	if s == nil || s.Len() == 0 {
		return types.ErrEmptyStream
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%w: %v", types.ErrInvalidRate, rate)
	}
	return nil
}

func checkKeycount(s *notes.Stream, keycount int) error {
	if keycount < notes.MinKeycount || keycount > notes.MaxKeycount {
		return fmt.Errorf("%w: %d", types.ErrInvalidKeycount, keycount)
	}
	if keycount != s.Keycount() {
		return fmt.Errorf("%w: %d given for a %dK stream", types.ErrInvalidKeycount, keycount, s.Keycount())
	}
	return nil
}

// profile analyzes and drains one rate. Streams too short to fill a window
// yield an empty profile, which reduces to the zero vector.
func (c *Calculator) profile(ctx context.Context, s *notes.Stream, rate float64) (*aggregate.Profile, error) {
	it, err := c.analyzer.Analyze(s, rate)
	if errors.Is(err, types.ErrInsufficientData) {
		c.logger.Debug(ctx, "stream too short, rating as zero", logger.Int("onsets", s.Len()))
		return new(aggregate.Profile), nil
	}
	if err != nil {
		return nil, err
	}
	p, err := aggregate.Collect(ctx, it, c.params.Pattern.HopSeconds)
	if err != nil {
		return nil, err
	}
	metrics.RecordWindowsAnalyzed(p.Windows())
	return p, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordCalculation(op, float64(time.Since(start).Microseconds())/1000)
	if *err != nil {
		metrics.RecordCalculationError(op, string(types.KindOf(*err)))
	}
}
