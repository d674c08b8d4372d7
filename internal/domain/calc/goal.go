package calc

import (
	"context"
	"errors"
	"math"

	"github.com/okian/skillcalc/internal/domain/aggregate"
	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/search"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
	"github.com/okian/skillcalc/pkg/logger"
	"github.com/okian/skillcalc/pkg/metrics"
)

// goal computes the SSR of s at rate. For every skillset the simulated
// score of its windows is solved for the pressure d that reaches the goal;
// the rating scales MSD by d_ref/d_goal, where d_ref reaches the reference
// goal. At the reference goal the result is the MSD itself. Goals the score
// curve cannot reach inside the search band saturate, and the result never
// exceeds skillset.MaxRating.
func (c *Calculator) goal(ctx context.Context, s *notes.Stream, rate, goal float64, capped bool) (skillset.Vector, error) {
	p, err := c.profile(ctx, s, rate)
	if err != nil {
		return skillset.Vector{}, err
	}
	msd := p.Reduce(c.params.Aggregate)

	v := msd
	if goal != c.params.Score.ReferenceGoal {
		for _, k := range skillset.Components() {
			r, err := c.invert(ctx, p, k, msd.Get(k), goal)
			if err != nil {
				return skillset.Vector{}, err
			}
			v.Set(k, math.Min(r, skillset.MaxRating))
		}
		v = skillset.Combine(v, c.params.Aggregate.OverallBeta, c.params.Aggregate.OverallNorm)
		v.Overall = math.Min(v.Overall, skillset.MaxRating)
	}
	if capped {
		v = c.clamp(v)
	}
	c.logger.Debug(ctx, "goal rating",
		logger.Float64("rate", rate),
		logger.Float64("goal", goal),
		logger.Bool("capped", capped),
		logger.Float64("overall", v.Overall))
	return v, nil
}

// invert returns the goal-conditioned rating of one skillset.
func (c *Calculator) invert(ctx context.Context, p *aggregate.Profile, k skillset.Skillset, msd, goal float64) (float64, error) {
	if msd <= 0 {
		return 0, nil
	}
	x, n := p.Samples(k, c.params.Aggregate)
	for i := range x {
		x[i] /= msd
	}
	score := scoreCurve(x, n, c.params.Score.Exponent)

	pr := search.Problem{
		Lo:            c.params.Search.DMin,
		Hi:            c.params.Search.DMax,
		Tolerance:     c.params.Search.Tolerance,
		MaxIterations: c.params.Search.MaxIterations,
	}

	pr.Target = c.params.Score.ReferenceGoal
	ref, err := search.Decreasing(ctx, score, pr)
	if err != nil {
		return 0, c.searchError(err, k, msd, ref.X, ref.X)
	}
	pr.Target = goal
	at, err := search.Decreasing(ctx, score, pr)
	if err != nil {
		return 0, c.searchError(err, k, msd, ref.X, at.X)
	}
	metrics.RecordSearchIterations(ref.Iterations + at.Iterations)
	return msd * ref.X / at.X, nil
}

// searchError names the skillset and turns the pressure estimate into a
// rating estimate.
func (c *Calculator) searchError(err error, k skillset.Skillset, msd, ref, at float64) error {
	var nc *types.NotConvergedError
	if errors.As(err, &nc) {
		nc.Skillset = k.String()
		if at > 0 {
			nc.Estimate = msd * ref / at
		}
	}
	return err
}

// scoreCurve is the simulated score at pressure d: the note-weighted mean
// of 1/(1+(d*x)^e) over windows. It falls from 1 towards 0 as d grows.
func scoreCurve(x, n []float64, e float64) func(d float64) float64 {
	var total float64
	for _, w := range n {
		total += w
	}
	return func(d float64) float64 {
		if total == 0 {
			return 1
		}
		var sum float64
		for i, xi := range x {
			sum += n[i] / (1 + math.Pow(d*xi, e))
		}
		return sum / total
	}
}

// clamp bounds every component to the cap band and recombines overall.
func (c *Calculator) clamp(v skillset.Vector) skillset.Vector {
	lo, hi := c.params.Cap.Floor, c.params.Cap.Ceiling
	for _, k := range skillset.Components() {
		v.Set(k, math.Min(hi, math.Max(lo, v.Get(k))))
	}
	v = skillset.Combine(v, c.params.Aggregate.OverallBeta, c.params.Aggregate.OverallNorm)
	v.Overall = math.Min(hi, math.Max(lo, v.Overall))
	return v
}
