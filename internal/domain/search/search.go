// Package search inverts monotone functions over a bounded positive domain.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/skillcalc/internal/domain/types"
)

// ErrNaN is returned when the objective yields NaN.
var ErrNaN = errors.New("objective returned NaN")

// xTolerance stops bisection once the log-space bracket is this narrow.
const xTolerance = 1e-12

// Problem describes one inversion: find x in [Lo, Hi] with f(x) = Target.
type Problem struct {
	Target        float64
	Lo, Hi        float64
	Tolerance     float64
	MaxIterations int
}

// Result is the located point.
type Result struct {
	X          float64
	Value      float64
	Iterations int
	// Saturated is set when Target lies outside [f(Hi), f(Lo)] and X is the
	// nearest bound.
	Saturated bool
}

// Decreasing solves f(x) = Target for a non-increasing f by bisecting log x.
// Targets above f(Lo) saturate at Lo and targets below f(Hi) saturate at Hi.
// An exhausted budget returns *types.NotConvergedError with the last
// estimate, as does a bracket that narrows below xTolerance while f is still
// further than Tolerance from Target. The context is checked between
// iterations.
func Decreasing(ctx context.Context, f func(float64) float64, pr Problem) (Result, error) {
	if !(pr.Lo > 0) || !(pr.Hi > pr.Lo) {
		return Result{}, fmt.Errorf("search: invalid bracket [%v, %v]", pr.Lo, pr.Hi)
	}
	top := f(pr.Lo)
	bottom := f(pr.Hi)
	if math.IsNaN(top) || math.IsNaN(bottom) {
		return Result{}, ErrNaN
	}
	if pr.Target >= top {
		return Result{X: pr.Lo, Value: top, Saturated: true}, nil
	}
	if pr.Target <= bottom {
		return Result{X: pr.Hi, Value: bottom, Saturated: true}, nil
	}

	lo, hi := math.Log(pr.Lo), math.Log(pr.Hi)
	var x, v float64
	for i := 1; i <= pr.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, types.Cancelled("search", err)
		}
		mid := lo + (hi-lo)/2
		x = math.Exp(mid)
		v = f(x)
		if math.IsNaN(v) {
			return Result{}, fmt.Errorf("%w at x=%v", ErrNaN, x)
		}
		if math.Abs(v-pr.Target) <= pr.Tolerance {
			return Result{X: x, Value: v, Iterations: i}, nil
		}
		if hi-lo <= xTolerance {
			// f jumps across Target; no x gets closer.
			return notConverged(x, v, i, pr)
		}
		if v > pr.Target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return notConverged(x, v, pr.MaxIterations, pr)
}

func notConverged(x, v float64, iterations int, pr Problem) (Result, error) {
	return Result{X: x, Value: v, Iterations: iterations}, &types.NotConvergedError{
		Iterations: iterations,
		Residual:   math.Abs(v - pr.Target),
		Estimate:   x,
	}
}
