// Package repository stores job results and ranks rated charts per
// skillset.
package repository

import (
	"context"

	"github.com/okian/skillcalc/internal/domain/model"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
)

// Store provides read/write access to job results and the leaderboard.
type Store interface {
	// Put inserts or replaces the result of a job. Finished uncapped sweeps
	// of the current tuning enter the leaderboard under their chart
	// fingerprint; a newer sweep of the same chart replaces the older one.
	Put(ctx context.Context, r model.Result) error

	// SetTuning makes id the current calibration ID. Changing it empties
	// the leaderboard, since ratings of different tunings do not compare.
	SetTuning(ctx context.Context, id string)

	// Get returns the result of a job, or ErrNotFound.
	Get(ctx context.Context, jobID string) (model.Result, error)

	// TopN returns the hardest charts for skillset s at 1.0x.
	TopN(ctx context.Context, s skillset.Skillset, n int) ([]types.Entry, error)

	// Rank returns the leaderboard entry of a chart, or ErrNotFound.
	Rank(ctx context.Context, s skillset.Skillset, fingerprint string) (types.Entry, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) int

	// Ranked returns the number of charts on the leaderboard.
	Ranked(ctx context.Context) int
}
