package types

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel error kinds shared by every calculation entry point. Callers
// inspect them with errors.Is; the engine wraps them with context.
var (
	ErrEmptyStream          = errors.New("empty note stream")
	ErrInvalidRate          = errors.New("invalid rate")
	ErrInvalidScoreGoal     = errors.New("invalid score goal")
	ErrInvalidKeycount      = errors.New("invalid keycount")
	ErrInvalidNoteData      = errors.New("invalid note data")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrSearchDidNotConverge = errors.New("search did not converge")
	ErrCancelled            = errors.New("cancelled")
)

// Kind is a stable, transport-friendly name for an error category.
type Kind string

// Error kinds.
const (
	KindNone                 Kind = ""
	KindEmptyStream          Kind = "empty_stream"
	KindInvalidRate          Kind = "invalid_rate"
	KindInvalidScoreGoal     Kind = "invalid_score_goal"
	KindInvalidKeycount      Kind = "invalid_keycount"
	KindInvalidNoteData      Kind = "invalid_note_data"
	KindInsufficientData     Kind = "insufficient_data"
	KindSearchDidNotConverge Kind = "search_did_not_converge"
	KindCancelled            Kind = "cancelled"
	KindInternal             Kind = "internal"
)

var kinds = []struct { //nolint:gochecknoglobals // read-only lookup table
	err  error
	kind Kind
}{
	{ErrEmptyStream, KindEmptyStream},
	{ErrInvalidRate, KindInvalidRate},
	{ErrInvalidScoreGoal, KindInvalidScoreGoal},
	{ErrInvalidKeycount, KindInvalidKeycount},
	{ErrInvalidNoteData, KindInvalidNoteData},
	{ErrInsufficientData, KindInsufficientData},
	{ErrSearchDidNotConverge, KindSearchDidNotConverge},
	{ErrCancelled, KindCancelled},
}

// KindOf classifies err. Context cancellation and deadlines count as
// KindCancelled; anything unrecognised is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// IsInputError reports whether err was caused by caller input that can be
// fixed and retried.
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindEmptyStream, KindInvalidRate, KindInvalidScoreGoal, KindInvalidKeycount, KindInvalidNoteData:
		return true
	default:
		return false
	}
}

// Cancelled wraps a context error so that it matches both ErrCancelled and
// the original context error.
func Cancelled(op string, ctxErr error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCancelled, ctxErr)
}

// NotConvergedError reports an exhausted search budget together with the
// last estimate, which the caller may choose to accept.
type NotConvergedError struct {
	Skillset   string
	Iterations int
	Residual   float64
	Estimate   float64
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("%s: skillset %s after %d iterations (residual %.3g, estimate %.4f)",
		ErrSearchDidNotConverge, e.Skillset, e.Iterations, e.Residual, e.Estimate)
}

// Unwrap lets errors.Is match ErrSearchDidNotConverge.
func (e *NotConvergedError) Unwrap() error { return ErrSearchDidNotConverge }
