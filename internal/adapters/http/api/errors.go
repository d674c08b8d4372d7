package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/skillcalc/internal/adapters/mq/queue"
	"github.com/okian/skillcalc/internal/adapters/repository"
	"github.com/okian/skillcalc/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrTooManyNotes = errors.New("too many notes")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("service unavailable")
)

// wrapKind tags err with the operation and an API sentinel.
func wrapKind(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// classify maps an error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrTooManyNotes):
		return http.StatusRequestEntityTooLarge, "too_many_notes"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	}

	kind := types.KindOf(err)
	switch {
	case types.IsInputError(err):
		return http.StatusBadRequest, string(kind)
	case kind == types.KindSearchDidNotConverge:
		return http.StatusUnprocessableEntity, string(kind)
	case kind == types.KindCancelled:
		return http.StatusServiceUnavailable, string(kind)
	default:
		return http.StatusInternalServerError, string(types.KindInternal)
	}
}
