package types_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	types "github.com/okian/skillcalc/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an Entry struct", t, func() {
		Convey("When creating a new entry", func() {
			entry := types.Entry{
				Rank:        1,
				JobID:       "job-1",
				Fingerprint: "abc",
				Skillset:    "stream",
				Rating:      24.5,
			}

			Convey("Then it should have the correct values", func() {
				So(entry.Rank, ShouldEqual, 1)
				So(entry.JobID, ShouldEqual, "job-1")
				So(entry.Fingerprint, ShouldEqual, "abc")
				So(entry.Skillset, ShouldEqual, "stream")
				So(entry.Rating, ShouldEqual, 24.5)
			})
		})

		Convey("When creating an entry with zero values", func() {
			entry := types.Entry{}

			Convey("Then it should have default values", func() {
				So(entry.Rank, ShouldEqual, 0)
				So(entry.JobID, ShouldEqual, "")
				So(entry.Rating, ShouldEqual, 0.0)
			})
		})
	})
}

func TestKindOf(t *testing.T) {
	Convey("Given the error taxonomy", t, func() {
		Convey("When classifying wrapped sentinels", func() {
			cases := map[error]types.Kind{
				nil: types.KindNone,
				fmt.Errorf("rate sweep: %w", types.ErrEmptyStream):       types.KindEmptyStream,
				fmt.Errorf("at rate: %w", types.ErrInvalidRate):          types.KindInvalidRate,
				fmt.Errorf("goal: %w", types.ErrInvalidScoreGoal):        types.KindInvalidScoreGoal,
				fmt.Errorf("keys: %w", types.ErrInvalidKeycount):         types.KindInvalidKeycount,
				fmt.Errorf("row 3: %w", types.ErrInvalidNoteData):        types.KindInvalidNoteData,
				fmt.Errorf("window: %w", types.ErrInsufficientData):      types.KindInsufficientData,
				fmt.Errorf("goal: %w", types.ErrSearchDidNotConverge):    types.KindSearchDidNotConverge,
				types.Cancelled("sweep", context.Canceled):               types.KindCancelled,
				fmt.Errorf("deadline: %w", context.DeadlineExceeded):     types.KindCancelled,
				errors.New("boom"):                                       types.KindInternal,
			}

			Convey("Then every error maps to its kind", func() {
				for err, want := range cases {
					So(types.KindOf(err), ShouldEqual, want)
				}
			})
		})

		Convey("When checking input errors", func() {
			Convey("Then bad input is retryable by the caller", func() {
				So(types.IsInputError(types.ErrInvalidRate), ShouldBeTrue)
				So(types.IsInputError(types.ErrEmptyStream), ShouldBeTrue)
				So(types.IsInputError(types.ErrSearchDidNotConverge), ShouldBeFalse)
				So(types.IsInputError(types.ErrCancelled), ShouldBeFalse)
			})
		})

		Convey("When wrapping a context error as cancelled", func() {
			err := types.Cancelled("rate sweep", context.Canceled)

			Convey("Then it matches both sentinels", func() {
				So(errors.Is(err, types.ErrCancelled), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When a search runs out of iterations", func() {
			var err error = &types.NotConvergedError{Skillset: "stream", Iterations: 3, Residual: 0.2, Estimate: 14}

			Convey("Then it unwraps to ErrSearchDidNotConverge", func() {
				So(errors.Is(err, types.ErrSearchDidNotConverge), ShouldBeTrue)
				var nc *types.NotConvergedError
				So(errors.As(err, &nc), ShouldBeTrue)
				So(nc.Estimate, ShouldEqual, 14)
				So(err.Error(), ShouldContainSubstring, "stream")
			})
		})
	})
}
