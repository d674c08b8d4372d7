package pattern_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/skillcalc/internal/domain/calibration"
	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/pattern"
	"github.com/okian/skillcalc/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func stream(keycount, n int, gap float64, mask func(i int) uint32) *notes.Stream {
	events := make([]notes.Event, n)
	for i := range events {
		events[i] = notes.Event{Time: float64(i) * gap, Columns: mask(i)}
	}
	s, err := notes.New(keycount, events)
	So(err, ShouldBeNil)
	return s
}

func drain(it *pattern.Iterator) []pattern.Signals {
	var out []pattern.Signals
	for {
		s, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}

func first(a *pattern.Analyzer, s *notes.Stream, rate float64) pattern.Signals {
	it, err := a.Analyze(s, rate)
	So(err, ShouldBeNil)
	sig, ok := it.Next()
	So(ok, ShouldBeTrue)
	return sig
}

func TestAnalyzeErrors(t *testing.T) {
	Convey("Given an analyzer", t, func() {
		a := pattern.New(calibration.Default().Pattern)

		Convey("Then invalid rates are rejected", func() {
			s := stream(4, 4, 0.25, func(int) uint32 { return 1 })
			for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
				_, err := a.Analyze(s, r)
				So(errors.Is(err, types.ErrInvalidRate), ShouldBeTrue)
			}
		})

		Convey("Then a missing stream is empty", func() {
			_, err := a.Analyze(nil, 1)
			So(errors.Is(err, types.ErrEmptyStream), ShouldBeTrue)
		})

		Convey("Then a single onset is too little data", func() {
			_, err := a.Analyze(stream(4, 1, 0, func(int) uint32 { return 1 }), 1)
			So(errors.Is(err, types.ErrInsufficientData), ShouldBeTrue)
		})

		Convey("Then a span too long to window is bad note data", func() {
			s, err := notes.FromMasks(4, []float64{0, 0.1, 0.2, 1e300}, []uint32{1, 2, 4, 8})
			So(err, ShouldBeNil)
			_, err = a.Analyze(s, 1)
			So(errors.Is(err, types.ErrInvalidNoteData), ShouldBeTrue)
		})
	})
}

func TestWindowPlacement(t *testing.T) {
	Convey("Given onsets every half second for five seconds", t, func() {
		a := pattern.New(calibration.Default().Pattern)
		s := stream(4, 11, 0.5, func(i int) uint32 { return 1 << uint(i%4) })

		it, err := a.Analyze(s, 1)
		So(err, ShouldBeNil)
		So(it.Len(), ShouldEqual, 11)

		Convey("Then every window is produced in order", func() {
			sigs := drain(it)
			So(len(sigs), ShouldEqual, 11)
			for k, sig := range sigs {
				So(sig.Index, ShouldEqual, k)
				So(sig.Start, ShouldAlmostEqual, 0.5*float64(k), 1e-12)
			}
			So(sigs[0].Rows, ShouldEqual, 2)
			So(sigs[10].Rows, ShouldEqual, 1)

			_, ok := it.Next()
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a long silence before the last onset", t, func() {
		a := pattern.New(calibration.Default().Pattern)
		s, err := notes.FromMasks(4, []float64{0, 0.1, 0.2, 1e6}, []uint32{1, 2, 4, 8})
		So(err, ShouldBeNil)

		it, err := a.Analyze(s, 1)
		So(err, ShouldBeNil)

		Convey("Then only windows around onsets are visited", func() {
			So(it.Len(), ShouldEqual, 2000001)
			sigs := drain(it)
			So(len(sigs), ShouldEqual, 3)

			So(sigs[0].Index, ShouldEqual, 0)
			So(sigs[0].Rows, ShouldEqual, 3)

			So(sigs[1].Index, ShouldEqual, 1999999)
			So(sigs[1].Start, ShouldAlmostEqual, 999999.5, 1e-6)
			So(sigs[1].Rows, ShouldEqual, 1)

			So(sigs[2].Index, ShouldEqual, it.Len()-1)
			So(sigs[2].Rows, ShouldEqual, 1)
		})
	})

	Convey("Given a gap of a few windows", t, func() {
		a := pattern.New(calibration.Default().Pattern)
		s, err := notes.FromMasks(4, []float64{0, 0.25, 3.2, 3.3}, []uint32{1, 2, 4, 8})
		So(err, ShouldBeNil)

		it, err := a.Analyze(s, 1)
		So(err, ShouldBeNil)

		Convey("Then the skipped positions hold no onsets", func() {
			So(it.Len(), ShouldEqual, 7)
			var idx []int
			for _, sig := range drain(it) {
				So(sig.Empty(), ShouldBeFalse)
				idx = append(idx, sig.Index)
			}
			// [2.5, 3.5) is the first window to reach 3.2.
			So(idx, ShouldResemble, []int{0, 5, 6})
		})
	})
}

func TestRateCompressesTime(t *testing.T) {
	Convey("Given a chart played at two rates", t, func() {
		a := pattern.New(calibration.Default().Pattern)
		s := stream(4, 40, 0.25, func(i int) uint32 { return 1 << uint(i%4) })

		slow, err := a.Analyze(s, 1)
		So(err, ShouldBeNil)
		fast, err := a.Analyze(s, 2)
		So(err, ShouldBeNil)

		Convey("Then the faster rate has fewer, denser windows", func() {
			So(slow.Len(), ShouldBeGreaterThan, fast.Len())
			s1, _ := slow.Next()
			s2, _ := fast.Next()
			So(s2.Stream, ShouldAlmostEqual, 2*s1.Stream, 1e-9)
			So(s2.Load, ShouldAlmostEqual, 2*s1.Load, 1e-9)
		})
	})
}

func TestPatternSignals(t *testing.T) {
	Convey("Given an analyzer", t, func() {
		a := pattern.New(calibration.Default().Pattern)

		Convey("When singles roll across the lanes", func() {
			sig := first(a, stream(4, 100, 0.25, func(i int) uint32 { return 1 << uint(i%4) }), 1)

			Convey("Then they read as stream", func() {
				So(sig.Stream, ShouldAlmostEqual, 4.0, 1e-9)
				So(sig.JackSpeed, ShouldAlmostEqual, 1.0, 1e-9)
				So(sig.Handstream, ShouldEqual, 0.0)
				So(sig.Chordjack, ShouldEqual, 0.0)
				So(sig.Technical, ShouldEqual, 0.0)
			})
		})

		Convey("When one lane repeats", func() {
			sig := first(a, stream(4, 100, 0.1, func(int) uint32 { return 1 }), 1)

			Convey("Then it reads as jacks", func() {
				So(sig.Stream, ShouldEqual, 0.0)
				So(sig.JackSpeed, ShouldAlmostEqual, 10.0, 1e-6)
			})
		})

		Convey("When every row is a quad", func() {
			sig := first(a, stream(4, 50, 0.3, func(int) uint32 { return 0xF }), 1)

			Convey("Then it reads as hands and chordjacks", func() {
				So(sig.Rows, ShouldEqual, 4)
				So(sig.Handstream, ShouldAlmostEqual, 16.0, 1e-9)
				So(sig.Chordjack, ShouldAlmostEqual, 12.0, 1e-9)
				So(sig.Stream, ShouldEqual, 0.0)
				So(sig.Jumpstream, ShouldEqual, 0.0)
			})
		})

		Convey("When jumps alternate with singles", func() {
			sig := first(a, stream(4, 40, 0.25, func(i int) uint32 {
				if i%2 == 0 {
					return 0b0101
				}
				return 1 << uint(1+(i/2)%2*2)
			}), 1)

			Convey("Then it reads as jumpstream", func() {
				So(sig.Jumpstream, ShouldAlmostEqual, 4.0, 1e-9)
			})
		})

		Convey("When the rhythm is uneven", func() {
			gaps := []float64{0.1, 0.3, 0.15, 0.05, 0.2, 0.1}
			events := make([]notes.Event, 0, 30)
			var tm float64
			for i := 0; i < 30; i++ {
				events = append(events, notes.Event{Time: tm, Columns: 1 << uint(i%4)})
				tm += gaps[i%len(gaps)]
			}
			s, err := notes.New(4, events)
			So(err, ShouldBeNil)

			Convey("Then it reads as technical", func() {
				So(first(a, s, 1).Technical, ShouldBeGreaterThan, 0.0)
			})
		})
	})
}

func TestDeterministic(t *testing.T) {
	Convey("Given the same 7K chart analyzed twice", t, func() {
		a := pattern.New(calibration.Default().Pattern)
		s := stream(7, 200, 0.07, func(i int) uint32 { return uint32(i*37)&0x7F | 1 })

		one, err := a.Analyze(s, 1.3)
		So(err, ShouldBeNil)
		two, err := a.Analyze(s, 1.3)
		So(err, ShouldBeNil)

		Convey("Then the windows are identical", func() {
			So(drain(one), ShouldResemble, drain(two))
		})
	})
}
