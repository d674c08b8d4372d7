package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/skillcalc/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is new", func() {
			id, seen := d.LookupOrRecord(ctx, "sweep|abc|false", "job-1")

			Convey("Then it is recorded with the given job", func() {
				So(seen, ShouldBeFalse)
				So(id, ShouldEqual, "job-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key was already recorded", func() {
			d.LookupOrRecord(ctx, "sweep|abc|false", "job-1")
			id, seen := d.LookupOrRecord(ctx, "sweep|abc|false", "job-2")

			Convey("Then the first job is returned", func() {
				So(seen, ShouldBeTrue)
				So(id, ShouldEqual, "job-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key is forgotten", func() {
			d.LookupOrRecord(ctx, "k", "job-1")
			d.Forget(ctx, "k")
			d.Forget(ctx, "missing")
			id, seen := d.LookupOrRecord(ctx, "k", "job-2")

			Convey("Then it can be recorded again", func() {
				So(seen, ShouldBeFalse)
				So(id, ShouldEqual, "job-2")
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more keys than the bound are recorded", func() {
			for i := range 5 {
				d.LookupOrRecord(ctx, fmt.Sprintf("k%d", i), fmt.Sprintf("job-%d", i))
			}

			Convey("Then the oldest are evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, seen := d.LookupOrRecord(ctx, "k4", "x")
				So(seen, ShouldBeTrue)
				_, seen = d.LookupOrRecord(ctx, "k0", "x")
				So(seen, ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := range 1000 {
			d.LookupOrRecord(ctx, fmt.Sprintf("k%d", i), "job")
		}
		So(d.Size(), ShouldEqual, 1000)
	})

	Convey("Given concurrent submissions of one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var winners atomic.Int32
		for i := range 64 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, seen := d.LookupOrRecord(ctx, "same", fmt.Sprintf("job-%d", i)); !seen {
					winners.Add(1)
				}
			}(i)
		}
		wg.Wait()

		So(winners.Load(), ShouldEqual, 1)
		So(d.Size(), ShouldEqual, 1)
	})
}
