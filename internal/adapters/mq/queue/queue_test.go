package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/skillcalc/internal/adapters/mq/queue"
	"github.com/okian/skillcalc/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func job(id string) model.Job {
	return model.Job{ID: id, Kind: model.KindSweep, Submitted: time.Now()}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity 2", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		So(q.Capacity(), ShouldEqual, 2)

		Convey("When enqueuing within capacity", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Enqueue(ctx, job("b")), ShouldBeNil)

			Convey("Then jobs come out in order", func() {
				So(q.Len(ctx), ShouldEqual, 2)
				j, err := q.Next(ctx)
				So(err, ShouldBeNil)
				So(j.ID, ShouldEqual, "a")
				j, err = q.Next(ctx)
				So(err, ShouldBeNil)
				So(j.ID, ShouldEqual, "b")
				So(q.Len(ctx), ShouldEqual, 0)
			})

			Convey("Then a third job is rejected", func() {
				So(errors.Is(q.Enqueue(ctx, job("c")), queue.ErrFull), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then enqueue and next fail with the context error", func() {
				So(errors.Is(q.Enqueue(cctx, job("a")), context.Canceled), ShouldBeTrue)
				_, err := q.Next(cctx)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then queued jobs drain and new ones are refused", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(errors.Is(q.Enqueue(ctx, job("b")), queue.ErrClosed), ShouldBeTrue)
				j, err := q.Next(ctx)
				So(err, ShouldBeNil)
				So(j.ID, ShouldEqual, "a")
				_, err = q.Next(ctx)
				So(errors.Is(err, queue.ErrClosed), ShouldBeTrue)
			})
		})
	})

	Convey("Given concurrent producers and consumers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		var wg sync.WaitGroup
		for p := range 4 {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := range 100 {
					_ = q.Enqueue(ctx, job(fmt.Sprintf("%d-%d", p, i)))
				}
			}(p)
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)

		var mu sync.Mutex
		seen := map[string]bool{}
		var consumers sync.WaitGroup
		for range 3 {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				for {
					j, err := q.Next(ctx)
					if err != nil {
						return
					}
					mu.Lock()
					seen[j.ID] = true
					mu.Unlock()
				}
			}()
		}
		consumers.Wait()

		So(len(seen), ShouldEqual, 400)
	})
}
