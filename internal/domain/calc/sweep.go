package calc

import (
	"context"
	"sync"

	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
)

type rateFunc func(ctx context.Context, rate float64) (skillset.Vector, error)

// sweep evaluates fn at every grid rate with at most c.parallelism running
// at once. Each task writes only its own slot and every value is checked
// with checkOutput. The first failure cancels the remaining tasks and no
// partial table is returned.
func (c *Calculator) sweep(ctx context.Context, fn rateFunc) (skillset.Table, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		tbl      skillset.Table
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		sem      = make(chan struct{}, c.parallelism)
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := range skillset.RateCount {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			fail(types.Cancelled("rate sweep", ctx.Err()))
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := fn(ctx, skillset.RateAt(i))
			if err == nil {
				err = checkOutput(v)
			}
			if err != nil {
				fail(err)
				return
			}
			tbl[i] = v
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return skillset.Table{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return skillset.Table{}, types.Cancelled("rate sweep", err)
	}
	return tbl, nil
}
