// Package worker runs queued rating jobs through the engine and stores the
// results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/skillcalc/internal/adapters/mq/queue"
	"github.com/okian/skillcalc/internal/domain/model"
	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
	"github.com/okian/skillcalc/pkg/logger"
	"github.com/okian/skillcalc/pkg/metrics"
)

const (
	defaultJobTimeout   = 30 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Engine computes ratings. Implementations must be safe for concurrent use.
type Engine interface {
	Version() int
	Tuning() string
	RateSweepCapped(ctx context.Context, s *notes.Stream, keycount int, capped bool) (skillset.Table, error)
	GoalRating(ctx context.Context, s *notes.Stream, rate, goal float64, keycount int, capped bool) (skillset.Vector, error)
}

// Pinner is implemented by engines whose tuning can change at run time.
// Pin returns the engine in effect now; one job runs entirely on it.
type Pinner interface {
	Pin() Engine
}

// Store receives job results.
type Store interface {
	Put(ctx context.Context, r model.Result) error
}

// Forgetter drops a dedupe key so a failed job can be resubmitted.
type Forgetter interface {
	Forget(ctx context.Context, key string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Next(ctx context.Context) (model.Job, error)
}

// Worker processes jobs until the queue is drained or ctx is done.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	engine  Engine
	store   Store
	forget  Forgetter
	name    string
	timeout time.Duration

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, e Engine, s Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		engine:  e,
		store:   s,
		name:    "worker",
		timeout: defaultJobTimeout,
		done:    make(chan struct{}),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run pulls jobs until the queue reports closed or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		j, err := w.queue.Next(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && ctx.Err() == nil {
				w.logger.Error(ctx, "dequeue failed", logger.Error(err))
			}
			return
		}
		if err := w.process(ctx, j); err != nil {
			w.logger.Warn(ctx, "job failed",
				logger.String("job_id", j.ID),
				logger.String("kind", string(j.Kind)),
				logger.Error(err),
			)
		}
	}
}

// Shutdown waits for Run to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process rates one job. The returned error is the job's own failure; the
// result has already been stored either way.
func (w *InMemoryWorker) process(ctx context.Context, j model.Job) error { //nolint:gocritic // jobs travel by value
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	res := model.Pending(j)
	res.Status = model.StatusRunning
	w.put(ctx, res)

	jctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	e := w.engine
	if p, ok := e.(Pinner); ok {
		e = p.Pin()
	}

	var err error
	switch j.Kind {
	case model.KindSweep:
		var tbl skillset.Table
		if tbl, err = e.RateSweepCapped(jctx, j.Stream, j.Keycount, j.Capped); err == nil {
			res.Table = &tbl
		}
	case model.KindGoal:
		var v skillset.Vector
		if v, err = e.GoalRating(jctx, j.Stream, j.Rate, j.Goal, j.Keycount, j.Capped); err == nil {
			res.Vector = &v
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, j.Kind)
	}

	res.Finished = time.Now()
	if err != nil {
		kind := types.KindOf(err)
		res.Status = model.StatusFailed
		res.ErrorKind = string(kind)
		res.Error = err.Error()
		if w.forget != nil {
			w.forget.Forget(ctx, j.DedupeKey())
		}
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", string(kind))
	} else {
		res.Status = model.StatusDone
		res.Version = e.Version()
		res.Tuning = e.Tuning()
	}
	metrics.RecordJobFinished(string(res.Status))
	w.put(ctx, res)

	w.logger.Debug(ctx, "job finished",
		logger.String("job_id", j.ID),
		logger.String("status", string(res.Status)),
		logger.Int("onsets", res.Onsets),
	)
	return err
}

func (w *InMemoryWorker) put(ctx context.Context, r model.Result) { //nolint:gocritic // results travel by value
	if err := w.store.Put(ctx, r); err != nil {
		metrics.RecordErrorByComponent("worker", "store")
		w.logger.Error(ctx, "storing result failed",
			logger.String("job_id", r.JobID),
			logger.Error(err),
		)
	}
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	cancel  context.CancelFunc
	once    sync.Once
	logger  logger.Logger
}

// NewPool creates workerCount workers. Options apply to every worker;
// names are assigned per worker.
func NewPool(workerCount int, q Queue, e Engine, s Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := range workerCount {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, e, s, wopts...)
	}
	if len(p.workers) > 0 {
		p.logger = p.workers[0].logger
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
// If ctx expires first the remaining jobs are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			if werr := w.Shutdown(shutdownCtx); werr != nil {
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = werr
				break
			}
		}
		if p.cancel != nil {
			p.cancel()
		}
	})
	return err
}
