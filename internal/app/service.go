// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/skillcalc/internal/adapters/mq/queue"
	"github.com/okian/skillcalc/internal/adapters/mq/worker"
	"github.com/okian/skillcalc/internal/adapters/repository"
	"github.com/okian/skillcalc/internal/config"
	"github.com/okian/skillcalc/internal/domain/calc"
	"github.com/okian/skillcalc/internal/domain/calibration"
	"github.com/okian/skillcalc/internal/domain/dedupe"
	"github.com/okian/skillcalc/internal/domain/model"
	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
	"github.com/okian/skillcalc/pkg/logger"
	"github.com/okian/skillcalc/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// ErrNotStarted is returned for job operations before Start.
var ErrNotStarted = fmt.Errorf("%w: service not started", queue.ErrClosed)

// Service rates charts on request and through a job queue, and keeps the
// results and the per-skillset leaderboard.
type Service struct {
	mu sync.RWMutex

	// calculator is swapped whole when the calibration file changes.
	calculator atomic.Pointer[calc.Calculator]

	store   *repository.ShardedStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	workerCount      int
	queueSize        int
	dedupeSize       int
	shardCount       int
	sweepParallelism int
	jobTimeout       time.Duration
	params           calibration.Params
	calibrationPath  string

	started     bool
	stopWatch   context.CancelFunc
	reloads     atomic.Int64
	reloadFails atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many chart requests are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the number of result store shards.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithSweepParallelism bounds concurrent rates inside one sweep.
func WithSweepParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepParallelism = n
		}
	}
}

// WithJobTimeout bounds the time a worker spends on one job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithCalibration sets the tuning used until a calibration file is loaded.
func WithCalibration(p calibration.Params) Option {
	return func(s *Service) { s.params = p }
}

// WithCalibrationPath loads tuning from a YAML file at Start and reloads it
// when the file changes.
func WithCalibrationPath(path string) Option {
	return func(s *Service) { s.calibrationPath = path }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. The calibration is validated here.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        10_000,
		dedupeSize:       100_000,
		shardCount:       8,
		sweepParallelism: 2,
		jobTimeout:       30 * time.Second,
		params:           calibration.Default(),
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	c, err := s.newCalculator(s.params)
	if err != nil {
		return nil, err
	}
	s.calculator.Store(c)
	return s, nil
}

func (s *Service) newCalculator(p calibration.Params) (*calc.Calculator, error) {
	return calc.New(
		calc.WithCalibration(p),
		calc.WithParallelism(s.sweepParallelism),
		calc.WithLogger(s.logger.Named("calc")),
	)
}

// Start loads the calibration file, if any, and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting skillcalc service...")

	if s.calibrationPath != "" {
		if err := s.loadCalibration(ctx); err != nil {
			return err
		}
	}

	s.store = repository.NewShardedStore(ctx, repository.WithShardCount(s.shardCount))
	s.store.SetTuning(ctx, s.engine().Tuning())
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s, s.store,
		worker.WithJobTimeout(s.jobTimeout),
		worker.WithForgetter(s.deduper),
		worker.WithLogger(s.logger),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "skillcalc service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("version", calc.CurrentVersion),
		logger.String("tuning", s.engine().Tuning()),
	)
	return nil
}

// loadCalibration applies the calibration file and watches it.
func (s *Service) loadCalibration(ctx context.Context) error {
	p, err := config.LoadCalibration(ctx, s.calibrationPath)
	if err != nil {
		return err
	}
	c, err := s.newCalculator(p)
	if err != nil {
		return err
	}
	s.calculator.Store(c)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := config.WatchCalibration(watchCtx, s.calibrationPath, s.reload, s.reloadFailed); err != nil {
		cancel()
		return err
	}
	s.stopWatch = cancel
	s.logger.Info(ctx, "calibration loaded", logger.String("path", s.calibrationPath))
	return nil
}

// reload swaps in a calculator for p. The leaderboard moves to the new
// tuning first, so no result of the old one is ranked afterwards.
func (s *Service) reload(p calibration.Params) {
	ctx := context.Background()
	c, err := s.newCalculator(p)
	if err != nil {
		s.reloadFailed(err)
		return
	}
	s.mu.RLock()
	if s.store != nil {
		s.store.SetTuning(ctx, c.Tuning())
	}
	s.calculator.Store(c)
	s.mu.RUnlock()

	s.reloads.Add(1)
	metrics.RecordCalibrationReload("ok")
	s.logger.Info(ctx, "calibration reloaded",
		logger.String("path", s.calibrationPath),
		logger.String("tuning", c.Tuning()))
}

func (s *Service) reloadFailed(err error) {
	s.reloadFails.Add(1)
	metrics.RecordCalibrationReload("error")
	s.logger.Warn(context.Background(), "calibration reload failed, keeping previous tuning", logger.Error(err))
}

// Stop drains the queue and shuts the workers down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping skillcalc service...")

	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	_ = s.store.Close()

	s.started = false
	s.logger.Info(ctx, "skillcalc service stopped")
}

func (s *Service) engine() *calc.Calculator { return s.calculator.Load() }

// Version returns the calculation rules version.
func (s *Service) Version() int { return s.engine().Version() }

// Params returns the calibration in effect.
func (s *Service) Params() calibration.Params { return s.engine().Params() }

// Tuning returns the ID of the calibration in effect.
func (s *Service) Tuning() string { return s.engine().Tuning() }

// Pin returns the calculator in effect, so a worker runs a whole job on one
// tuning.
func (s *Service) Pin() worker.Engine { return s.engine() }

// RateSweepCapped rates a chart at every grid rate.
func (s *Service) RateSweepCapped(ctx context.Context, st *notes.Stream, keycount int, capped bool) (skillset.Table, error) {
	return s.engine().RateSweepCapped(ctx, st, keycount, capped)
}

// GoalRating rates a chart at one rate for one score goal.
func (s *Service) GoalRating(ctx context.Context, st *notes.Stream, rate, goal float64, keycount int, capped bool) (skillset.Vector, error) {
	return s.engine().GoalRating(ctx, st, rate, goal, keycount, capped)
}

// Submit queues j unless an identical job is already known.
func (s *Service) Submit(ctx context.Context, j model.Job) (model.Result, bool, error) { //nolint:gocritic // jobs travel by value
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Result{}, false, ErrNotStarted
	}

	j.Tuning = s.engine().Tuning()
	key := j.DedupeKey()
	if existing, seen := s.deduper.LookupOrRecord(ctx, key, j.ID); seen {
		metrics.RecordJobDuplicate()
		r, err := s.store.Get(ctx, existing)
		if err != nil {
			// Recorded but not stored yet by the first submitter.
			r = model.Pending(j)
			r.JobID = existing
		}
		return r, true, nil
	}

	pending := model.Pending(j)
	if err := s.store.Put(ctx, pending); err != nil {
		s.deduper.Forget(ctx, key)
		return model.Result{}, false, err
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		s.deduper.Forget(ctx, key)
		failed := pending
		failed.Status = model.StatusFailed
		failed.Error = err.Error()
		failed.ErrorKind = string(types.KindOf(err))
		if errors.Is(err, queue.ErrFull) {
			failed.ErrorKind = "backpressure"
		}
		failed.Finished = time.Now()
		_ = s.store.Put(ctx, failed)
		return model.Result{}, false, err
	}

	metrics.RecordJobSubmitted()
	s.logger.Debug(ctx, "job submitted",
		logger.String("job_id", j.ID),
		logger.String("kind", string(j.Kind)),
		logger.String("fingerprint", j.Fingerprint),
	)
	return pending, false, nil
}

// Result returns the stored result of a job.
func (s *Service) Result(ctx context.Context, jobID string) (model.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return model.Result{}, repository.ErrNotFound
	}
	return s.store.Get(ctx, jobID)
}

// TopN returns the hardest charts for a skillset.
func (s *Service) TopN(ctx context.Context, k skillset.Skillset, n int) ([]types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return []types.Entry{}, nil
	}
	return s.store.TopN(ctx, k, n)
}

// Rank returns the leaderboard entry of a chart.
func (s *Service) Rank(ctx context.Context, k skillset.Skillset, fingerprint string) (types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return types.Entry{}, repository.ErrNotFound
	}
	return s.store.Rank(ctx, k, fingerprint)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":           s.started,
		"version":           s.Version(),
		"tuning":            s.Tuning(),
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"dedupeSize":        s.dedupeSize,
		"calibrationReload": s.reloads.Load(),
		"calibrationErrors": s.reloadFails.Load(),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["results"] = s.store.Count(ctx)
		stats["rankedCharts"] = s.store.Ranked(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}
