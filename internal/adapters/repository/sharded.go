package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/skillcalc/internal/domain/model"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
	"github.com/okian/skillcalc/pkg/metrics"
)

const (
	defaultShardCount            = 8
	defaultMetricsUpdateInterval = 5 * time.Second
)

type shard struct {
	mu      sync.RWMutex
	results map[string]model.Result
}

// ShardedStore keeps results in memory, spread over shards by job ID, and
// maintains one ranking per skillset.
type ShardedStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration

	lbMu     sync.RWMutex
	tuning   string
	rankings [skillset.Count]*ranking
	jobOf    map[string]string // fingerprint -> ranked job

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewShardedStore constructs a store and starts its metrics updater, which
// stops with ctx or Close.
func NewShardedStore(ctx context.Context, opts ...Option) *ShardedStore {
	s := &ShardedStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		jobOf:                 make(map[string]string),
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{results: make(map[string]model.Result)}
	}
	for i := range s.rankings {
		s.rankings[i] = newRanking()
	}

	s.updateMetrics()
	s.startMetricsUpdater(ctx)
	return s
}

func (s *ShardedStore) shardFor(jobID string) *shard {
	return s.shards[xxhash.Sum64String(jobID)%uint64(len(s.shards))]
}

// Put implements Store.
func (s *ShardedStore) Put(_ context.Context, r model.Result) error { //nolint:gocritic // results travel by value
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if r.JobID == "" {
		metrics.RecordErrorByComponent("repository", "missing_job_id")
		return ErrMissingJobID
	}

	sh := s.shardFor(r.JobID)
	sh.mu.Lock()
	sh.results[r.JobID] = r
	sh.mu.Unlock()

	if r.Kind == model.KindSweep && !r.Capped {
		s.rank(r)
	}
	return nil
}

// rank adds a finished sweep to every skillset ranking.
func (s *ShardedStore) rank(r model.Result) { //nolint:gocritic // results travel by value
	if _, ok := r.Rating(skillset.Overall); !ok {
		return
	}

	s.lbMu.Lock()
	defer s.lbMu.Unlock()

	if s.tuning != "" && r.Tuning != s.tuning {
		return
	}
	s.jobOf[r.Fingerprint] = r.JobID
	for _, k := range skillset.All() {
		v, _ := r.Rating(k)
		s.rankings[k].set(r.Fingerprint, v)
	}
}

// SetTuning implements Store.
func (s *ShardedStore) SetTuning(_ context.Context, id string) {
	s.lbMu.Lock()
	defer s.lbMu.Unlock()

	if id == s.tuning {
		return
	}
	s.tuning = id
	for i := range s.rankings {
		s.rankings[i] = newRanking()
	}
	s.jobOf = make(map[string]string)
}

// Get implements Store.
func (s *ShardedStore) Get(_ context.Context, jobID string) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	sh := s.shardFor(jobID)
	sh.mu.RLock()
	r, ok := sh.results[jobID]
	sh.mu.RUnlock()

	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Result{}, ErrNotFound
	}
	return r, nil
}

// TopN implements Store.
func (s *ShardedStore) TopN(_ context.Context, k skillset.Skillset, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if k < 0 || int(k) >= skillset.Count {
		return nil, ErrNotFound
	}

	s.lbMu.RLock()
	defer s.lbMu.RUnlock()

	top, ranks := s.rankings[k].top(n)
	out := make([]types.Entry, len(top))
	for i, e := range top {
		out[i] = types.Entry{
			Rank:        ranks[i],
			JobID:       s.jobOf[e.key],
			Fingerprint: e.key,
			Skillset:    k.String(),
			Rating:      e.rating.float(),
		}
	}
	return out, nil
}

// Rank implements Store.
func (s *ShardedStore) Rank(_ context.Context, k skillset.Skillset, fingerprint string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if k < 0 || int(k) >= skillset.Count {
		return types.Entry{}, ErrNotFound
	}

	s.lbMu.RLock()
	defer s.lbMu.RUnlock()

	rank, rating, ok := s.rankings[k].rank(fingerprint)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{
		Rank:        rank,
		JobID:       s.jobOf[fingerprint],
		Fingerprint: fingerprint,
		Skillset:    k.String(),
		Rating:      rating,
	}, nil
}

// Count implements Store.
func (s *ShardedStore) Count(_ context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.results)
		sh.mu.RUnlock()
	}
	return total
}

// Ranked implements Store.
func (s *ShardedStore) Ranked(_ context.Context) int {
	s.lbMu.RLock()
	defer s.lbMu.RUnlock()
	return s.rankings[skillset.Overall].len()
}

// Close stops the metrics updater.
func (s *ShardedStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *ShardedStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *ShardedStore) updateMetrics() {
	total := 0
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.results)
		sh.mu.RUnlock()
		metrics.UpdateStoreRecordsPerShard("shard_"+strconv.Itoa(i), n)
		total += n
	}
	metrics.UpdateStoreRecords(total)
}
