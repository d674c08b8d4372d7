package repository

import "time"

// Option applies a configuration option to the ShardedStore.
type Option func(*ShardedStore)

// WithShardCount sets how many shards hold results.
func WithShardCount(n int) Option {
	return func(s *ShardedStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *ShardedStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
