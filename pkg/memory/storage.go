package memory

import (
	"context"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

const shardCount uint64 = 64

// Storage keeps counters in process memory. Values are lost on restart and
// are not shared between processes.
type Storage struct {
	shardedCounters []map[string]int64
	shardedMutexes  []*sync.Mutex
}

func NewStorage() *Storage {
	s := &Storage{
		shardedCounters: make([]map[string]int64, shardCount),
		shardedMutexes:  make([]*sync.Mutex, shardCount),
	}

	// initialize shards
	for i := uint64(0); i < shardCount; i++ {
		s.shardedCounters[i] = make(map[string]int64)
		s.shardedMutexes[i] = &sync.Mutex{}
	}

	return s
}

func (s *Storage) Increment(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	shard := fnv1a.HashString64(key) % shardCount
	mux := s.shardedMutexes[shard]
	mux.Lock()
	defer mux.Unlock()

	s.shardedCounters[shard][key]++
	return s.shardedCounters[shard][key], nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) Close() error {
	return nil
}
