package memory

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_Increment(t *testing.T) {
	s := NewStorage()

	first, err := s.Increment(context.Background(), "counter")
	require.NoError(t, err)
	second, err := s.Increment(context.Background(), "counter")
	require.NoError(t, err)
	other, err := s.Increment(context.Background(), "other")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(1), other)
	assert.Equal(t, int64(2), valueOf(s, "counter"))
	assert.Equal(t, int64(0), valueOf(s, "missing"))
}

func TestStorage_Increment_Concurrent(t *testing.T) {
	s := NewStorage()

	var (
		wg  sync.WaitGroup
		mux sync.Mutex
		got []int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				n, _ := s.Increment(context.Background(), "counter")
				mux.Lock()
				got = append(got, n)
				mux.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, 500)
	for i, n := range got {
		assert.Equal(t, int64(i+1), n)
	}
}

func TestStorage_CancelledContext(t *testing.T) {
	s := NewStorage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Increment(ctx, "counter")

	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, int64(0), valueOf(s, "counter"))
	assert.Equal(t, context.Canceled, s.Ping(ctx))
}

func valueOf(s *Storage, key string) int64 {
	shard := fnv1a.HashString64(key) % shardCount
	s.shardedMutexes[shard].Lock()
	defer s.shardedMutexes[shard].Unlock()

	return s.shardedCounters[shard][key]
}
