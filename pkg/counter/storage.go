package counter

import "context"

// CounterStorage is a remote store holding integer counters.
//
// Increment must atomically add one to key and return the resulting value.
// An absent key counts as zero.
type CounterStorage interface {
	Increment(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
}
