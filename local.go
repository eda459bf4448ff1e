package stashy

import (
	"context"
	"sync"
)

// Local is an in-process Stash, a map guarded by a single exclusive lock.
// The zero value is not usable, create with NewLocal. A *Local can be shared
// freely across goroutines; every operation takes the lock for the duration
// of one map access, so concurrent calls are linearized at map-access
// granularity with no multi-key atomicity.
type Local struct {
	mu   sync.Mutex
	data map[string]string
}

// interface check
var _ Stash = (*Local)(nil)

// NewLocal creates an empty in-process stash.
func NewLocal() *Local {
	return &Local{data: map[string]string{}}
}

// Fetch returns the current value for key if present.
func (l *Local) Fetch(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	value, ok := l.data[key]
	return value, ok, nil
}

// Stash validates key, stores value and returns the previous value if the
// key already existed. An invalid key leaves the store untouched.
func (l *Local) Stash(_ context.Context, key, value string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, ok := l.data[key]
	l.data[key] = value
	return prev, ok, nil
}

// Delete removes the entry for key and returns the removed value if the key
// existed.
func (l *Local) Delete(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed, ok := l.data[key]
	if ok {
		delete(l.data, key)
	}
	return removed, ok, nil
}

// Len returns the number of stashed keys.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}

// IsEmpty reports whether the stash holds no keys.
func (l *Local) IsEmpty() bool {
	return l.Len() == 0
}
