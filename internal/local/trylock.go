package local

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// trylock is a mutex with a genuine non-blocking acquisition attempt,
// which sync.Mutex does not offer. The pair mutex is built on it so the
// try-then-back-off dance in §5 has something real to try against instead
// of always blocking; the registry lock is a plain sync.RWMutex.
//
// A weight-1 semaphore.Weighted is exactly a mutex with TryAcquire: held
// == weight unavailable, free == weight available.
type trylock struct {
	sem *semaphore.Weighted
}

func newTrylock() *trylock {
	return &trylock{sem: semaphore.NewWeighted(1)}
}

// TryLock attempts to acquire without blocking.
func (l *trylock) TryLock() bool {
	return l.sem.TryAcquire(1)
}

// Lock blocks until acquired.
func (l *trylock) Lock() {
	// Acquire with a Background context never returns an error for a
	// weight of 1 against a capacity of 1.
	_ = l.sem.Acquire(context.Background(), 1)
}

// Unlock releases the lock. Unlocking an unlocked trylock panics, same as
// sync.Mutex.
func (l *trylock) Unlock() {
	l.sem.Release(1)
}

// backoffWait blocks for the scheduling-tick duration used by the
// non-self-locked back-off path (§5: "release pair mutex and sleep").
func backoffWait(ctx context.Context) {
	select {
	case <-time.After(BackoffTick):
	case <-ctx.Done():
	}
}
