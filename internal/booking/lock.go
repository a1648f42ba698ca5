package booking

import (
	"context"
	"sync"
	"time"
)

// hostLock is a FIFO mutex: waiters are granted the lock in arrival order,
// so commit attempts are serviced in submission order and none starves.
type hostLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func (l *hostLock) acquire(ctx context.Context, maxWait time.Duration) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}

	grant := make(chan struct{}, 1)
	l.waiters = append(l.waiters, grant)
	l.mu.Unlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-grant:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	// Timed out or cancelled; withdraw from the queue. The grant may have
	// raced in while we were doing so, in which case the lock is ours.
	l.mu.Lock()
	for i, w := range l.waiters {
		if w == grant {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			l.mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrLockBusy
		}
	}
	l.mu.Unlock()

	<-grant
	return nil
}

func (l *hostLock) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) > 0 {
		grant := l.waiters[0]
		l.waiters = l.waiters[1:]
		grant <- struct{}{}
		return
	}
	l.held = false
}

// LockRegistry hands out per-host FIFO locks with a bounded acquisition
// wait. Commit and cancel share the same lock for a given host, so the
// validate-then-write step is a single atomic unit relative to all other
// mutations of that host's booking set.
type LockRegistry struct {
	mu      sync.Mutex
	locks   map[string]*hostLock
	maxWait time.Duration
}

// NewLockRegistry creates a registry. maxWait bounds how long an acquisition
// may block before failing with ErrLockBusy.
func NewLockRegistry(maxWait time.Duration) *LockRegistry {
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &LockRegistry{
		locks:   make(map[string]*hostLock),
		maxWait: maxWait,
	}
}

// Acquire blocks until the host's lock is granted, the bounded wait elapses
// (ErrLockBusy) or ctx is done. On success the returned release function
// must be called exactly once.
func (r *LockRegistry) Acquire(ctx context.Context, hostID string) (func(), error) {
	r.mu.Lock()
	lock, ok := r.locks[hostID]
	if !ok {
		lock = &hostLock{}
		r.locks[hostID] = lock
	}
	r.mu.Unlock()

	if err := lock.acquire(ctx, r.maxWait); err != nil {
		return nil, err
	}
	return lock.release, nil
}
