// Package lock provides per-key mutual exclusion for the report service:
// an in-process locker for single-instance deployments and a Redis locker
// shared by every instance.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garyjia/sales-reports/internal/application/port"
)

// ErrNotHeld is returned when releasing a lock that expired or was already released
var ErrNotHeld = errors.New("lock not held")

const defaultWait = 2 * time.Second

// LocalLocker is a keyed mutex whose locks expire after their ttl
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]*localLock
	wait  time.Duration
	token uint64
}

// NewLocalLocker creates a locker that waits up to wait for a busy key
func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = defaultWait
	}
	return &LocalLocker{
		held: make(map[string]*localLock),
		wait: wait,
	}
}

// Obtain implements port.Locker
func (l *LocalLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (port.Lock, error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		current, busy := l.held[key]
		if !busy {
			l.token++
			lk := &localLock{owner: l, key: key, token: l.token, released: make(chan struct{})}
			l.held[key] = lk
			if ttl > 0 {
				lk.expiry = time.AfterFunc(ttl, func() { l.release(lk) })
			}
			l.mu.Unlock()
			return lk, nil
		}
		l.mu.Unlock()

		select {
		case <-current.released:
		case <-timer.C:
			return nil, port.ErrLockNotObtained
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// release frees lk if it still owns its key
func (l *LocalLocker) release(lk *localLock) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.held[lk.key]
	if !ok || current.token != lk.token {
		return false
	}
	delete(l.held, lk.key)
	if lk.expiry != nil {
		lk.expiry.Stop()
	}
	close(lk.released)
	return true
}

type localLock struct {
	owner    *LocalLocker
	key      string
	token    uint64
	expiry   *time.Timer
	released chan struct{}
}

// Release implements port.Lock
func (lk *localLock) Release(ctx context.Context) error {
	if !lk.owner.release(lk) {
		return ErrNotHeld
	}
	return nil
}

// Verify interface compliance
var _ port.Locker = (*LocalLocker)(nil)
