// Package lock provides per-user locking for concurrent spin operations.
// All state-mutating operations for a single uid run mutually exclusive;
// different uids are fully independent.
package lock

import (
	"context"
	"sync"
	"time"
)

// userMutex wraps a mutex with reference counting for cleanup.
type userMutex struct {
	mu       sync.Mutex
	refCount int
}

// UserLock provides per-uid locking to prevent race conditions
// during spin transactions and wallet credits.
type UserLock struct {
	locks sync.Map // map[string]*userMutex
	pool  sync.Pool
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{
		pool: sync.Pool{
			New: func() any {
				return &userMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given uid.
func (ul *UserLock) getLock(uid string) *userMutex {
	if v, ok := ul.locks.Load(uid); ok {
		return v.(*userMutex)
	}

	newLock := ul.pool.Get().(*userMutex)
	newLock.refCount = 0

	// Store or load existing (handles race condition)
	actual, loaded := ul.locks.LoadOrStore(uid, newLock)
	if loaded {
		ul.pool.Put(newLock)
	}
	return actual.(*userMutex)
}

// Lock acquires the lock for a uid.
// This should be called before any state-mutating operation.
func (ul *UserLock) Lock(uid string) {
	lock := ul.getLock(uid)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for a uid.
func (ul *UserLock) Unlock(uid string) {
	if v, ok := ul.locks.Load(uid); ok {
		lock := v.(*userMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (ul *UserLock) TryLock(uid string) bool {
	lock := ul.getLock(uid)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// LockWithTimeout attempts to acquire the lock with a timeout.
// Returns true if the lock was acquired, false if timeout occurred.
func (ul *UserLock) LockWithTimeout(ctx context.Context, uid string, timeout time.Duration) bool {
	lock := ul.getLock(uid)

	done := make(chan struct{})

	go func() {
		lock.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		lock.refCount++
		return true
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire; release it then.
		go func() {
			<-done
			lock.mu.Unlock()
		}()
		return false
	}
}

// WithLock executes a function while holding the uid's lock.
func (ul *UserLock) WithLock(uid string, fn func() error) error {
	ul.Lock(uid)
	defer ul.Unlock(uid)
	return fn()
}

// WithLockContext executes a function while holding the uid's lock,
// with context support for cancellation.
func (ul *UserLock) WithLockContext(ctx context.Context, uid string, timeout time.Duration, fn func() error) error {
	if !ul.LockWithTimeout(ctx, uid, timeout) {
		return ErrLockTimeout
	}
	defer ul.Unlock(uid)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}
