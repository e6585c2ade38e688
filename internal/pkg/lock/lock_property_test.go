// Property-based tests for per-uid lock safety.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestConcurrentWalletSafetyProperty checks that for any concurrent credit
// operations on the same uid, the final balance matches sequential execution.
func TestConcurrentWalletSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(0, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		deltas := make([]int64, numOps)
		expectedFinalBalance := initialBalance
		for i := 0; i < numOps; i++ {
			delta := rapid.Int64Range(0, 500).Draw(t, "delta")
			deltas[i] = delta
			expectedFinalBalance += delta
		}

		uid := fmt.Sprintf("user-%d", rapid.Int64Range(1, 1000000).Draw(t, "uid"))

		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)

		for _, d := range deltas {
			go func(delta int64) {
				defer wg.Done()
				ul.Lock(uid)
				defer ul.Unlock(uid)
				// Read-modify-write, only safe under the lock.
				balance += delta
			}(d)
		}

		wg.Wait()

		if balance != expectedFinalBalance {
			t.Fatalf("Balance mismatch with locking: expected %d, got %d (initial=%d, numOps=%d)",
				expectedFinalBalance, balance, initialBalance, numOps)
		}
	})
}

// TestWithLockFunctionProperty tests that WithLock correctly serializes operations.
func TestWithLockFunctionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(0, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		amountPerOp := rapid.Int64Range(1, 100).Draw(t, "amountPerOp")

		expectedFinalBalance := initialBalance + int64(numOps)*amountPerOp

		uid := fmt.Sprintf("user-%d", rapid.Int64Range(1, 1000000).Draw(t, "uid"))

		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)

		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = ul.WithLock(uid, func() error {
					balance += amountPerOp
					return nil
				})
			}()
		}

		wg.Wait()

		if balance != expectedFinalBalance {
			t.Fatalf("Balance mismatch with WithLock: expected %d, got %d",
				expectedFinalBalance, balance)
		}
	})
}

// TestMultipleUsersIndependentLocksProperty tests that locks for different uids
// are independent and don't block each other unnecessarily.
func TestMultipleUsersIndependentLocksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 10).Draw(t, "numUsers")
		opsPerUser := rapid.IntRange(5, 20).Draw(t, "opsPerUser")

		initialBalances := make(map[string]int64)
		expectedBalances := make(map[string]int64)
		for i := 0; i < numUsers; i++ {
			uid := fmt.Sprintf("user-%d", i+1)
			balance := rapid.Int64Range(0, 10000).Draw(t, "initialBalance")
			initialBalances[uid] = balance
			expectedBalances[uid] = balance + int64(opsPerUser)*10 // Each op adds 10
		}

		ul := NewUserLock()

		balances := make(map[string]*int64)
		for uid, balance := range initialBalances {
			b := balance
			balances[uid] = &b
		}

		var wg sync.WaitGroup
		wg.Add(numUsers * opsPerUser)

		for i := 0; i < numUsers; i++ {
			uid := fmt.Sprintf("user-%d", i+1)
			for j := 0; j < opsPerUser; j++ {
				go func(uid string) {
					defer wg.Done()
					ul.Lock(uid)
					defer ul.Unlock(uid)
					*balances[uid] += 10
				}(uid)
			}
		}

		wg.Wait()

		for i := 0; i < numUsers; i++ {
			uid := fmt.Sprintf("user-%d", i+1)
			if *balances[uid] != expectedBalances[uid] {
				t.Fatalf("User %s balance mismatch: expected %d, got %d",
					uid, expectedBalances[uid], *balances[uid])
			}
		}
	})
}

// TestTryLockPreventsConcurrentSpinsProperty tests that TryLock correctly
// rejects overlapping acquisitions for the same uid.
func TestTryLockPreventsConcurrentSpinsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		uid := fmt.Sprintf("user-%d", rapid.Int64Range(1, 1000000).Draw(t, "uid"))
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		ul := NewUserLock()

		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)

		startCh := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh

				if ul.TryLock(uid) {
					successCount.Add(1)
					ul.Unlock(uid)
				}
			}()
		}

		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("At least one TryLock should succeed, got %d successes", successCount.Load())
		}

		// After all operations complete, the lock must be available again.
		if !ul.TryLock(uid) {
			t.Fatal("Lock should be available after all operations complete")
		}
		ul.Unlock(uid)
	})
}

// TestLockUnlockSymmetryProperty tests that every Lock has a corresponding Unlock.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		uid := fmt.Sprintf("user-%d", rapid.Int64Range(1, 1000000).Draw(t, "uid"))
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		ul := NewUserLock()

		for i := 0; i < numCycles; i++ {
			ul.Lock(uid)
			ul.Unlock(uid)
		}

		if !ul.TryLock(uid) {
			t.Fatal("Lock should be available after symmetric lock/unlock cycles")
		}
		ul.Unlock(uid)
	})
}

func TestLockWithTimeout(t *testing.T) {
	ul := NewUserLock()
	ctx := context.Background()

	ul.Lock("u1")
	if ul.LockWithTimeout(ctx, "u1", 20*time.Millisecond) {
		t.Fatal("LockWithTimeout should fail while the lock is held")
	}
	ul.Unlock("u1")

	if !ul.LockWithTimeout(ctx, "u1", 20*time.Millisecond) {
		t.Fatal("LockWithTimeout should succeed on a free lock")
	}
	ul.Unlock("u1")
}
