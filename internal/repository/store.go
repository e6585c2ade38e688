// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/xc9973/spinwheel-service/internal/model"
)

// Common errors for store operations.
var (
	// ErrVersionConflict is returned by CommitSpin when the spin state was
	// modified between load and commit. The caller may reload and retry.
	ErrVersionConflict = errors.New("spin state version conflict")
)

// SpinCommit is the unit of work a spin applies: updated state, an optional
// ledger credit, and a history record. It is persisted all-or-nothing,
// conditional on ExpectedVersion.
type SpinCommit struct {
	UID             string
	ExpectedVersion int64

	// State carries the post-spin entitlement values.
	State model.SpinState

	// Ledger is nil when the draw credits no coins. The store fills
	// ResultingBalance from the wallet update inside the same unit, so the
	// ledger-sum invariant holds by construction.
	Ledger *model.LedgerEntry

	History model.HistoryRecord
}

// Store is the persistence contract the spin engine is written against.
// The storage technology behind it is a detail of the host application.
type Store interface {
	// LoadOrCreate fetches the spin state and wallet for uid, creating both
	// with defaults on first touch. Concurrent first-touch for the same uid
	// must yield a single row.
	LoadOrCreate(ctx context.Context, uid string) (*model.SpinState, *model.Wallet, error)

	// CommitSpin persists a spin's consequences atomically. It returns
	// ErrVersionConflict without any visible change if the stored version
	// differs from commit.ExpectedVersion. On success it returns the wallet
	// as of the commit.
	CommitSpin(ctx context.Context, commit SpinCommit) (*model.Wallet, error)

	// IncrementBonusSpins adds one banked spin for uid, creating the state
	// on first touch, and returns the new total.
	IncrementBonusSpins(ctx context.Context, uid string) (int64, error)

	// History returns up to limit records for uid, newest first.
	History(ctx context.Context, uid string, limit int) ([]*model.HistoryRecord, error)

	// LedgerEntries returns up to limit ledger entries for uid, newest first.
	LedgerEntries(ctx context.Context, uid string, limit int) ([]*model.LedgerEntry, error)
}
