package repository

import (
	"context"
	"sync"
	"time"

	"github.com/xc9973/spinwheel-service/internal/model"
)

// MemoryStore implements Store in process memory. It backs unit tests and
// development mode; the commit contract (version check, all-or-nothing
// visibility) matches PostgresStore exactly.
type MemoryStore struct {
	mu      sync.Mutex
	states  map[string]*model.SpinState
	wallets map[string]*model.Wallet
	ledger  map[string][]*model.LedgerEntry
	history map[string][]*model.HistoryRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  make(map[string]*model.SpinState),
		wallets: make(map[string]*model.Wallet),
		ledger:  make(map[string][]*model.LedgerEntry),
		history: make(map[string][]*model.HistoryRecord),
	}
}

// ensureLocked creates default rows for uid. Caller holds mu.
func (s *MemoryStore) ensureLocked(uid string, now time.Time) (*model.SpinState, *model.Wallet) {
	state, ok := s.states[uid]
	if !ok {
		state = &model.SpinState{
			UID:       uid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.states[uid] = state
	}

	wallet, ok := s.wallets[uid]
	if !ok {
		wallet = &model.Wallet{
			UID:       uid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.wallets[uid] = wallet
	}

	return state, wallet
}

// LoadOrCreate fetches or initializes the spin state and wallet for uid.
// Copies are returned so callers cannot mutate stored rows.
func (s *MemoryStore) LoadOrCreate(ctx context.Context, uid string) (*model.SpinState, *model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, wallet := s.ensureLocked(uid, time.Now())
	stateCopy := *state
	walletCopy := *wallet
	return &stateCopy, &walletCopy, nil
}

// CommitSpin applies a spin commit if the stored version matches.
func (s *MemoryStore) CommitSpin(ctx context.Context, commit SpinCommit) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	state, wallet := s.ensureLocked(commit.UID, now)

	if state.Version != commit.ExpectedVersion {
		return nil, ErrVersionConflict
	}

	state.FreeSpinUsed = commit.State.FreeSpinUsed
	state.LastFreeSpinAt = commit.State.LastFreeSpinAt
	state.BonusSpins = commit.State.BonusSpins
	state.Version++
	state.UpdatedAt = now

	if commit.Ledger != nil {
		wallet.Balance += commit.Ledger.Delta
		wallet.UpdatedAt = now

		entry := *commit.Ledger
		entry.ID = entryID(entry.ID)
		entry.UID = commit.UID
		entry.ResultingBalance = wallet.Balance
		entry.CreatedAt = now
		s.ledger[commit.UID] = append(s.ledger[commit.UID], &entry)
	}

	rec := commit.History
	rec.ID = entryID(rec.ID)
	rec.UID = commit.UID
	rec.CreatedAt = now
	s.history[commit.UID] = append(s.history[commit.UID], &rec)

	walletCopy := *wallet
	return &walletCopy, nil
}

// IncrementBonusSpins adds one banked spin and returns the new total.
func (s *MemoryStore) IncrementBonusSpins(ctx context.Context, uid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	state, _ := s.ensureLocked(uid, now)
	state.BonusSpins++
	state.Version++
	state.UpdatedAt = now
	return state.BonusSpins, nil
}

// History returns up to limit records for uid, newest first.
func (s *MemoryStore) History(ctx context.Context, uid string, limit int) ([]*model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.history[uid]
	out := make([]*model.HistoryRecord, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		rec := *all[i]
		out = append(out, &rec)
	}
	return out, nil
}

// LedgerEntries returns up to limit ledger entries for uid, newest first.
func (s *MemoryStore) LedgerEntries(ctx context.Context, uid string, limit int) ([]*model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.ledger[uid]
	out := make([]*model.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		entry := *all[i]
		out = append(out, &entry)
	}
	return out, nil
}
