package spin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xc9973/spinwheel-service/internal/model"
	"github.com/xc9973/spinwheel-service/internal/pkg/lock"
	"github.com/xc9973/spinwheel-service/internal/repository"
	"github.com/xc9973/spinwheel-service/internal/reward"
)

// Common errors for spin operations.
var (
	ErrInvalidUID = errors.New("uid is required")
	// ErrConcurrencyConflict is returned when the bounded commit retries are
	// exhausted. The whole Spin call is safe to retry: no partial commit is
	// ever visible.
	ErrConcurrencyConflict = errors.New("spin commit conflicted repeatedly")
)

// ReasonNoSpins is the rejection reason when neither a free nor a bonus
// spin is available. A rejection is a normal business outcome, not an error.
const ReasonNoSpins = "No spins left"

// Outcome is the result of one Spin call.
type Outcome struct {
	Accepted            bool
	Reward              *reward.Drawn
	SectorIndex         int
	SpinKind            string
	FreeSpinConsumed    bool
	BonusSpinsRemaining int64
	WalletBalance       int64
	Reason              string
}

// Status is a read-only snapshot of a user's spin standing.
type Status struct {
	FreeSpinAvailable bool
	BonusSpins        int64
	WalletBalance     int64
	Rewards           []reward.Reward
}

// Service coordinates spin transactions: it decides eligibility, selects a
// reward, and applies spin consumption, wallet credit, and history exactly
// once per request.
type Service struct {
	store    repository.Store
	table    *reward.Table
	selector *reward.Selector
	locks    *lock.UserLock
	loc      *time.Location
	retries  int
	now      func() time.Time
}

// NewService creates a new spin Service.
func NewService(
	store repository.Store,
	table *reward.Table,
	selector *reward.Selector,
	locks *lock.UserLock,
	loc *time.Location,
	commitRetries int,
) *Service {
	if commitRetries < 1 {
		commitRetries = 1
	}
	return &Service{
		store:    store,
		table:    table,
		selector: selector,
		locks:    locks,
		loc:      loc,
		retries:  commitRetries,
		now:      time.Now,
	}
}

// Spin performs one draw for uid. The per-uid lock serializes in-process
// callers; the store's conditional commit guards against any other writer.
func (s *Service) Spin(ctx context.Context, uid string) (*Outcome, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, ErrInvalidUID
	}

	var out *Outcome
	err := s.locks.WithLock(uid, func() error {
		var err error
		out, err = s.spinLocked(ctx, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// spinLocked runs the load-decide-commit cycle, retrying on version
// conflicts up to the configured bound. Eligibility is re-evaluated from a
// fresh load on every pass; at most one commit is attempted per pass.
func (s *Service) spinLocked(ctx context.Context, uid string) (*Outcome, error) {
	for attempt := 0; attempt < s.retries; attempt++ {
		state, wallet, err := s.store.LoadOrCreate(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("failed to load spin state: %w", err)
		}

		now := s.now()
		decision := Evaluate(state, now, s.loc)
		if decision.Kind == DecisionNone {
			log.Debug().Str("uid", uid).Msg("spin rejected, no spins available")
			return &Outcome{
				Accepted:            false,
				BonusSpinsRemaining: state.BonusSpins,
				WalletBalance:       wallet.Balance,
				Reason:              ReasonNoSpins,
			}, nil
		}

		next := *state
		var kind string
		freeConsumed := false
		switch decision.Kind {
		case DecisionFree:
			next.FreeSpinUsed = true
			spunAt := now
			next.LastFreeSpinAt = &spunAt
			kind = model.SpinKindFree
			freeConsumed = true
		case DecisionBonus:
			// Evaluate guarantees BonusSpins > 0 within this commit window.
			next.BonusSpins--
			kind = model.SpinKindBonus
		}

		sector, drawn := s.selector.Select(s.table)

		commit := repository.SpinCommit{
			UID:             uid,
			ExpectedVersion: state.Version,
			State:           next,
			History: model.HistoryRecord{
				UID:         uid,
				RewardType:  drawn.Type,
				RewardValue: drawn.Value,
				RewardCode:  drawn.Code,
				RewardLabel: drawn.Label,
				SectorIndex: sector,
				SpinKind:    kind,
			},
		}
		if drawn.Type == reward.TypeCoins && drawn.Value > 0 {
			commit.Ledger = &model.LedgerEntry{
				UID:    uid,
				Delta:  drawn.Value,
				Reason: model.ReasonSpinReward,
			}
		}

		walletAfter, err := s.store.CommitSpin(ctx, commit)
		if errors.Is(err, repository.ErrVersionConflict) {
			log.Debug().Str("uid", uid).Int("attempt", attempt+1).Msg("spin commit conflicted, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to commit spin: %w", err)
		}

		return &Outcome{
			Accepted:            true,
			Reward:              &drawn,
			SectorIndex:         sector,
			SpinKind:            kind,
			FreeSpinConsumed:    freeConsumed,
			BonusSpinsRemaining: next.BonusSpins,
			WalletBalance:       walletAfter.Balance,
		}, nil
	}

	return nil, ErrConcurrencyConflict
}

// GrantBonusSpin banks one extra spin for uid and returns the new total.
func (s *Service) GrantBonusSpin(ctx context.Context, uid string) (int64, error) {
	if strings.TrimSpace(uid) == "" {
		return 0, ErrInvalidUID
	}

	total, err := s.store.IncrementBonusSpins(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to grant bonus spin: %w", err)
	}
	return total, nil
}

// Status returns a read-only snapshot for uid. It runs without the per-uid
// lock and may be slightly stale relative to an in-flight spin; only Spin
// itself is atomic.
func (s *Service) Status(ctx context.Context, uid string) (*Status, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, ErrInvalidUID
	}

	state, wallet, err := s.store.LoadOrCreate(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load spin state: %w", err)
	}

	decision := Evaluate(state, s.now(), s.loc)
	return &Status{
		FreeSpinAvailable: decision.Kind == DecisionFree,
		BonusSpins:        state.BonusSpins,
		WalletBalance:     wallet.Balance,
		Rewards:           s.table.Rewards(),
	}, nil
}

// History returns up to limit draw records for uid, newest first.
func (s *Service) History(ctx context.Context, uid string, limit int) ([]*model.HistoryRecord, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, ErrInvalidUID
	}

	records, err := s.store.History(ctx, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return records, nil
}

// Rewards returns the configured wheel for display.
func (s *Service) Rewards() []reward.Reward {
	return s.table.Rewards()
}
