package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xc9973/spinwheel-service/internal/model"
)

// PostgresStore implements Store on a pgx connection pool.
// Atomicity of CommitSpin is delegated to a single database transaction,
// conditional on the spin state's version column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectStateQuery = `
	SELECT uid, free_spin_used, last_free_spin_at, bonus_spins, version, created_at, updated_at
	FROM spin_states
	WHERE uid = $1
`

const selectWalletQuery = `
	SELECT uid, balance, created_at, updated_at
	FROM wallets
	WHERE uid = $1
`

// LoadOrCreate fetches the spin state and wallet for uid, inserting default
// rows on first touch. ON CONFLICT DO NOTHING makes concurrent first-touch
// for the same uid converge on one row.
func (s *PostgresStore) LoadOrCreate(ctx context.Context, uid string) (*model.SpinState, *model.Wallet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO spin_states (uid) VALUES ($1)
		ON CONFLICT (uid) DO NOTHING
	`, uid)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to ensure spin state: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (uid) VALUES ($1)
		ON CONFLICT (uid) DO NOTHING
	`, uid)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	var state model.SpinState
	err = tx.QueryRow(ctx, selectStateQuery, uid).Scan(
		&state.UID,
		&state.FreeSpinUsed,
		&state.LastFreeSpinAt,
		&state.BonusSpins,
		&state.Version,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load spin state: %w", err)
	}

	var wallet model.Wallet
	err = tx.QueryRow(ctx, selectWalletQuery, uid).Scan(
		&wallet.UID,
		&wallet.Balance,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit load transaction: %w", err)
	}

	return &state, &wallet, nil
}

// CommitSpin persists the updated state, optional ledger credit, and history
// record in one transaction. The state update is conditional on the expected
// version; zero rows affected means another commit won the race.
func (s *PostgresStore) CommitSpin(ctx context.Context, commit SpinCommit) (*model.Wallet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE spin_states
		SET free_spin_used = $2, last_free_spin_at = $3, bonus_spins = $4,
		    version = version + 1, updated_at = NOW()
		WHERE uid = $1 AND version = $5
	`, commit.UID, commit.State.FreeSpinUsed, commit.State.LastFreeSpinAt,
		commit.State.BonusSpins, commit.ExpectedVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update spin state: %w", err)
	}
	if res.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}

	var wallet model.Wallet
	if commit.Ledger != nil {
		err = tx.QueryRow(ctx, `
			UPDATE wallets
			SET balance = balance + $2, updated_at = NOW()
			WHERE uid = $1
			RETURNING uid, balance, created_at, updated_at
		`, commit.UID, commit.Ledger.Delta).Scan(
			&wallet.UID,
			&wallet.Balance,
			&wallet.CreatedAt,
			&wallet.UpdatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("wallet missing for uid %s", commit.UID)
			}
			return nil, fmt.Errorf("failed to credit wallet: %w", err)
		}

		// resulting_balance comes from the wallet update in this same
		// transaction, keeping the ledger-sum invariant exact.
		_, err = tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, uid, delta, resulting_balance, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, entryID(commit.Ledger.ID), commit.UID, commit.Ledger.Delta, wallet.Balance, commit.Ledger.Reason)
		if err != nil {
			return nil, fmt.Errorf("failed to append ledger entry: %w", err)
		}
	} else {
		err = tx.QueryRow(ctx, selectWalletQuery, commit.UID).Scan(
			&wallet.UID,
			&wallet.Balance,
			&wallet.CreatedAt,
			&wallet.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load wallet: %w", err)
		}
	}

	h := commit.History
	_, err = tx.Exec(ctx, `
		INSERT INTO spin_history (id, uid, reward_type, reward_value, reward_code, reward_label, sector_index, spin_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, entryID(h.ID), commit.UID, h.RewardType, h.RewardValue, h.RewardCode, h.RewardLabel, h.SectorIndex, h.SpinKind)
	if err != nil {
		return nil, fmt.Errorf("failed to append history record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit spin: %w", err)
	}

	return &wallet, nil
}

// IncrementBonusSpins adds one banked spin, creating the state row on first
// touch. Bumping the version makes an in-flight spin's conditional commit
// retry against the fresh count.
func (s *PostgresStore) IncrementBonusSpins(ctx context.Context, uid string) (int64, error) {
	const query = `
		INSERT INTO spin_states (uid, bonus_spins) VALUES ($1, 1)
		ON CONFLICT (uid) DO UPDATE
		SET bonus_spins = spin_states.bonus_spins + 1,
		    version = spin_states.version + 1,
		    updated_at = NOW()
		RETURNING bonus_spins
	`

	var total int64
	if err := s.pool.QueryRow(ctx, query, uid).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to increment bonus spins: %w", err)
	}
	return total, nil
}

// History retrieves up to limit spin history records for uid, newest first.
// seq breaks created_at ties from fast sequential commits.
func (s *PostgresStore) History(ctx context.Context, uid string, limit int) ([]*model.HistoryRecord, error) {
	const query = `
		SELECT id, uid, reward_type, reward_value, reward_code, reward_label, sector_index, spin_kind, created_at
		FROM spin_history
		WHERE uid = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		err := rows.Scan(
			&rec.ID,
			&rec.UID,
			&rec.RewardType,
			&rec.RewardValue,
			&rec.RewardCode,
			&rec.RewardLabel,
			&rec.SectorIndex,
			&rec.SpinKind,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return records, nil
}

// LedgerEntries retrieves up to limit ledger entries for uid, newest first.
func (s *PostgresStore) LedgerEntries(ctx context.Context, uid string, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, uid, delta, resulting_balance, reason, created_at
		FROM ledger_entries
		WHERE uid = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(
			&e.ID,
			&e.UID,
			&e.Delta,
			&e.ResultingBalance,
			&e.Reason,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// entryID assigns an id when the caller left it zero.
func entryID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}
