// Package model defines the data models for the spin wheel service.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SpinState tracks a user's spin entitlements.
// One row per uid, created lazily on first interaction.
type SpinState struct {
	UID            string     `db:"uid" json:"uid"`
	FreeSpinUsed   bool       `db:"free_spin_used" json:"free_spin_used"`
	LastFreeSpinAt *time.Time `db:"last_free_spin_at" json:"last_free_spin_at,omitempty"`
	BonusSpins     int64      `db:"bonus_spins" json:"bonus_spins"`
	Version        int64      `db:"version" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Wallet holds a user's current coin balance.
// The balance only changes through ledger-appended credits.
type Wallet struct {
	UID       string    `db:"uid" json:"uid"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is an immutable record of a balance change.
// The sum of all deltas for a uid equals that uid's wallet balance.
type LedgerEntry struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UID              string    `db:"uid" json:"uid"`
	Delta            int64     `db:"delta" json:"delta"`
	ResultingBalance int64     `db:"resulting_balance" json:"resulting_balance"`
	Reason           string    `db:"reason" json:"reason"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// HistoryRecord is an immutable audit record of one draw.
type HistoryRecord struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UID         string    `db:"uid" json:"uid"`
	RewardType  string    `db:"reward_type" json:"reward_type"`
	RewardValue int64     `db:"reward_value" json:"reward_value"`
	RewardCode  *string   `db:"reward_code" json:"reward_code,omitempty"`
	RewardLabel string    `db:"reward_label" json:"reward_label"`
	SectorIndex int       `db:"sector_index" json:"sector_index"`
	SpinKind    string    `db:"spin_kind" json:"spin_kind"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Ledger reasons for categorizing balance changes.
const (
	ReasonSpinReward = "spin_reward" // Coins won on a wheel spin
)

// Spin kinds recorded in history, by which entitlement was consumed.
const (
	SpinKindFree  = "free"
	SpinKindBonus = "bonus"
)
