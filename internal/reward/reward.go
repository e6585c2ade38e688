// Package reward implements the wheel's reward table and weighted selection.
package reward

import (
	"errors"
	"fmt"
)

// Reward types.
const (
	TypeCoins  = "coins"
	TypeCoupon = "coupon"
	TypeNone   = "none"
)

// Errors for reward table validation.
var (
	ErrEmptyTable       = errors.New("reward table is empty")
	ErrNoPositiveWeight = errors.New("reward table has no entry with positive weight")
	ErrInvalidType      = errors.New("invalid reward type")
	ErrNegativeWeight   = errors.New("reward weight must be non-negative")
	ErrNegativeValue    = errors.New("reward value must be non-negative")
)

// Reward is one sector of the wheel.
type Reward struct {
	Type         string  `json:"type"`
	Value        int64   `json:"value"`
	CodeTemplate string  `json:"-"`
	Weight       float64 `json:"weight"`
	Label        string  `json:"label"`
}

// Table is an immutable, validated list of rewards.
// It must not be mutated after construction; reloading is an external concern.
type Table struct {
	rewards     []Reward
	totalWeight float64
}

// NewTable validates the reward list and builds a Table.
func NewTable(rewards []Reward) (*Table, error) {
	if len(rewards) == 0 {
		return nil, ErrEmptyTable
	}

	total := 0.0
	for i, r := range rewards {
		switch r.Type {
		case TypeCoins, TypeCoupon, TypeNone:
		default:
			return nil, fmt.Errorf("%w: %q at index %d", ErrInvalidType, r.Type, i)
		}
		if r.Weight < 0 {
			return nil, fmt.Errorf("%w: index %d", ErrNegativeWeight, i)
		}
		if r.Value < 0 {
			return nil, fmt.Errorf("%w: index %d", ErrNegativeValue, i)
		}
		total += r.Weight
	}

	if total <= 0 {
		return nil, ErrNoPositiveWeight
	}

	// Copy so later mutation of the caller's slice cannot reach the table.
	own := make([]Reward, len(rewards))
	copy(own, rewards)

	return &Table{rewards: own, totalWeight: total}, nil
}

// Len returns the number of sectors.
func (t *Table) Len() int {
	return len(t.rewards)
}

// At returns the reward at the given sector index.
func (t *Table) At(i int) Reward {
	return t.rewards[i]
}

// TotalWeight returns the sum of all sector weights.
func (t *Table) TotalWeight() float64 {
	return t.totalWeight
}

// Rewards returns a copy of the sector list for display.
func (t *Table) Rewards() []Reward {
	out := make([]Reward, len(t.rewards))
	copy(out, t.rewards)
	return out
}
