package model

import "time"

type TransactionType string

const (
	TxChoreCompletion  TransactionType = "chore_completion"
	TxBonus            TransactionType = "bonus"
	TxUndo             TransactionType = "undo"
	TxRewardRedemption TransactionType = "reward_redemption"
	TxStreakBonus      TransactionType = "streak_bonus"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxChoreCompletion, TxBonus, TxUndo, TxRewardRedemption, TxStreakBonus:
		return true
	}
	return false
}

type PointBalance struct {
	UserID         string    `json:"user_id"`
	HouseholdID    *string   `json:"household_id"`
	CurrentBalance int64     `json:"current_balance"`
	TotalEarned    int64     `json:"total_earned"`
	TotalSpent     int64     `json:"total_spent"`
	Version        int64     `json:"-"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PointTransaction is one immutable ledger entry. Seq breaks ties between
// entries sharing a CreatedAt.
type PointTransaction struct {
	Seq             int64           `json:"-"`
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	HouseholdID     *string         `json:"household_id"`
	Points          int64           `json:"points"`
	TransactionType TransactionType `json:"transaction_type"`
	ReferenceID     *string         `json:"reference_id"`
	Description     string          `json:"description"`
	BalanceAfter    int64           `json:"balance_after"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ReconciliationIssue struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Operation       string          `json:"operation"`
	TransactionType TransactionType `json:"transaction_type"`
	ReferenceID     *string         `json:"reference_id"`
	Points          int64           `json:"points"`
	Detail          string          `json:"detail"`
	CreatedAt       time.Time       `json:"created_at"`
	ResolvedAt      *time.Time      `json:"resolved_at"`
}
