package model

import "time"

type ChoreStatus string

const (
	ChorePending   ChoreStatus = "pending"
	ChoreCompleted ChoreStatus = "completed"
)

type Chore struct {
	ID          string      `json:"id"`
	HouseholdID string      `json:"household_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Points      int64       `json:"points"`
	Status      ChoreStatus `json:"status"`
	CompletedAt *time.Time  `json:"completed_at"`
	CompletedBy *string     `json:"completed_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ChoreCompletion is the audit record of one completion. Rows are never
// deleted; an undo stamps UndoneAt and links the reversal transaction.
type ChoreCompletion struct {
	ID                    string     `json:"id"`
	ChoreID               string     `json:"chore_id"`
	CompletedBy           string     `json:"completed_by"`
	PointsEarned          int64      `json:"points_earned"`
	TransactionID         *string    `json:"transaction_id"`
	CompletedAt           time.Time  `json:"completed_at"`
	UndoneAt              *time.Time `json:"undone_at"`
	UndoneBy              *string    `json:"undone_by"`
	ReversalTransactionID *string    `json:"reversal_transaction_id"`
}

type UserStreak struct {
	UserID             string    `json:"user_id"`
	CurrentStreak      int       `json:"current_streak"`
	LongestStreak      int       `json:"longest_streak"`
	LastCompletionDate string    `json:"last_completion_date,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}
