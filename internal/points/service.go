package points

import (
	"context"
	"fmt"
	"strings"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

// BalanceSummary is the read view of a user's balance.
type BalanceSummary struct {
	UserID         string `json:"user_id"`
	CurrentBalance int64  `json:"current_balance"`
	TotalEarned    int64  `json:"total_earned"`
	TotalSpent     int64  `json:"total_spent"`
	Streak         int    `json:"streak"`
	LongestStreak  int    `json:"longest_streak"`
}

// Service exposes admin grants and balance reads on top of the Mutator.
type Service struct {
	mutator    *Mutator
	points     *store.PointStore
	households *store.HouseholdStore
	chores     *store.ChoreStore
}

func NewService(mutator *Mutator, points *store.PointStore, households *store.HouseholdStore, chores *store.ChoreStore) *Service {
	return &Service{mutator: mutator, points: points, households: households, chores: chores}
}

// Bonus grants points to a member of the admin's household.
func (s *Service) Bonus(ctx context.Context, adminID, householdID, userID string, points int64, reason string) (*Result, error) {
	if points <= 0 {
		return nil, fmt.Errorf("%w: bonus must be positive", ErrInvalidAmount)
	}
	if _, err := MemberOf(ctx, s.households, userID, householdID); err != nil {
		return nil, err
	}

	desc := strings.TrimSpace(reason)
	if desc == "" {
		desc = "Bonus"
	}
	return s.mutator.ApplyDelta(ctx, Delta{
		UserID:      userID,
		HouseholdID: householdID,
		Points:      points,
		Kind:        model.TxBonus,
		Description: desc,
		Actor:       adminID,
	})
}

// Balance returns the balance and streak of a member of householdID. A user
// without any mutation reports zeros.
func (s *Service) Balance(ctx context.Context, householdID, userID string) (*BalanceSummary, error) {
	if _, err := MemberOf(ctx, s.households, userID, householdID); err != nil {
		return nil, err
	}

	sum := &BalanceSummary{UserID: userID}
	b, err := s.points.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b != nil {
		sum.CurrentBalance = b.CurrentBalance
		sum.TotalEarned = b.TotalEarned
		sum.TotalSpent = b.TotalSpent
	}

	st, err := s.chores.GetStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st != nil {
		sum.Streak = st.CurrentStreak
		sum.LongestStreak = st.LongestStreak
	}
	return sum, nil
}

// Transactions returns a page of a member's ledger, newest first.
func (s *Service) Transactions(ctx context.Context, householdID, userID string, limit, offset int) ([]model.PointTransaction, error) {
	if _, err := MemberOf(ctx, s.households, userID, householdID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := s.points.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []model.PointTransaction{}
	}
	return txs, nil
}

// MemberOf loads userID's membership and fails with ErrNotFound unless the
// user belongs to householdID.
func MemberOf(ctx context.Context, households *store.HouseholdStore, userID, householdID string) (*model.HouseholdMember, error) {
	m, err := households.GetMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.HouseholdID != householdID {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return m, nil
}
