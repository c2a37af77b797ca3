package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

func (s *ChoreStore) With(q DBTX) *ChoreStore {
	return &ChoreStore{db: q}
}

// --- Chore methods ---

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var status, createdAt, updatedAt string
	var completedAt, completedBy sql.NullString

	err := scanner.Scan(&c.ID, &c.HouseholdID, &c.Title, &c.Description, &c.Points, &status,
		&completedAt, &completedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Status = model.ChoreStatus(status)
	c.CompletedBy = stringPtr(completedBy)
	if c.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

const choreCols = `id, household_id, title, description, points, status, completed_at, completed_by, created_at, updated_at`

func (s *ChoreStore) Create(ctx context.Context, householdID, title, description string, points int64) (*model.Chore, error) {
	id := uuid.NewString()
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (id, household_id, title, description, points, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, householdID, title, description, points, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id string) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// MarkCompleted moves a pending chore to completed. It reports false if the
// chore was not pending.
func (s *ChoreStore) MarkCompleted(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chores SET status = 'completed', completed_at = ?, completed_by = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		formatTime(at), userID, formatTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete chore: %w", err)
	}
	return affected(res)
}

// ResetPending moves a completed chore back to pending and clears the
// completion stamp. It reports false if the chore was not completed.
func (s *ChoreStore) ResetPending(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chores SET status = 'pending', completed_at = NULL, completed_by = NULL, updated_at = ?
		 WHERE id = ? AND status = 'completed'`,
		formatTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("reset chore: %w", err)
	}
	return affected(res)
}

// --- Completion methods ---

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.ChoreCompletion, error) {
	var cc model.ChoreCompletion
	var txID, undoneAt, undoneBy, reversalID sql.NullString
	var completedAt string

	err := scanner.Scan(&cc.ID, &cc.ChoreID, &cc.CompletedBy, &cc.PointsEarned, &txID, &completedAt,
		&undoneAt, &undoneBy, &reversalID)
	if err != nil {
		return nil, err
	}

	cc.TransactionID = stringPtr(txID)
	cc.UndoneBy = stringPtr(undoneBy)
	cc.ReversalTransactionID = stringPtr(reversalID)
	if cc.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, err
	}
	if cc.UndoneAt, err = parseNullTime(undoneAt); err != nil {
		return nil, err
	}
	return &cc, nil
}

const completionCols = `id, chore_id, completed_by, points_earned, transaction_id, completed_at, undone_at, undone_by, reversal_transaction_id`

func (s *ChoreStore) InsertCompletion(ctx context.Context, cc *model.ChoreCompletion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_completions (id, chore_id, completed_by, points_earned, transaction_id, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cc.ID, cc.ChoreID, cc.CompletedBy, cc.PointsEarned, nullString(cc.TransactionID), formatTime(cc.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func (s *ChoreStore) DeleteCompletion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chore_completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// LatestCompletion returns the most recent completion of a chore that is
// still open: not undone, or undone with points whose reversal has not been
// recorded yet. It returns nil when there is none.
func (s *ChoreStore) LatestCompletion(ctx context.Context, choreID string) (*model.ChoreCompletion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions
		 WHERE chore_id = ? AND reversal_transaction_id IS NULL
		   AND (undone_at IS NULL OR points_earned > 0)
		 ORDER BY completed_at DESC LIMIT 1`,
		choreID,
	)
	cc, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest completion: %w", err)
	}
	return cc, nil
}

// MarkUndone stamps the completion as undone. It reports false if the
// completion was already marked.
func (s *ChoreStore) MarkUndone(ctx context.Context, id, actorID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_completions SET undone_at = ?, undone_by = ? WHERE id = ? AND undone_at IS NULL`,
		formatTime(at), actorID, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark completion undone: %w", err)
	}
	return affected(res)
}

// SetReversal links the deduction transaction to an undone completion. It
// reports false if a reversal is already recorded.
func (s *ChoreStore) SetReversal(ctx context.Context, id, transactionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_completions SET reversal_transaction_id = ?
		 WHERE id = ? AND undone_at IS NOT NULL AND reversal_transaction_id IS NULL`,
		transactionID, id,
	)
	if err != nil {
		return false, fmt.Errorf("set completion reversal: %w", err)
	}
	return affected(res)
}

func (s *ChoreStore) ClearReversal(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chore_completions SET reversal_transaction_id = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear completion reversal: %w", err)
	}
	return nil
}

// CountCompletions counts the user's completions that were not undone.
func (s *ChoreStore) CountCompletions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chore_completions WHERE completed_by = ? AND undone_at IS NULL`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

// --- Streak methods ---

func (s *ChoreStore) GetStreak(ctx context.Context, userID string) (*model.UserStreak, error) {
	var st model.UserStreak
	var last sql.NullString
	var updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, current_streak, longest_streak, last_completion_date, updated_at FROM user_streaks WHERE user_id = ?`,
		userID,
	).Scan(&st.UserID, &st.CurrentStreak, &st.LongestStreak, &last, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	st.LastCompletionDate = last.String
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *ChoreStore) PutStreak(ctx context.Context, st *model.UserStreak) error {
	var last any
	if st.LastCompletionDate != "" {
		last = st.LastCompletionDate
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_completion_date, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     current_streak = excluded.current_streak,
		     longest_streak = excluded.longest_streak,
		     last_completion_date = excluded.last_completion_date,
		     updated_at = excluded.updated_at`,
		st.UserID, st.CurrentStreak, st.LongestStreak, last, formatTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put streak: %w", err)
	}
	return nil
}

func (s *ChoreStore) DeleteStreak(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_streaks WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete streak: %w", err)
	}
	return nil
}
