package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

type PointStore struct {
	db DBTX
}

func NewPointStore(db DBTX) *PointStore {
	return &PointStore{db: db}
}

// With returns a copy of the store bound to q, typically an open *sql.Tx.
func (s *PointStore) With(q DBTX) *PointStore {
	return &PointStore{db: q}
}

// --- Balance methods ---

const balanceCols = `user_id, household_id, current_balance, total_earned, total_spent, version, updated_at`

func scanBalance(scanner interface{ Scan(...any) error }) (*model.PointBalance, error) {
	var b model.PointBalance
	var household sql.NullString
	var updatedAt string

	err := scanner.Scan(&b.UserID, &household, &b.CurrentBalance, &b.TotalEarned, &b.TotalSpent, &b.Version, &updatedAt)
	if err != nil {
		return nil, err
	}

	b.HouseholdID = stringPtr(household)
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBalance returns the user's balance row, or nil if the user has never
// had a mutation.
func (s *PointStore) GetBalance(ctx context.Context, userID string) (*model.PointBalance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+balanceCols+` FROM point_balances WHERE user_id = ?`, userID)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// InsertBalance creates the balance row. It reports false if a row already
// exists, which the caller treats like a failed compare-and-set.
func (s *PointStore) InsertBalance(ctx context.Context, b *model.PointBalance) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO point_balances (user_id, household_id, current_balance, total_earned, total_spent, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		b.UserID, nullString(b.HouseholdID), b.CurrentBalance, b.TotalEarned, b.TotalSpent, b.Version, formatTime(b.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert balance: %w", err)
	}
	return affected(res)
}

// CompareAndSetBalance writes b only if the stored version still equals
// expectedVersion. b.Version must already hold the new version.
func (s *PointStore) CompareAndSetBalance(ctx context.Context, b *model.PointBalance, expectedVersion int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE point_balances
		 SET household_id = COALESCE(household_id, ?), current_balance = ?, total_earned = ?, total_spent = ?,
		     version = ?, updated_at = ?
		 WHERE user_id = ? AND version = ?`,
		nullString(b.HouseholdID), b.CurrentBalance, b.TotalEarned, b.TotalSpent,
		b.Version, formatTime(b.UpdatedAt), b.UserID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update balance: %w", err)
	}
	return affected(res)
}

// DeleteBalance removes a balance row at the given version. Used only to
// undo the lazy creation of a row whose first mutation failed.
func (s *PointStore) DeleteBalance(ctx context.Context, userID string, version int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM point_balances WHERE user_id = ? AND version = ?`, userID, version)
	if err != nil {
		return false, fmt.Errorf("delete balance: %w", err)
	}
	return affected(res)
}

// ListBalances returns every balance row ordered by user.
func (s *PointStore) ListBalances(ctx context.Context) ([]model.PointBalance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+balanceCols+` FROM point_balances ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, *b)
	}
	return balances, rows.Err()
}

// BackfillHousehold sets the household on a balance row that was created
// before the user joined one.
func (s *PointStore) BackfillHousehold(ctx context.Context, userID, householdID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE point_balances SET household_id = ? WHERE user_id = ? AND household_id IS NULL`,
		householdID, userID,
	)
	if err != nil {
		return fmt.Errorf("backfill balance household: %w", err)
	}
	return nil
}

// --- Transaction methods ---

const transactionCols = `seq, id, user_id, household_id, points, transaction_type, reference_id, description, balance_after, created_by, created_at`

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.PointTransaction, error) {
	var t model.PointTransaction
	var household, reference sql.NullString
	var txType, createdAt string

	err := scanner.Scan(&t.Seq, &t.ID, &t.UserID, &household, &t.Points, &txType, &reference,
		&t.Description, &t.BalanceAfter, &t.CreatedBy, &createdAt)
	if err != nil {
		return nil, err
	}

	t.HouseholdID = stringPtr(household)
	t.ReferenceID = stringPtr(reference)
	t.TransactionType = model.TransactionType(txType)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTransaction appends a ledger entry and sets t.Seq.
func (s *PointStore) InsertTransaction(ctx context.Context, t *model.PointTransaction) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO point_transactions (id, user_id, household_id, points, transaction_type, reference_id, description, balance_after, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, nullString(t.HouseholdID), t.Points, string(t.TransactionType), nullString(t.ReferenceID),
		t.Description, t.BalanceAfter, t.CreatedBy, formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	t.Seq = seq
	return nil
}

func (s *PointStore) GetTransaction(ctx context.Context, id string) (*model.PointTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM point_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns a page of the user's ledger, newest first.
func (s *PointStore) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.PointTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionCols+` FROM point_transactions WHERE user_id = ?
		 ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

// Ledger returns the user's full ledger in canonical order.
func (s *PointStore) Ledger(ctx context.Context, userID string) ([]model.PointTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionCols+` FROM point_transactions WHERE user_id = ? ORDER BY created_at ASC, seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]model.PointTransaction, error) {
	defer rows.Close()

	var txs []model.PointTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// LedgerUsers returns every user id that has either a ledger entry or a
// balance row.
func (s *PointStore) LedgerUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM point_transactions UNION SELECT user_id FROM point_balances ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list ledger users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// OverwriteBalance replaces the balance row unconditionally. Only the
// reconciler calls this, under the user's lock.
func (s *PointStore) OverwriteBalance(ctx context.Context, b *model.PointBalance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO point_balances (user_id, household_id, current_balance, total_earned, total_spent, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     household_id = COALESCE(point_balances.household_id, excluded.household_id),
		     current_balance = excluded.current_balance,
		     total_earned = excluded.total_earned,
		     total_spent = excluded.total_spent,
		     version = point_balances.version + 1,
		     updated_at = excluded.updated_at`,
		b.UserID, nullString(b.HouseholdID), b.CurrentBalance, b.TotalEarned, b.TotalSpent, b.Version, formatTime(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("overwrite balance: %w", err)
	}
	return nil
}

// --- Leaderboard ---

type LeaderboardRow struct {
	UserID      string
	DisplayName string
	Points      int64
}

// LeaderboardTotals sums ledger points per household member for entries
// created at or after since. Members without entries report zero. Entries
// match on user alone, so those written before the user joined the
// household (with no household stamped) still count.
func (s *PointStore) LeaderboardTotals(ctx context.Context, householdID string, since time.Time) ([]LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.user_id, m.display_name, COALESCE(SUM(t.points), 0)
		 FROM household_members m
		 LEFT JOIN point_transactions t
		     ON t.user_id = m.user_id AND t.created_at >= ?
		 WHERE m.household_id = ?
		 GROUP BY m.user_id, m.display_name`,
		formatTime(since), householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard totals: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.DisplayName, &r.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
