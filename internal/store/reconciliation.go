package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

type ReconciliationStore struct {
	db DBTX
}

func NewReconciliationStore(db DBTX) *ReconciliationStore {
	return &ReconciliationStore{db: db}
}

func (s *ReconciliationStore) Record(ctx context.Context, issue *model.ReconciliationIssue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconciliation_issues (id, user_id, operation, transaction_type, reference_id, points, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.UserID, issue.Operation, string(issue.TransactionType), nullString(issue.ReferenceID),
		issue.Points, issue.Detail, formatTime(issue.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert reconciliation issue: %w", err)
	}
	return nil
}

// ListOpen returns unresolved issues, oldest first. An empty userID lists
// issues for every user.
func (s *ReconciliationStore) ListOpen(ctx context.Context, userID string) ([]model.ReconciliationIssue, error) {
	query := `SELECT id, user_id, operation, transaction_type, reference_id, points, detail, created_at, resolved_at
	          FROM reconciliation_issues WHERE resolved_at IS NULL`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation issues: %w", err)
	}
	defer rows.Close()

	var issues []model.ReconciliationIssue
	for rows.Next() {
		var i model.ReconciliationIssue
		var txType, createdAt string
		var ref, resolvedAt sql.NullString
		if err := rows.Scan(&i.ID, &i.UserID, &i.Operation, &txType, &ref, &i.Points, &i.Detail, &createdAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation issue: %w", err)
		}
		i.TransactionType = model.TransactionType(txType)
		i.ReferenceID = stringPtr(ref)
		if i.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if i.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// Resolve closes every open issue for the user.
func (s *ReconciliationStore) Resolve(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reconciliation_issues SET resolved_at = ? WHERE user_id = ? AND resolved_at IS NULL`,
		formatTime(at), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve reconciliation issues: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
