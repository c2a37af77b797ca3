package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

func (s *RewardStore) With(q DBTX) *RewardStore {
	return &RewardStore{db: q}
}

// --- Reward methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var available sql.NullInt64
	var status, createdAt, updatedAt string

	err := scanner.Scan(&r.ID, &r.HouseholdID, &r.Title, &r.Description, &r.PointCost, &available,
		&r.QuantityClaimed, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if available.Valid {
		n := available.Int64
		r.QuantityAvailable = &n
	}
	r.Status = model.RewardStatus(status)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, household_id, title, description, point_cost, quantity_available, quantity_claimed, status, created_at, updated_at`

func (s *RewardStore) Create(ctx context.Context, householdID, title, description string, pointCost int64, quantity *int64, status model.RewardStatus) (*model.Reward, error) {
	var q any
	if quantity != nil {
		q = *quantity
	}

	id := uuid.NewString()
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (id, household_id, title, description, point_cost, quantity_available, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, householdID, title, description, pointCost, q, string(status), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id string) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) SetStatus(ctx context.Context, id string, status model.RewardStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update reward status: %w", err)
	}
	return nil
}

// ClaimStock takes one unit of a reward. Unlimited rewards still count the
// claim. It reports false when a finite stock is exhausted.
func (s *RewardStore) ClaimStock(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET quantity_claimed = quantity_claimed + 1
		 WHERE id = ? AND (quantity_available IS NULL OR quantity_claimed < quantity_available)`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("claim reward stock: %w", err)
	}
	return affected(res)
}

// ReleaseStock returns one claimed unit.
func (s *RewardStore) ReleaseStock(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET quantity_claimed = quantity_claimed - 1 WHERE id = ? AND quantity_claimed > 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("release reward stock: %w", err)
	}
	return nil
}

// --- Redemption methods ---

func scanRedemption(scanner interface{ Scan(...any) error }, extra ...any) (*model.RewardRedemption, error) {
	var r model.RewardRedemption
	var txID, fulfilledBy, fulfilledAt sql.NullString
	var status, createdAt, updatedAt string

	dest := []any{&r.ID, &r.RewardID, &r.UserID, &r.HouseholdID, &r.PointsSpent, &txID, &status,
		&fulfilledBy, &fulfilledAt, &r.Notes, &createdAt, &updatedAt}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	r.TransactionID = stringPtr(txID)
	r.FulfilledBy = stringPtr(fulfilledBy)
	r.Status = model.RedemptionStatus(status)
	if r.FulfilledAt, err = parseNullTime(fulfilledAt); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const redemptionCols = `id, reward_id, user_id, household_id, points_spent, transaction_id, status, fulfilled_by, fulfilled_at, notes, created_at, updated_at`

func (s *RewardStore) CreateRedemption(ctx context.Context, r *model.RewardRedemption) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reward_redemptions (id, reward_id, user_id, household_id, points_spent, transaction_id, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RewardID, r.UserID, r.HouseholdID, r.PointsSpent, nullString(r.TransactionID), string(r.Status),
		r.Notes, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

func (s *RewardStore) GetRedemption(ctx context.Context, id string) (*model.RewardRedemption, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// FulfillRedemption moves a pending redemption in the household to
// fulfilled. It reports false if no such pending redemption exists.
func (s *RewardStore) FulfillRedemption(ctx context.Context, id, householdID, adminID, notes string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reward_redemptions SET status = 'fulfilled', fulfilled_by = ?, fulfilled_at = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND household_id = ? AND status = 'pending'`,
		adminID, formatTime(at), notes, formatTime(at), id, householdID,
	)
	if err != nil {
		return false, fmt.Errorf("fulfill redemption: %w", err)
	}
	return affected(res)
}

// SetRedemptionStatus moves a redemption from one status to another. It
// reports false if the redemption was not in the from status.
func (s *RewardStore) SetRedemptionStatus(ctx context.Context, id string, from, to model.RedemptionStatus, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reward_redemptions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(at), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update redemption status: %w", err)
	}
	return affected(res)
}

// ListRedemptions returns the household's redemptions joined with reward
// title and member name, newest first. An empty status lists all.
func (s *RewardStore) ListRedemptions(ctx context.Context, householdID string, status model.RedemptionStatus) ([]model.RedemptionView, error) {
	query := `SELECT r.id, r.reward_id, r.user_id, r.household_id, r.points_spent, r.transaction_id, r.status,
	                 r.fulfilled_by, r.fulfilled_at, r.notes, r.created_at, r.updated_at,
	                 COALESCE(w.title, ''), COALESCE(m.display_name, '')
	          FROM reward_redemptions r
	          LEFT JOIN rewards w ON w.id = r.reward_id
	          LEFT JOIN household_members m ON m.user_id = r.user_id
	          WHERE r.household_id = ?`
	args := []any{householdID}
	if status != "" {
		query += ` AND r.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY r.created_at DESC, r.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	views := []model.RedemptionView{}
	for rows.Next() {
		var title, name string
		r, err := scanRedemption(rows, &title, &name)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		views = append(views, model.RedemptionView{RewardRedemption: *r, RewardTitle: title, UserName: name})
	}
	return views, rows.Err()
}
