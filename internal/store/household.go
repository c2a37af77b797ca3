package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

type HouseholdStore struct {
	db DBTX
}

func NewHouseholdStore(db DBTX) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	var createdAt, updatedAt string
	err := scanner.Scan(&h.ID, &h.Name, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHouseholdMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	var role, createdAt string
	err := scanner.Scan(&m.HouseholdID, &m.UserID, &m.DisplayName, &role, &createdAt)
	if err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

const householdCols = `id, name, created_at, updated_at`
const householdMemberCols = `household_id, user_id, display_name, role, created_at`

func (s *HouseholdStore) Create(ctx context.Context, name string) (*model.Household, error) {
	id := uuid.NewString()
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO households (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseholdStore) GetByID(ctx context.Context, id string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// AddMember places a user in a household. A user belongs to at most one
// household.
func (s *HouseholdStore) AddMember(ctx context.Context, householdID, userID, displayName string, role model.Role) (*model.HouseholdMember, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO household_members (household_id, user_id, display_name, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		householdID, userID, displayName, string(role), formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert household member: %w", err)
	}
	return s.GetMember(ctx, userID)
}

// GetMember returns the user's membership, or nil if the user has not
// joined a household.
func (s *HouseholdStore) GetMember(ctx context.Context, userID string) (*model.HouseholdMember, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdMemberCols+` FROM household_members WHERE user_id = ?`, userID)
	m, err := scanHouseholdMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) ListMembers(ctx context.Context, householdID string) ([]model.HouseholdMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? ORDER BY user_id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list household members: %w", err)
	}
	defer rows.Close()

	var members []model.HouseholdMember
	for rows.Next() {
		m, err := scanHouseholdMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
