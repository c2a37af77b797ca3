package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

type BadgeStore struct {
	db DBTX
}

func NewBadgeStore(db DBTX) *BadgeStore {
	return &BadgeStore{db: db}
}

// Seed upserts badge definitions.
func (s *BadgeStore) Seed(ctx context.Context, badges []model.Badge) error {
	for _, b := range badges {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO badges (id, name, description, icon, criteria_type, criteria_value, sort_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			     name = excluded.name, description = excluded.description, icon = excluded.icon,
			     criteria_type = excluded.criteria_type, criteria_value = excluded.criteria_value,
			     sort_order = excluded.sort_order`,
			b.ID, b.Name, b.Description, b.Icon, string(b.CriteriaType), b.CriteriaValue, b.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("seed badge %s: %w", b.ID, err)
		}
	}
	return nil
}

func (s *BadgeStore) List(ctx context.Context) ([]model.Badge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, icon, criteria_type, criteria_value, sort_order
		 FROM badges ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		var criteria string
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &criteria, &b.CriteriaValue, &b.SortOrder); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		b.CriteriaType = model.CriteriaType(criteria)
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// EarnedBadges returns the user's earned badges keyed by badge id.
func (s *BadgeStore) EarnedBadges(ctx context.Context, userID string) (map[string]model.UserBadge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, badge_id, earned_at FROM user_badges WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user badges: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]model.UserBadge)
	for rows.Next() {
		var ub model.UserBadge
		var earnedAt string
		if err := rows.Scan(&ub.UserID, &ub.BadgeID, &earnedAt); err != nil {
			return nil, fmt.Errorf("scan user badge: %w", err)
		}
		if ub.EarnedAt, err = parseTime(earnedAt); err != nil {
			return nil, err
		}
		earned[ub.BadgeID] = ub
	}
	return earned, rows.Err()
}

// AwardBadge records an earned badge. Awarding twice is a no-op; the
// result reports whether a row was inserted.
func (s *BadgeStore) AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, badge_id) DO NOTHING`,
		userID, badgeID, formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	return affected(res)
}

func (s *BadgeStore) CountUserBadges(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count user badges: %w", err)
	}
	return n, nil
}

func (s *BadgeStore) UpsertProgress(ctx context.Context, userID, badgeID string, value int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO badge_progress (user_id, badge_id, current_value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, badge_id) DO UPDATE SET current_value = excluded.current_value, updated_at = excluded.updated_at`,
		userID, badgeID, value, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("upsert badge progress: %w", err)
	}
	return nil
}

// UpsertLevel caches the last derived level for a user.
func (s *BadgeStore) UpsertLevel(ctx context.Context, userID string, level int, title string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_levels (user_id, level, title, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET level = excluded.level, title = excluded.title, updated_at = excluded.updated_at`,
		userID, level, title, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("upsert level: %w", err)
	}
	return nil
}
