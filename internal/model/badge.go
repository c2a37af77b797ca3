package model

import "time"

type CriteriaType string

const (
	CriteriaChoresCompleted CriteriaType = "chores_completed"
	CriteriaStreakDays      CriteriaType = "streak_days"
	CriteriaTotalPoints     CriteriaType = "total_points"
)

type Badge struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Description   string       `json:"description" yaml:"description"`
	Icon          string       `json:"icon" yaml:"icon"`
	CriteriaType  CriteriaType `json:"criteria_type" yaml:"criteria_type"`
	CriteriaValue int64        `json:"criteria_value" yaml:"criteria_value"`
	SortOrder     int          `json:"sort_order" yaml:"sort_order"`
}

type UserBadge struct {
	UserID   string    `json:"user_id"`
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}
