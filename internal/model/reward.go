package model

import "time"

type RewardStatus string

const (
	RewardDraft     RewardStatus = "draft"
	RewardPublished RewardStatus = "published"
	RewardArchived  RewardStatus = "archived"
)

type Reward struct {
	ID                string       `json:"id"`
	HouseholdID       string       `json:"household_id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	PointCost         int64        `json:"point_cost"`
	QuantityAvailable *int64       `json:"quantity_available"`
	QuantityClaimed   int64        `json:"quantity_claimed"`
	Status            RewardStatus `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// InStock reports whether another unit can be claimed. A nil
// QuantityAvailable means unlimited.
func (r *Reward) InStock() bool {
	return r.QuantityAvailable == nil || r.QuantityClaimed < *r.QuantityAvailable
}

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

type RewardRedemption struct {
	ID            string           `json:"id"`
	RewardID      string           `json:"reward_id"`
	UserID        string           `json:"user_id"`
	HouseholdID   string           `json:"household_id"`
	PointsSpent   int64            `json:"points_spent"`
	TransactionID *string          `json:"transaction_id"`
	Status        RedemptionStatus `json:"status"`
	FulfilledBy   *string          `json:"fulfilled_by"`
	FulfilledAt   *time.Time       `json:"fulfilled_at"`
	Notes         string           `json:"notes"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// RedemptionView is a redemption joined with its reward and redeemer.
type RedemptionView struct {
	RewardRedemption
	RewardTitle string `json:"reward_title"`
	UserName    string `json:"user_name"`
}
