package reward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/points"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
	"github.com/Susa-Sek/chorechamp-sub001/internal/websocket"
)

type RedeemResult struct {
	PointsSpent  int64  `json:"points_spent"`
	NewBalance   int64  `json:"new_balance"`
	RedemptionID string `json:"redemption_id"`
}

type CancelResult struct {
	PointsRefunded int64 `json:"points_refunded"`
	NewBalance     int64 `json:"new_balance"`
}

// Service runs the redemption workflow: spending points on rewards and
// settling the resulting requests.
type Service struct {
	mutator    *points.Mutator
	locks      *points.KeyedMutex
	rewards    *store.RewardStore
	households *store.HouseholdStore
	balances   *store.PointStore
	notifier   points.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(db store.DBTX, mutator *points.Mutator, notifier points.Notifier, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		mutator:    mutator,
		locks:      points.NewKeyedMutex(),
		rewards:    store.NewRewardStore(db),
		households: store.NewHouseholdStore(db),
		balances:   store.NewPointStore(db),
		notifier:   notifier,
		logger:     logger.With("component", "reward"),
		now:        now,
	}
}

// Create adds a reward to the household. quantity nil means unlimited
// stock; status defaults to draft.
func (s *Service) Create(ctx context.Context, householdID, title, description string, cost int64, quantity *int64, status model.RewardStatus) (*model.Reward, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", points.ErrInvalidInput)
	}
	if cost <= 0 {
		return nil, fmt.Errorf("%w: point_cost must be > 0", points.ErrInvalidInput)
	}
	if quantity != nil && *quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", points.ErrInvalidInput)
	}
	if status == "" {
		status = model.RewardDraft
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown reward status %q", points.ErrInvalidInput, status)
	}

	r, err := s.rewards.Create(ctx, householdID, title, strings.TrimSpace(description), cost, quantity, status)
	if err != nil {
		return nil, err
	}
	s.rewardChanged(householdID, "created", r)
	return r, nil
}

// SetStatus publishes, unpublishes or archives a reward. Archived rewards
// stay archived. The reward's lock is held so a redemption in flight sees
// either the old or the new status for its whole run.
func (s *Service) SetStatus(ctx context.Context, householdID, rewardID string, status model.RewardStatus) (*model.Reward, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown reward status %q", points.ErrInvalidInput, status)
	}

	unlock := s.locks.Lock(rewardID)
	defer unlock()

	r, err := s.rewards.GetByID(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.HouseholdID != householdID {
		return nil, fmt.Errorf("reward %s: %w", rewardID, points.ErrNotFound)
	}
	if r.Status == status {
		return r, nil
	}
	if r.Status == model.RewardArchived {
		return nil, fmt.Errorf("reward %s is archived: %w", rewardID, points.ErrInvalidState)
	}

	if err := s.rewards.SetStatus(ctx, rewardID, status); err != nil {
		return nil, err
	}
	r, err = s.rewards.GetByID(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	s.rewardChanged(householdID, "updated", r)
	return r, nil
}

func validStatus(status model.RewardStatus) bool {
	switch status {
	case model.RewardDraft, model.RewardPublished, model.RewardArchived:
		return true
	}
	return false
}

// Redeem spends the reward's cost from userID's balance and records a
// pending redemption. The stock claim commits together with the debit. If
// the redemption row cannot be written the debit is reversed before the
// error is returned.
//
// The reward's lock is held from the stock check until the redemption is
// settled, and the user's lock from the balance check through the debit,
// the redemption insert and any reversal. Order is reward then user.
func (s *Service) Redeem(ctx context.Context, householdID, rewardID, userID string) (*RedeemResult, error) {
	if _, err := points.MemberOf(ctx, s.households, userID, householdID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(rewardID)
	defer unlock()

	r, err := s.rewards.GetByID(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.HouseholdID != householdID {
		return nil, fmt.Errorf("reward %s: %w", rewardID, points.ErrNotFound)
	}
	if r.Status != model.RewardPublished {
		return nil, fmt.Errorf("reward %s is %s: %w", rewardID, r.Status, points.ErrNotAvailable)
	}
	if !r.InStock() {
		return nil, fmt.Errorf("reward %s: %w", rewardID, points.ErrOutOfStock)
	}

	var (
		debit      *points.Result
		redemption *model.RewardRedemption
	)
	err = s.mutator.WithUser(userID, func(u *points.UserMutator) error {
		b, err := s.balances.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		var available int64
		if b != nil {
			available = b.CurrentBalance
		}
		if available < r.PointCost {
			return &points.InsufficientBalanceError{UserID: userID, Available: available, Requested: r.PointCost}
		}

		txID := uuid.NewString()
		debit, err = u.ApplyDelta(ctx, points.Delta{
			ID:          txID,
			UserID:      userID,
			HouseholdID: householdID,
			Points:      -r.PointCost,
			Kind:        model.TxRewardRedemption,
			ReferenceID: r.ID,
			Description: "Redeemed: " + r.Title,
			Actor:       userID,
			Effects:     []points.Effect{s.claimEffect(r.ID)},
		})
		if err != nil {
			return err
		}

		now := s.now().UTC()
		redemption = &model.RewardRedemption{
			ID:            uuid.NewString(),
			RewardID:      r.ID,
			UserID:        userID,
			HouseholdID:   householdID,
			PointsSpent:   r.PointCost,
			TransactionID: &txID,
			Status:        model.RedemptionPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.rewards.CreateRedemption(context.WithoutCancel(ctx), redemption); err != nil {
			return s.reverseDebit(ctx, u, r, householdID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(householdID, "created", redemption.ID, map[string]any{
		"reward_id": r.ID,
		"user_id":   userID,
	})
	return &RedeemResult{
		PointsSpent:  r.PointCost,
		NewBalance:   debit.NewBalance(),
		RedemptionID: redemption.ID,
	}, nil
}

// reverseDebit refunds a redemption debit whose redemption row could not be
// written and releases its stock claim. It returns cause, or a
// *PartialFailureError if the refund failed too. u must hold the redeemer's
// lock.
func (s *Service) reverseDebit(ctx context.Context, u *points.UserMutator, r *model.Reward, householdID string, cause error) error {
	userID := u.UserID()
	_, err := u.ApplyDelta(context.WithoutCancel(ctx), points.Delta{
		UserID:      userID,
		HouseholdID: householdID,
		Points:      r.PointCost,
		Kind:        model.TxUndo,
		ReferenceID: r.ID,
		Description: "Reversal: " + r.Title,
		Actor:       userID,
		Effects:     []points.Effect{s.releaseEffect(r.ID)},
	})
	if err == nil {
		s.logger.Warn("redemption reversed", "reward_id", r.ID, "user_id", userID, "error", cause)
		return cause
	}

	pf := &points.PartialFailureError{
		UserID:       userID,
		Kind:         model.TxRewardRedemption,
		ReferenceID:  r.ID,
		Points:       -r.PointCost,
		Cause:        cause,
		Compensation: err,
	}
	s.mutator.ReportPartialFailure(ctx, "redeem", pf)
	return pf
}

// Fulfill marks a pending redemption of the admin's household fulfilled.
// Redemptions that are missing, in another household or no longer pending
// are reported as not found.
func (s *Service) Fulfill(ctx context.Context, householdID, redemptionID, adminID, notes string) error {
	ok, err := s.rewards.FulfillRedemption(ctx, redemptionID, householdID, adminID, notes, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pending redemption %s: %w", redemptionID, points.ErrNotFound)
	}
	s.broadcast(householdID, "fulfilled", redemptionID, map[string]any{"fulfilled_by": adminID})
	return nil
}

// Cancel withdraws a pending redemption, refunding the captured points and
// releasing the stock claim in one mutation. Only the redeemer or an admin
// may cancel.
func (s *Service) Cancel(ctx context.Context, householdID, redemptionID, actorID string, isAdmin bool) (*CancelResult, error) {
	red, err := s.rewards.GetRedemption(ctx, redemptionID)
	if err != nil {
		return nil, err
	}
	if red == nil || red.HouseholdID != householdID {
		return nil, fmt.Errorf("redemption %s: %w", redemptionID, points.ErrNotFound)
	}
	if red.UserID != actorID && !isAdmin {
		return nil, fmt.Errorf("cancel redemption %s: %w", redemptionID, points.ErrUnauthorized)
	}
	if red.Status != model.RedemptionPending {
		return nil, fmt.Errorf("pending redemption %s: %w", redemptionID, points.ErrNotFound)
	}

	now := s.now().UTC()
	res, err := s.mutator.ApplyDelta(ctx, points.Delta{
		UserID:      red.UserID,
		HouseholdID: householdID,
		Points:      red.PointsSpent,
		Kind:        model.TxUndo,
		ReferenceID: red.RewardID,
		Description: "Redemption cancelled",
		Actor:       actorID,
		Effects: []points.Effect{
			s.statusEffect(red.ID, model.RedemptionPending, model.RedemptionCancelled, now),
			s.releaseEffect(red.RewardID),
		},
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(householdID, "cancelled", red.ID, map[string]any{"user_id": red.UserID})
	return &CancelResult{PointsRefunded: red.PointsSpent, NewBalance: res.NewBalance()}, nil
}

// ListRedemptions lists the household's redemptions, optionally filtered by
// status.
func (s *Service) ListRedemptions(ctx context.Context, householdID string, status model.RedemptionStatus) ([]model.RedemptionView, error) {
	switch status {
	case "", model.RedemptionPending, model.RedemptionFulfilled, model.RedemptionCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown redemption status %q", points.ErrInvalidInput, status)
	}
	return s.rewards.ListRedemptions(ctx, householdID, status)
}

func (s *Service) broadcast(householdID, action, id string, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(websocket.NewMessage(householdID, "redemption", action, id, extra))
}

func (s *Service) rewardChanged(householdID, action string, r *model.Reward) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(websocket.NewMessage(householdID, "reward", action, r.ID, map[string]any{
		"status": string(r.Status),
	}))
}

// --- Effects ---

func (s *Service) claimEffect(rewardID string) points.Effect {
	return points.EffectFuncs{
		ApplyFn: func(ctx context.Context, q store.DBTX) error {
			ok, err := s.rewards.With(q).ClaimStock(ctx, rewardID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("reward %s: %w", rewardID, points.ErrOutOfStock)
			}
			return nil
		},
		RevertFn: func(ctx context.Context, q store.DBTX) error {
			return s.rewards.With(q).ReleaseStock(ctx, rewardID)
		},
	}
}

func (s *Service) releaseEffect(rewardID string) points.Effect {
	return points.EffectFuncs{
		ApplyFn: func(ctx context.Context, q store.DBTX) error {
			return s.rewards.With(q).ReleaseStock(ctx, rewardID)
		},
		RevertFn: func(ctx context.Context, q store.DBTX) error {
			_, err := s.rewards.With(q).ClaimStock(ctx, rewardID)
			return err
		},
	}
}

func (s *Service) statusEffect(redemptionID string, from, to model.RedemptionStatus, at time.Time) points.Effect {
	return points.EffectFuncs{
		ApplyFn: func(ctx context.Context, q store.DBTX) error {
			ok, err := s.rewards.With(q).SetRedemptionStatus(ctx, redemptionID, from, to, at)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("pending redemption %s: %w", redemptionID, points.ErrNotFound)
			}
			return nil
		},
		RevertFn: func(ctx context.Context, q store.DBTX) error {
			_, err := s.rewards.With(q).SetRedemptionStatus(ctx, redemptionID, to, from, at)
			return err
		},
	}
}
