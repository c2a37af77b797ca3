package chore

import (
	"context"
	"database/sql"
	"errors"
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

// UndoWindow is how long after completion a chore can still be undone.
const UndoWindow = 24 * time.Hour

type Options struct {
	// Location decides calendar days for streaks.
	Location *time.Location
	// BonusEvery grants BonusPoints whenever the streak reaches a positive
	// multiple of it. Zero disables the bonus.
	BonusEvery  int
	BonusPoints int64
}

type CompleteResult struct {
	PointsEarned int64 `json:"points_earned"`
	NewStreak    int   `json:"new_streak"`
	NewBalance   int64 `json:"new_balance"`
	StreakBonus  int64 `json:"streak_bonus,omitempty"`
}

type UndoResult struct {
	PointsDeducted int64 `json:"points_deducted"`
	NewBalance     int64 `json:"new_balance"`
}

// Service awards points for chore completion and reverses them on undo.
type Service struct {
	db         *sql.DB
	mutator    *points.Mutator
	chores     *store.ChoreStore
	households *store.HouseholdStore
	balances   *store.PointStore
	notifier   points.Notifier
	locks      *points.KeyedMutex
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(db *sql.DB, mutator *points.Mutator, notifier points.Notifier, opts Options, logger *slog.Logger, now func() time.Time) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:         db,
		mutator:    mutator,
		chores:     store.NewChoreStore(db),
		households: store.NewHouseholdStore(db),
		balances:   store.NewPointStore(db),
		notifier:   notifier,
		locks:      points.NewKeyedMutex(),
		opts:       opts,
		logger:     logger.With("component", "chore"),
		now:        now,
	}
}

// loadChore returns the chore if it belongs to householdID.
func (s *Service) loadChore(ctx context.Context, householdID, choreID string) (*model.Chore, error) {
	c, err := s.chores.GetByID(ctx, choreID)
	if err != nil {
		return nil, err
	}
	if c == nil || c.HouseholdID != householdID {
		return nil, fmt.Errorf("chore %s: %w", choreID, points.ErrNotFound)
	}
	return c, nil
}

// Create adds a pending chore to the household. Zero-point chores are
// allowed; they advance streaks without touching the ledger.
func (s *Service) Create(ctx context.Context, householdID, title, description string, pts int64) (*model.Chore, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", points.ErrInvalidInput)
	}
	if pts < 0 {
		return nil, fmt.Errorf("%w: points must be >= 0", points.ErrInvalidInput)
	}

	c, err := s.chores.Create(ctx, householdID, title, strings.TrimSpace(description), pts)
	if err != nil {
		return nil, err
	}
	s.broadcast(householdID, "created", c.ID, map[string]any{"points": c.Points})
	return c, nil
}

// Complete marks a pending chore completed by userID, awards its points
// and advances the user's streak.
func (s *Service) Complete(ctx context.Context, householdID, choreID, userID string) (*CompleteResult, error) {
	unlock := s.locks.Lock(choreID)
	defer unlock()

	c, err := s.loadChore(ctx, householdID, choreID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.ChorePending {
		return nil, fmt.Errorf("chore %s is %s: %w", choreID, c.Status, points.ErrInvalidState)
	}
	if _, err := points.MemberOf(ctx, s.households, userID, householdID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	txID := uuid.NewString()
	completion := &model.ChoreCompletion{
		ID:           uuid.NewString(),
		ChoreID:      c.ID,
		CompletedBy:  userID,
		PointsEarned: c.Points,
		CompletedAt:  now,
	}
	if c.Points > 0 {
		completion.TransactionID = &txID
	}
	streak := &streakEffect{
		chores: s.chores,
		userID: userID,
		day:    CompletionDate(now, s.opts.Location),
		now:    now,
	}
	effects := []points.Effect{
		s.claimEffect(c.ID, userID, now),
		s.recordEffect(completion),
		streak,
	}

	res := &CompleteResult{PointsEarned: c.Points}
	if c.Points > 0 {
		out, err := s.mutator.ApplyDelta(ctx, points.Delta{
			ID:          txID,
			UserID:      userID,
			HouseholdID: householdID,
			Points:      c.Points,
			Kind:        model.TxChoreCompletion,
			ReferenceID: c.ID,
			Description: c.Title,
			Actor:       userID,
			Effects:     effects,
		})
		if err != nil {
			return nil, err
		}
		res.NewBalance = out.NewBalance()
	} else {
		err := s.mutator.Locked(userID, func() error {
			return points.RunEffects(ctx, s.db, effects)
		})
		if err != nil {
			return nil, s.reportPartial(ctx, "complete", userID, c.ID, err)
		}
		b, err := s.balances.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		if b != nil {
			res.NewBalance = b.CurrentBalance
		}
	}
	res.NewStreak = streak.next.CurrentStreak

	if s.bonusDue(streak.prev, streak.next) {
		out, err := s.mutator.ApplyDelta(ctx, points.Delta{
			UserID:      userID,
			HouseholdID: householdID,
			Points:      s.opts.BonusPoints,
			Kind:        model.TxStreakBonus,
			ReferenceID: c.ID,
			Description: fmt.Sprintf("Streak bonus: %d days", streak.next.CurrentStreak),
			Actor:       userID,
		})
		if err != nil {
			// The completion itself is committed.
			s.logger.Warn("streak bonus not granted", "user_id", userID, "streak", streak.next.CurrentStreak, "error", err)
		} else {
			res.StreakBonus = s.opts.BonusPoints
			res.NewBalance = out.NewBalance()
		}
	}

	s.broadcast(householdID, "completed", c.ID, map[string]any{"user_id": userID, "points": c.Points})
	return res, nil
}

func (s *Service) bonusDue(prev *model.UserStreak, next model.UserStreak) bool {
	if s.opts.BonusEvery <= 0 || s.opts.BonusPoints <= 0 {
		return false
	}
	if prev != nil && prev.CurrentStreak == next.CurrentStreak {
		return false
	}
	return next.CurrentStreak%s.opts.BonusEvery == 0
}

// Undo reverses the latest completion of a chore within UndoWindow. The
// points are deducted from whoever completed the chore, not from actorID.
// A completion that was flagged undone but never deducted is finished by
// the next call without re-checking the window.
func (s *Service) Undo(ctx context.Context, householdID, choreID, actorID string) (*UndoResult, error) {
	unlock := s.locks.Lock(choreID)
	defer unlock()

	c, err := s.loadChore(ctx, householdID, choreID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.ChoreCompleted {
		return nil, fmt.Errorf("chore %s is %s: %w", choreID, c.Status, points.ErrInvalidState)
	}

	cc, err := s.chores.LatestCompletion(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if cc == nil {
		return nil, fmt.Errorf("chore %s has no open completion: %w", choreID, points.ErrInvalidState)
	}

	now := s.now().UTC()
	if cc.UndoneAt == nil {
		if now.Sub(cc.CompletedAt) > UndoWindow {
			return nil, fmt.Errorf("chore %s completed at %s: %w", choreID, cc.CompletedAt.Format(time.RFC3339), points.ErrWindowExpired)
		}
		if err := s.precheckBalance(ctx, cc); err != nil {
			return nil, err
		}
		ok, err := s.chores.MarkUndone(ctx, cc.ID, actorID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("completion %s already undone: %w", cc.ID, points.ErrInvalidState)
		}
	} else {
		s.logger.Info("finishing interrupted undo", "chore_id", c.ID, "completion_id", cc.ID)
	}

	reset := s.resetEffect(c.ID, cc, now)
	res := &UndoResult{PointsDeducted: cc.PointsEarned}

	if cc.PointsEarned > 0 {
		txID := uuid.NewString()
		out, err := s.mutator.ApplyDelta(ctx, points.Delta{
			ID:          txID,
			UserID:      cc.CompletedBy,
			HouseholdID: householdID,
			Points:      -cc.PointsEarned,
			Kind:        model.TxUndo,
			ReferenceID: c.ID,
			Description: "Undo: " + c.Title,
			Actor:       actorID,
			Effects:     []points.Effect{s.reversalEffect(cc.ID, txID), reset},
		})
		if err != nil {
			return nil, err
		}
		res.NewBalance = out.NewBalance()
	} else {
		err := s.mutator.Locked(cc.CompletedBy, func() error {
			return points.RunEffects(ctx, s.db, []points.Effect{reset})
		})
		if err != nil {
			return nil, s.reportPartial(ctx, "undo", cc.CompletedBy, c.ID, err)
		}
		b, err := s.balances.GetBalance(ctx, cc.CompletedBy)
		if err != nil {
			return nil, err
		}
		if b != nil {
			res.NewBalance = b.CurrentBalance
		}
	}

	s.broadcast(householdID, "undone", c.ID, map[string]any{"user_id": cc.CompletedBy, "points": cc.PointsEarned})
	return res, nil
}

// precheckBalance fails early when the completer already spent the points
// the undo would deduct. The mutator repeats the check under the user lock.
func (s *Service) precheckBalance(ctx context.Context, cc *model.ChoreCompletion) error {
	if cc.PointsEarned <= 0 {
		return nil
	}
	b, err := s.balances.GetBalance(ctx, cc.CompletedBy)
	if err != nil {
		return err
	}
	var available int64
	if b != nil {
		available = b.CurrentBalance
	}
	if available < cc.PointsEarned {
		return &points.InsufficientBalanceError{UserID: cc.CompletedBy, Available: available, Requested: cc.PointsEarned}
	}
	return nil
}

// reportPartial reports a partial failure from a write that bypassed the
// mutator and returns err unchanged.
func (s *Service) reportPartial(ctx context.Context, operation, userID, choreID string, err error) error {
	var pf *points.PartialFailureError
	if errors.As(err, &pf) {
		pf.UserID = userID
		pf.ReferenceID = choreID
		pf.Kind = model.TxChoreCompletion
		if operation == "undo" {
			pf.Kind = model.TxUndo
		}
		s.mutator.ReportPartialFailure(ctx, operation, pf)
	}
	return err
}

func (s *Service) broadcast(householdID, action, choreID string, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(websocket.NewMessage(householdID, "chore", action, choreID, extra))
}

// --- Effects ---

func (s *Service) claimEffect(choreID, userID string, at time.Time) points.Effect {
	return points.EffectFuncs{
		ApplyFn: func(ctx context.Context, q store.DBTX) error {
			ok, err := s.chores.With(q).MarkCompleted(ctx, choreID, userID, at)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("chore %s is no longer pending: %w", choreID, points.ErrInvalidState)
			}
			return nil
		},
		RevertFn: func(ctx context.Context, q store.DBTX) error {
			_, err := s.chores.With(q).ResetPending(ctx, choreID, at)
			return err
		},
	}
}

func (s *Service) recordEffect(cc *model.ChoreCompletion) points.Effect {
	return points.EffectFuncs{
		ApplyFn: func(ctx context.Context, q store.DBTX) error {
			return s.chores.With(q).InsertCompletion(ctx, cc)
		},
		RevertFn: func(ctx context.Context, q store.DBTX) error {
			return s.chores.With(q).DeleteCompletion(ctx, cc.ID)
		},
	}
}

func (s *Service) reversalEffect(completionID, txID string) points.Effect {
	return points.EffectFuncs{
		ApplyFn: func(ctx context.Context, q store.DBTX) error {
			ok, err := s.chores.With(q).SetReversal(ctx, completionID, txID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("completion %s already reversed: %w", completionID, points.ErrInvalidState)
			}
			return nil
		},
		RevertFn: func(ctx context.Context, q store.DBTX) error {
			return s.chores.With(q).ClearReversal(ctx, completionID)
		},
	}
}

func (s *Service) resetEffect(choreID string, cc *model.ChoreCompletion, at time.Time) points.Effect {
	return points.EffectFuncs{
		ApplyFn: func(ctx context.Context, q store.DBTX) error {
			ok, err := s.chores.With(q).ResetPending(ctx, choreID, at)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("chore %s is no longer completed: %w", choreID, points.ErrInvalidState)
			}
			return nil
		},
		RevertFn: func(ctx context.Context, q store.DBTX) error {
			_, err := s.chores.With(q).MarkCompleted(ctx, choreID, cc.CompletedBy, cc.CompletedAt)
			return err
		},
	}
}

// streakEffect advances the user's streak. It reads the current row when
// applied so the update happens under the user's mutation lock.
type streakEffect struct {
	chores *store.ChoreStore
	userID string
	day    string
	now    time.Time

	prev *model.UserStreak
	next model.UserStreak
}

func (e *streakEffect) Apply(ctx context.Context, q store.DBTX) error {
	cs := e.chores.With(q)
	prev, err := cs.GetStreak(ctx, e.userID)
	if err != nil {
		return err
	}

	base := model.UserStreak{UserID: e.userID}
	if prev != nil {
		base = *prev
	}
	next := NextStreak(base, e.day)
	next.UpdatedAt = e.now

	if err := cs.PutStreak(ctx, &next); err != nil {
		return err
	}
	e.prev, e.next = prev, next
	return nil
}

func (e *streakEffect) Revert(ctx context.Context, q store.DBTX) error {
	cs := e.chores.With(q)
	if e.prev == nil {
		return cs.DeleteStreak(ctx, e.userID)
	}
	return cs.PutStreak(ctx, e.prev)
}
