package points

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

// Delta is one signed change to a user's balance together with the ledger
// entry describing it and any side-table effects that must commit with it.
type Delta struct {
	// ID is the transaction id. Generated when empty; callers that need to
	// reference the transaction from an effect set it up front.
	ID          string
	UserID      string
	HouseholdID string
	Points      int64
	Kind        model.TransactionType
	ReferenceID string
	Description string
	Actor       string
	Effects     []Effect
}

// Effect is a side-table write that belongs to the same unit as a balance
// mutation. Revert must undo a successful Apply.
type Effect interface {
	Apply(ctx context.Context, q store.DBTX) error
	Revert(ctx context.Context, q store.DBTX) error
}

// EffectFuncs adapts a pair of functions to Effect. A nil RevertFn is a
// no-op.
type EffectFuncs struct {
	ApplyFn  func(ctx context.Context, q store.DBTX) error
	RevertFn func(ctx context.Context, q store.DBTX) error
}

func (e EffectFuncs) Apply(ctx context.Context, q store.DBTX) error {
	return e.ApplyFn(ctx, q)
}

func (e EffectFuncs) Revert(ctx context.Context, q store.DBTX) error {
	if e.RevertFn == nil {
		return nil
	}
	return e.RevertFn(ctx, q)
}

// RunEffects applies effects in order on q. If one fails, the effects
// already applied are reverted in reverse order. A failed revert yields a
// *PartialFailureError carrying both errors.
func RunEffects(ctx context.Context, q store.DBTX, effects []Effect) error {
	var applied []Effect
	for _, e := range effects {
		if err := e.Apply(ctx, q); err != nil {
			var revertErr error
			for i := len(applied) - 1; i >= 0; i-- {
				revertErr = multierr.Append(revertErr, applied[i].Revert(ctx, q))
			}
			if revertErr != nil {
				return &PartialFailureError{Cause: err, Compensation: revertErr}
			}
			return err
		}
		applied = append(applied, e)
	}
	return nil
}

// Result is the committed ledger entry and the balance right after it.
type Result struct {
	Transaction model.PointTransaction
	Balance     model.PointBalance
}

func (r *Result) NewBalance() int64 {
	return r.Balance.CurrentBalance
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nextBalance computes the balance row after d. prev is nil for a user
// without a balance row. Spends that would go negative fail with
// *InsufficientBalanceError.
func nextBalance(prev *model.PointBalance, d Delta, now time.Time) (model.PointBalance, error) {
	var next model.PointBalance
	if prev != nil {
		next = *prev
		next.Version = prev.Version + 1
	} else {
		next = model.PointBalance{UserID: d.UserID, Version: 1}
	}
	if next.HouseholdID == nil {
		next.HouseholdID = nonEmpty(d.HouseholdID)
	}

	if next.CurrentBalance+d.Points < 0 {
		return model.PointBalance{}, &InsufficientBalanceError{
			UserID:    d.UserID,
			Available: next.CurrentBalance,
			Requested: -d.Points,
		}
	}

	attribute(&next, d.Points, d.Kind)
	next.UpdatedAt = now
	return next, nil
}

// attribute applies points to b. Earnings raise total earned and spends
// raise total spent. Undo entries lower the total they reverse and spill
// any remainder into the other total, which keeps current equal to earned
// minus spent.
func attribute(b *model.PointBalance, points int64, kind model.TransactionType) {
	switch {
	case kind == model.TxUndo && points < 0:
		take := min(-points, b.TotalEarned)
		b.TotalEarned -= take
		b.TotalSpent += -points - take
	case kind == model.TxUndo && points > 0:
		take := min(points, b.TotalSpent)
		b.TotalSpent -= take
		b.TotalEarned += points - take
	case points > 0:
		b.TotalEarned += points
	default:
		b.TotalSpent += -points
	}
	b.CurrentBalance += points
}

// Replay folds a ledger in canonical order into the balance it implies.
func Replay(userID string, txs []model.PointTransaction) model.PointBalance {
	b := model.PointBalance{UserID: userID}
	for _, t := range txs {
		if b.HouseholdID == nil && t.HouseholdID != nil {
			h := *t.HouseholdID
			b.HouseholdID = &h
		}
		attribute(&b, t.Points, t.TransactionType)
	}
	return b
}

func newTransaction(d Delta, balanceAfter int64, now time.Time) model.PointTransaction {
	return model.PointTransaction{
		ID:              d.ID,
		UserID:          d.UserID,
		HouseholdID:     nonEmpty(d.HouseholdID),
		Points:          d.Points,
		TransactionType: d.Kind,
		ReferenceID:     nonEmpty(d.ReferenceID),
		Description:     d.Description,
		BalanceAfter:    balanceAfter,
		CreatedBy:       d.Actor,
		CreatedAt:       now,
	}
}
