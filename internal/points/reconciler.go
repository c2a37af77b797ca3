package points

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/metrics"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

// Drift describes a balance row that disagrees with its ledger.
type Drift struct {
	UserID   string
	Stored   model.PointBalance
	Expected model.PointBalance
	// Missing is set when the ledger has entries but no balance row exists.
	Missing bool
}

func (d Drift) String() string {
	return fmt.Sprintf("user %s: stored %d/%d/%d, ledger %d/%d/%d",
		d.UserID,
		d.Stored.CurrentBalance, d.Stored.TotalEarned, d.Stored.TotalSpent,
		d.Expected.CurrentBalance, d.Expected.TotalEarned, d.Expected.TotalSpent)
}

// Reconciler compares balance rows with the ledger and repairs drift.
type Reconciler struct {
	mutator *Mutator
	points  *store.PointStore
	issues  *store.ReconciliationStore
	logger  *slog.Logger
}

func NewReconciler(mutator *Mutator, points *store.PointStore, issues *store.ReconciliationStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		mutator: mutator,
		points:  points,
		issues:  issues,
		logger:  logger.With("component", "reconciler"),
	}
}

// Check replays every user's ledger and returns the users whose balance row
// does not match.
func (r *Reconciler) Check(ctx context.Context) ([]Drift, error) {
	users, err := r.points.LedgerUsers(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, userID := range users {
		d, err := r.check(ctx, userID)
		if err != nil {
			return nil, err
		}
		if d != nil {
			drifts = append(drifts, *d)
		}
	}
	metrics.LedgerDrift.Set(float64(len(drifts)))
	return drifts, nil
}

func (r *Reconciler) check(ctx context.Context, userID string) (*Drift, error) {
	txs, err := r.points.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	expected := Replay(userID, txs)

	stored, err := r.points.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		if len(txs) == 0 {
			return nil, nil
		}
		return &Drift{UserID: userID, Expected: expected, Missing: true}, nil
	}

	if stored.CurrentBalance == expected.CurrentBalance &&
		stored.TotalEarned == expected.TotalEarned &&
		stored.TotalSpent == expected.TotalSpent {
		return nil, nil
	}
	return &Drift{UserID: userID, Stored: *stored, Expected: expected}, nil
}

// Repair rewrites the user's balance row from a replay of the ledger and
// resolves the user's open reconciliation issues. It holds the user's
// mutation lock so no mutation interleaves with the rewrite.
func (r *Reconciler) Repair(ctx context.Context, userID string) (*model.PointBalance, error) {
	unlock := r.mutator.locks.Lock(userID)
	defer unlock()

	txs, err := r.points.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	b := Replay(userID, txs)
	b.Version = 1
	b.UpdatedAt = r.mutator.now().UTC()

	if err := r.points.OverwriteBalance(ctx, &b); err != nil {
		return nil, err
	}
	resolved, err := r.issues.Resolve(ctx, userID, b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.logger.Info("balance repaired",
		"user_id", userID,
		"current_balance", b.CurrentBalance,
		"total_earned", b.TotalEarned,
		"total_spent", b.TotalSpent,
		"entries", len(txs),
		"issues_resolved", resolved,
	)
	return &b, nil
}

// RepairAll repairs every drifting user and every user with an open issue.
func (r *Reconciler) RepairAll(ctx context.Context) ([]string, error) {
	drifts, err := r.Check(ctx)
	if err != nil {
		return nil, err
	}
	open, err := r.issues.ListOpen(ctx, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var users []string
	for _, d := range drifts {
		if !seen[d.UserID] {
			seen[d.UserID] = true
			users = append(users, d.UserID)
		}
	}
	for _, i := range open {
		if !seen[i.UserID] {
			seen[i.UserID] = true
			users = append(users, i.UserID)
		}
	}

	start := time.Now()
	for _, userID := range users {
		if _, err := r.Repair(ctx, userID); err != nil {
			return nil, fmt.Errorf("repair %s: %w", userID, err)
		}
	}
	if len(users) > 0 {
		r.logger.Info("reconciliation finished", "users", len(users), "duration", time.Since(start))
	}
	metrics.LedgerDrift.Set(0)
	return users, nil
}
