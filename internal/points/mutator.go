package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/unicode/norm"

	"github.com/Susa-Sek/chorechamp-sub001/internal/metrics"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
	"github.com/Susa-Sek/chorechamp-sub001/internal/websocket"
)

// Notifier receives a message after every committed mutation.
type Notifier interface {
	Broadcast(msg websocket.Message)
}

// Mutator is the only writer of balances. It serializes mutations per user
// and hands each one to the configured LedgerWriter.
type Mutator struct {
	writer   LedgerWriter
	locks    *KeyedMutex
	issues   *store.ReconciliationStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewMutator creates a Mutator. notifier may be nil.
func NewMutator(writer LedgerWriter, issues *store.ReconciliationStore, notifier Notifier, logger *slog.Logger, now func() time.Time) *Mutator {
	if now == nil {
		now = time.Now
	}
	return &Mutator{
		writer:   writer,
		locks:    NewKeyedMutex(),
		issues:   issues,
		notifier: notifier,
		logger:   logger.With("component", "mutator"),
		now:      now,
	}
}

// Strategy returns the name of the writer in use.
func (m *Mutator) Strategy() string {
	return m.writer.Name()
}

// Locked runs fn while holding userID's mutation lock. Writes that touch
// per-user rows without changing the balance go through here.
func (m *Mutator) Locked(userID string, fn func() error) error {
	unlock := m.locks.Lock(userID)
	defer unlock()
	return fn()
}

// ApplyDelta commits d. A negative delta that would overdraw the balance
// fails with *InsufficientBalanceError and writes nothing.
func (m *Mutator) ApplyDelta(ctx context.Context, d Delta) (*Result, error) {
	d, err := m.prepare(ctx, d)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(d.UserID)
	defer unlock()
	return m.apply(ctx, d)
}

// UserMutator applies deltas for the user whose lock is held by WithUser.
// It is only valid until the function passed to WithUser returns.
type UserMutator struct {
	m      *Mutator
	userID string
}

// UserID is the user whose lock is held.
func (u *UserMutator) UserID() string { return u.userID }

// ApplyDelta commits d without taking the lock again. d must be for the
// held user.
func (u *UserMutator) ApplyDelta(ctx context.Context, d Delta) (*Result, error) {
	if d.UserID != u.userID {
		return nil, fmt.Errorf("%w: delta for %s while holding %s", ErrInvalidAmount, d.UserID, u.userID)
	}
	d, err := u.m.prepare(ctx, d)
	if err != nil {
		return nil, err
	}
	return u.m.apply(ctx, d)
}

// WithUser runs fn while holding userID's mutation lock, so several
// mutations and the writes between them commit without another writer for
// that user interleaving. Inside fn, deltas for userID must go through u;
// calling Mutator.ApplyDelta for the same user would deadlock.
func (m *Mutator) WithUser(userID string, fn func(u *UserMutator) error) error {
	unlock := m.locks.Lock(userID)
	defer unlock()
	return fn(&UserMutator{m: m, userID: userID})
}

func (m *Mutator) prepare(ctx context.Context, d Delta) (Delta, error) {
	if d.Points == 0 {
		return d, fmt.Errorf("%w: points must be non-zero", ErrInvalidAmount)
	}
	if d.UserID == "" {
		return d, fmt.Errorf("%w: user id is required", ErrInvalidAmount)
	}
	if !d.Kind.Valid() {
		return d, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidAmount, d.Kind)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Actor == "" {
		d.Actor = d.UserID
	}
	d.Description = norm.NFC.String(d.Description)

	if err := ctx.Err(); err != nil {
		metrics.LedgerMutationErrors.WithLabelValues("deadline").Inc()
		return d, err
	}
	return d, nil
}

// apply writes d. The caller holds d.UserID's lock.
func (m *Mutator) apply(ctx context.Context, d Delta) (*Result, error) {
	// Waiting for the lock may have used up the deadline.
	if err := ctx.Err(); err != nil {
		metrics.LedgerMutationErrors.WithLabelValues("deadline").Inc()
		return nil, err
	}

	timer := prometheus.NewTimer(metrics.LedgerApplySeconds.WithLabelValues(m.writer.Name()))
	res, err := m.writer.Write(ctx, d, m.now().UTC())
	timer.ObserveDuration()
	if err != nil {
		metrics.LedgerMutationErrors.WithLabelValues(errorReason(err)).Inc()
		var pf *PartialFailureError
		if errors.As(err, &pf) {
			m.ReportPartialFailure(ctx, "apply_delta", pf)
		}
		return nil, err
	}

	metrics.LedgerMutations.WithLabelValues(string(d.Kind), m.writer.Name()).Inc()
	m.logger.Debug("balance changed",
		"user_id", d.UserID,
		"kind", d.Kind,
		"points", d.Points,
		"balance", res.Balance.CurrentBalance,
		"transaction_id", res.Transaction.ID,
	)

	if m.notifier != nil {
		m.notifier.Broadcast(websocket.NewMessage(d.HouseholdID, "balance", "changed", d.UserID, map[string]any{
			"points":           d.Points,
			"transaction_type": string(d.Kind),
			"new_balance":      res.Balance.CurrentBalance,
		}))
	}
	return res, nil
}

// ReportPartialFailure logs pf, counts it and records a reconciliation
// issue. Workflows call it for partial failures they detect themselves.
func (m *Mutator) ReportPartialFailure(ctx context.Context, operation string, pf *PartialFailureError) {
	metrics.LedgerPartialFailures.Inc()
	m.logger.Error("partial failure, balance requires reconciliation",
		"operation", operation,
		"user_id", pf.UserID,
		"kind", pf.Kind,
		"reference_id", pf.ReferenceID,
		"points", pf.Points,
		"cause", pf.Cause,
		"compensation_error", pf.Compensation,
	)

	if m.issues == nil {
		return
	}
	issue := &model.ReconciliationIssue{
		ID:              uuid.NewString(),
		UserID:          pf.UserID,
		Operation:       operation,
		TransactionType: pf.Kind,
		ReferenceID:     nonEmpty(pf.ReferenceID),
		Points:          pf.Points,
		Detail:          pf.Error(),
		CreatedAt:       m.now().UTC(),
	}
	if err := m.issues.Record(context.WithoutCancel(ctx), issue); err != nil {
		m.logger.Error("record reconciliation issue", "user_id", pf.UserID, "error", err)
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrPartialFailure):
		return "partial_failure"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	case IsClientError(err):
		return "rejected"
	default:
		return "storage"
	}
}
