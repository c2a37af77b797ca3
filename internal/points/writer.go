package points

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/Susa-Sek/chorechamp-sub001/internal/metrics"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

// Ledger write strategies.
const (
	StrategyAuto       = "auto"
	StrategyAtomic     = "atomic"
	StrategySequential = "sequential"
)

// LedgerWriter commits one Delta: the balance row, the ledger entry and the
// delta's effects. Callers serialize writes per user.
type LedgerWriter interface {
	Name() string
	Write(ctx context.Context, d Delta, now time.Time) (*Result, error)
}

// NewLedgerWriter picks the writer for strategy. With StrategyAuto the
// database is checked once for transaction support.
func NewLedgerWriter(ctx context.Context, strategy string, db *sql.DB, casRetries uint64, logger *slog.Logger) (LedgerWriter, error) {
	switch strategy {
	case StrategyAtomic:
		return NewAtomicLedgerWriter(db), nil
	case StrategySequential:
		return NewSequentialLedgerWriter(db, casRetries, logger), nil
	case StrategyAuto, "":
		if store.SupportsTransactions(ctx, db) {
			return NewAtomicLedgerWriter(db), nil
		}
		logger.Warn("database does not support transactions, using sequential ledger writer")
		return NewSequentialLedgerWriter(db, casRetries, logger), nil
	default:
		return nil, fmt.Errorf("unknown ledger strategy %q", strategy)
	}
}

// AtomicLedgerWriter commits a delta inside one database transaction.
type AtomicLedgerWriter struct {
	db     *sql.DB
	points *store.PointStore
}

func NewAtomicLedgerWriter(db *sql.DB) *AtomicLedgerWriter {
	return &AtomicLedgerWriter{db: db, points: store.NewPointStore(db)}
}

func (w *AtomicLedgerWriter) Name() string { return StrategyAtomic }

func (w *AtomicLedgerWriter) Write(ctx context.Context, d Delta, now time.Time) (*Result, error) {
	var res *Result
	err := store.WithTx(ctx, w.db, func(tx *sql.Tx) error {
		ps := w.points.With(tx)

		prev, err := ps.GetBalance(ctx, d.UserID)
		if err != nil {
			return err
		}
		next, err := nextBalance(prev, d, now)
		if err != nil {
			return err
		}

		ok, err := putBalance(ctx, ps, prev, &next)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentModification
		}

		for _, e := range d.Effects {
			if err := e.Apply(ctx, tx); err != nil {
				return err
			}
		}

		t := newTransaction(d, next.CurrentBalance, now)
		if err := ps.InsertTransaction(ctx, &t); err != nil {
			return err
		}

		res = &Result{Transaction: t, Balance: next}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SequentialLedgerWriter commits a delta as separate statements for
// storage without usable transactions. The balance row is written with a
// compare-and-set on its version, then the effects, then the ledger entry.
// A failure after the balance write reverts the applied effects and
// restores the balance row; if that cannot be confirmed the result is a
// *PartialFailureError.
type SequentialLedgerWriter struct {
	db         store.DBTX
	points     *store.PointStore
	casRetries uint64
	logger     *slog.Logger
}

func NewSequentialLedgerWriter(db store.DBTX, casRetries uint64, logger *slog.Logger) *SequentialLedgerWriter {
	return &SequentialLedgerWriter{
		db:         db,
		points:     store.NewPointStore(db),
		casRetries: casRetries,
		logger:     logger.With("component", "ledger"),
	}
}

func (w *SequentialLedgerWriter) Name() string { return StrategySequential }

func (w *SequentialLedgerWriter) Write(ctx context.Context, d Delta, now time.Time) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var prev *model.PointBalance
	var next model.PointBalance

	backoff := retry.WithMaxRetries(w.casRetries, retry.NewExponential(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := w.points.GetBalance(ctx, d.UserID)
		if err != nil {
			return err
		}
		n, err := nextBalance(p, d, now)
		if err != nil {
			return err
		}
		ok, err := putBalance(ctx, w.points, p, &n)
		if err != nil {
			return err
		}
		if !ok {
			metrics.LedgerCASConflicts.Inc()
			return retry.RetryableError(ErrConcurrentModification)
		}
		prev, next = p, n
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The balance row is written; finish regardless of the caller's deadline.
	wctx := context.WithoutCancel(ctx)

	var applied []Effect
	for _, e := range d.Effects {
		if err := e.Apply(wctx, w.db); err != nil {
			return nil, w.compensate(wctx, d, prev, next, applied, err)
		}
		applied = append(applied, e)
	}

	t := newTransaction(d, next.CurrentBalance, now)
	if err := w.points.InsertTransaction(wctx, &t); err != nil {
		return nil, w.compensate(wctx, d, prev, next, applied, err)
	}

	return &Result{Transaction: t, Balance: next}, nil
}

// compensate reverts applied effects in reverse order and restores the
// balance row to prev. It returns cause when the rollback is confirmed.
func (w *SequentialLedgerWriter) compensate(ctx context.Context, d Delta, prev *model.PointBalance, written model.PointBalance, applied []Effect, cause error) error {
	var compErr error
	for i := len(applied) - 1; i >= 0; i-- {
		compErr = multierr.Append(compErr, applied[i].Revert(ctx, w.db))
	}
	compErr = multierr.Append(compErr, w.restoreBalance(ctx, prev, written))

	if compErr == nil {
		metrics.LedgerCompensations.WithLabelValues("ok").Inc()
		w.logger.Warn("ledger write rolled back",
			"user_id", d.UserID,
			"kind", d.Kind,
			"points", d.Points,
			"error", cause,
		)
		return cause
	}

	metrics.LedgerCompensations.WithLabelValues("failed").Inc()
	return &PartialFailureError{
		UserID:       d.UserID,
		Kind:         d.Kind,
		ReferenceID:  d.ReferenceID,
		Points:       d.Points,
		Cause:        cause,
		Compensation: compErr,
	}
}

func (w *SequentialLedgerWriter) restoreBalance(ctx context.Context, prev *model.PointBalance, written model.PointBalance) error {
	var ok bool
	var err error
	if prev == nil {
		ok, err = w.points.DeleteBalance(ctx, written.UserID, written.Version)
	} else {
		restore := *prev
		restore.Version = written.Version + 1
		restore.UpdatedAt = written.UpdatedAt
		ok, err = w.points.CompareAndSetBalance(ctx, &restore, written.Version)
	}
	if err != nil {
		return fmt.Errorf("restore balance: %w", err)
	}
	if !ok {
		return errors.New("restore balance: row changed since write")
	}
	return nil
}

func putBalance(ctx context.Context, ps *store.PointStore, prev, next *model.PointBalance) (bool, error) {
	if prev == nil {
		return ps.InsertBalance(ctx, next)
	}
	return ps.CompareAndSetBalance(ctx, next, prev.Version)
}
