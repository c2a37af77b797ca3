package points

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
	"github.com/Susa-Sek/chorechamp-sub001/internal/testutil"
	"github.com/Susa-Sek/chorechamp-sub001/internal/websocket"
)

var strategies = []string{StrategyAtomic, StrategySequential}

type recorder struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (r *recorder) Broadcast(msg websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) messages() []websocket.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]websocket.Message(nil), r.msgs...)
}

type env struct {
	db      *sql.DB
	mutator *Mutator
	points  *store.PointStore
	issues  *store.ReconciliationStore
	clock   *testutil.Clock
	events  *recorder
}

func newEnv(t *testing.T, strategy string) *env {
	t.Helper()
	db := testutil.OpenDB(t)
	clock := testutil.NewClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	w, err := NewLedgerWriter(context.Background(), strategy, db, 5, testutil.Logger())
	require.NoError(t, err)

	issues := store.NewReconciliationStore(db)
	events := &recorder{}
	return &env{
		db:      db,
		mutator: NewMutator(w, issues, events, testutil.Logger(), clock.Now),
		points:  store.NewPointStore(db),
		issues:  issues,
		clock:   clock,
		events:  events,
	}
}

func (e *env) apply(t *testing.T, userID string, pts int64, kind model.TransactionType) *Result {
	t.Helper()
	res, err := e.mutator.ApplyDelta(context.Background(), Delta{
		UserID:      userID,
		HouseholdID: "h1",
		Points:      pts,
		Kind:        kind,
		Description: "test",
	})
	require.NoError(t, err)
	return res
}

func (e *env) balance(t *testing.T, userID string) *model.PointBalance {
	t.Helper()
	b, err := e.points.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *env) ledger(t *testing.T, userID string) []model.PointTransaction {
	t.Helper()
	txs, err := e.points.Ledger(context.Background(), userID)
	require.NoError(t, err)
	return txs
}

func (e *env) exec(t *testing.T, stmt string) {
	t.Helper()
	_, err := e.db.Exec(stmt)
	require.NoError(t, err)
}
