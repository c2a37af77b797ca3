package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Susa-Sek/chorechamp-sub001/internal/database"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

// OpenDB returns a migrated in-memory database closed at test cleanup.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

// Household creates a household whose members are given as user id to
// role. The household id is returned.
func Household(t *testing.T, db *sql.DB, members map[string]model.Role) string {
	t.Helper()
	ctx := context.Background()
	hs := store.NewHouseholdStore(db)

	h, err := hs.Create(ctx, "Test Household")
	require.NoError(t, err, "create household")
	for userID, role := range members {
		_, err := hs.AddMember(ctx, h.ID, userID, userID, role)
		require.NoError(t, err, "add member %s", userID)
	}
	return h.ID
}

// Logger returns a logger that discards its output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Chore creates a pending chore worth pts and returns its id.
func Chore(t *testing.T, db *sql.DB, householdID string, pts int64) string {
	t.Helper()
	c, err := store.NewChoreStore(db).Create(context.Background(), householdID, "Dishes", "", pts)
	require.NoError(t, err, "create chore")
	return c.ID
}

// Reward creates a published reward. A nil quantity means unlimited stock.
func Reward(t *testing.T, db *sql.DB, householdID string, cost int64, quantity *int64) string {
	t.Helper()
	r, err := store.NewRewardStore(db).Create(context.Background(), householdID, "Ice cream", "", cost, quantity, model.RewardPublished)
	require.NoError(t, err, "create reward")
	return r.ID
}
