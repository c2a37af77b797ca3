package points

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
	"github.com/Susa-Sek/chorechamp-sub001/internal/testutil"
)

func newService(t *testing.T) (*Service, *env, string) {
	t.Helper()
	e := newEnv(t, StrategyAtomic)
	hid := testutil.Household(t, e.db, map[string]model.Role{
		"admin": model.RoleAdmin,
		"kid":   model.RoleMember,
	})
	svc := NewService(e.mutator, e.points, store.NewHouseholdStore(e.db), store.NewChoreStore(e.db))
	return svc, e, hid
}

func TestBonus(t *testing.T) {
	svc, e, hid := newService(t)
	ctx := context.Background()

	res, err := svc.Bonus(ctx, "admin", hid, "kid", 25, "  ")
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.NewBalance())
	assert.Equal(t, "Bonus", res.Transaction.Description)
	assert.Equal(t, "admin", res.Transaction.CreatedBy)
	assert.Equal(t, model.TxBonus, res.Transaction.TransactionType)

	_, err = svc.Bonus(ctx, "admin", hid, "kid", 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Bonus(ctx, "admin", hid, "kid", -5, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Bonus(ctx, "admin", hid, "stranger", 5, "")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(25), e.balance(t, "kid").CurrentBalance)
}

func TestBalanceSummary(t *testing.T) {
	svc, _, hid := newService(t)
	ctx := context.Background()

	sum, err := svc.Balance(ctx, hid, "kid")
	require.NoError(t, err)
	assert.Equal(t, &BalanceSummary{UserID: "kid"}, sum, "no mutations yet")

	_, err = svc.Bonus(ctx, "admin", hid, "kid", 40, "great week")
	require.NoError(t, err)

	sum, err = svc.Balance(ctx, hid, "kid")
	require.NoError(t, err)
	assert.Equal(t, int64(40), sum.CurrentBalance)
	assert.Equal(t, int64(40), sum.TotalEarned)

	_, err = svc.Balance(ctx, "other-household", "kid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionsPaging(t *testing.T) {
	svc, _, hid := newService(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.Bonus(ctx, "admin", hid, "kid", int64(i), "")
		require.NoError(t, err)
	}

	txs, err := svc.Transactions(ctx, hid, "kid", 2, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(5), txs[0].Points, "newest first")
	assert.Equal(t, int64(4), txs[1].Points)

	txs, err = svc.Transactions(ctx, hid, "kid", 2, 4)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(1), txs[0].Points)

	txs, err = svc.Transactions(ctx, hid, "admin", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}
