package store

import (
	"context"
	"testing"
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

func setupChoreTest(t *testing.T) (*ChoreStore, string) {
	t.Helper()
	db := setupTestDB(t)
	h, err := NewHouseholdStore(db).Create(context.Background(), "Home")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewChoreStore(db), h.ID
}

func TestChoreClaimIsConditional(t *testing.T) {
	cs, hid := setupChoreTest(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c, err := cs.Create(ctx, hid, "Dishes", "", 10)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if c.Status != model.ChorePending {
		t.Errorf("status = %q, want pending", c.Status)
	}

	ok, err := cs.MarkCompleted(ctx, c.ID, "u1", at)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = cs.MarkCompleted(ctx, c.ID, "u2", at)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Error("second claim succeeded on a completed chore")
	}

	got, err := cs.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got.CompletedBy == nil || *got.CompletedBy != "u1" {
		t.Errorf("completed_by = %v, want u1", got.CompletedBy)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, at)
	}

	ok, err = cs.ResetPending(ctx, c.ID, at)
	if err != nil || !ok {
		t.Fatalf("reset: ok=%v err=%v", ok, err)
	}
	got, _ = cs.GetByID(ctx, c.ID)
	if got.Status != model.ChorePending || got.CompletedBy != nil {
		t.Errorf("after reset: %+v", got)
	}
}

func TestChoreCompletionLifecycle(t *testing.T) {
	cs, hid := setupChoreTest(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c, _ := cs.Create(ctx, hid, "Laundry", "", 15)
	tx := "tx-1"
	cc := &model.ChoreCompletion{ID: "cc-1", ChoreID: c.ID, CompletedBy: "u1", PointsEarned: 15, TransactionID: &tx, CompletedAt: at}
	if err := cs.InsertCompletion(ctx, cc); err != nil {
		t.Fatalf("insert completion: %v", err)
	}

	n, err := cs.CountCompletions(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}

	if ok, _ := cs.SetReversal(ctx, cc.ID, "tx-2"); ok {
		t.Error("reversal recorded before the completion was undone")
	}
	if ok, err := cs.MarkUndone(ctx, cc.ID, "u2", at.Add(time.Hour)); err != nil || !ok {
		t.Fatalf("mark undone: ok=%v err=%v", ok, err)
	}
	if ok, _ := cs.MarkUndone(ctx, cc.ID, "u2", at.Add(time.Hour)); ok {
		t.Error("completion marked undone twice")
	}

	latest, err := cs.LatestCompletion(ctx, c.ID)
	if err != nil {
		t.Fatalf("latest completion: %v", err)
	}
	if latest == nil || latest.UndoneAt == nil || latest.UndoneBy == nil || *latest.UndoneBy != "u2" {
		t.Fatalf("undone completion not returned: %+v", latest)
	}

	if ok, err := cs.SetReversal(ctx, cc.ID, "tx-2"); err != nil || !ok {
		t.Fatalf("set reversal: ok=%v err=%v", ok, err)
	}
	latest, _ = cs.LatestCompletion(ctx, c.ID)
	if latest != nil {
		t.Errorf("reversed completion still open: %+v", latest)
	}

	n, _ = cs.CountCompletions(ctx, "u1")
	if n != 0 {
		t.Errorf("count after undo = %d, want 0", n)
	}
}

func TestStreakUpsert(t *testing.T) {
	cs, _ := setupChoreTest(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	st, err := cs.GetStreak(ctx, "u1")
	if err != nil || st != nil {
		t.Fatalf("expected no streak, got %+v err=%v", st, err)
	}

	for _, cur := range []int{1, 2} {
		if err := cs.PutStreak(ctx, &model.UserStreak{UserID: "u1", CurrentStreak: cur, LongestStreak: 2, LastCompletionDate: "2026-01-02", UpdatedAt: at}); err != nil {
			t.Fatalf("put streak: %v", err)
		}
	}
	st, _ = cs.GetStreak(ctx, "u1")
	if st.CurrentStreak != 2 || st.LongestStreak != 2 || st.LastCompletionDate != "2026-01-02" {
		t.Errorf("streak = %+v", st)
	}

	if err := cs.DeleteStreak(ctx, "u1"); err != nil {
		t.Fatalf("delete streak: %v", err)
	}
	st, _ = cs.GetStreak(ctx, "u1")
	if st != nil {
		t.Errorf("streak survived delete: %+v", st)
	}
}
