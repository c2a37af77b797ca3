package store

import (
	"context"
	"testing"
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

func setupRewardTest(t *testing.T) (*RewardStore, string) {
	t.Helper()
	db := setupTestDB(t)
	h, err := NewHouseholdStore(db).Create(context.Background(), "Home")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewRewardStore(db), h.ID
}

func TestRewardStockLimited(t *testing.T) {
	rs, hid := setupRewardTest(t)
	ctx := context.Background()

	two := int64(2)
	r, err := rs.Create(ctx, hid, "Movie night", "", 50, &two, model.RewardPublished)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if !r.InStock() {
		t.Fatal("new reward should be in stock")
	}

	for i := range 2 {
		ok, err := rs.ClaimStock(ctx, r.ID)
		if err != nil || !ok {
			t.Fatalf("claim %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := rs.ClaimStock(ctx, r.ID)
	if err != nil {
		t.Fatalf("claim past stock: %v", err)
	}
	if ok {
		t.Error("claimed more units than available")
	}

	if err := rs.ReleaseStock(ctx, r.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := rs.GetByID(ctx, r.ID)
	if got.QuantityClaimed != 1 || !got.InStock() {
		t.Errorf("after release: claimed=%d in_stock=%v", got.QuantityClaimed, got.InStock())
	}
}

func TestRewardStockUnlimited(t *testing.T) {
	rs, hid := setupRewardTest(t)
	ctx := context.Background()

	r, _ := rs.Create(ctx, hid, "Extra story", "", 5, nil, model.RewardPublished)
	for range 5 {
		if ok, err := rs.ClaimStock(ctx, r.ID); err != nil || !ok {
			t.Fatalf("claim: ok=%v err=%v", ok, err)
		}
	}
	got, _ := rs.GetByID(ctx, r.ID)
	if got.QuantityAvailable != nil || !got.InStock() {
		t.Errorf("unlimited reward = %+v", got)
	}
}

func TestRedemptionTransitions(t *testing.T) {
	rs, hid := setupRewardTest(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	r, _ := rs.Create(ctx, hid, "Ice cream", "", 30, nil, model.RewardPublished)
	tx := "tx-1"
	red := &model.RewardRedemption{
		ID: "red-1", RewardID: r.ID, UserID: "u1", HouseholdID: hid, PointsSpent: 30,
		TransactionID: &tx, Status: model.RedemptionPending, CreatedAt: at, UpdatedAt: at,
	}
	if err := rs.CreateRedemption(ctx, red); err != nil {
		t.Fatalf("create redemption: %v", err)
	}

	if ok, _ := rs.FulfillRedemption(ctx, red.ID, "other", "admin", "", at); ok {
		t.Error("fulfilled a redemption of another household")
	}
	if ok, err := rs.FulfillRedemption(ctx, red.ID, hid, "admin", "Friday", at); err != nil || !ok {
		t.Fatalf("fulfill: ok=%v err=%v", ok, err)
	}
	if ok, _ := rs.SetRedemptionStatus(ctx, red.ID, model.RedemptionPending, model.RedemptionCancelled, at); ok {
		t.Error("cancelled a fulfilled redemption")
	}

	got, err := rs.GetRedemption(ctx, red.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if got.Status != model.RedemptionFulfilled || got.FulfilledBy == nil || *got.FulfilledBy != "admin" {
		t.Errorf("redemption = %+v", got)
	}
}
