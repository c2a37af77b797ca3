package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Susa-Sek/chorechamp-sub001/internal/database"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHouseholdCreate(t *testing.T) {
	hs := NewHouseholdStore(setupTestDB(t))

	h, err := hs.Create(context.Background(), "Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.Name != "Test Household" {
		t.Errorf("name = %q, want %q", h.Name, "Test Household")
	}
	if h.ID == "" {
		t.Error("expected an ID")
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs := NewHouseholdStore(setupTestDB(t))

	h, err := hs.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Errorf("expected nil, got %+v", h)
	}
}

func TestHouseholdMembers(t *testing.T) {
	hs := NewHouseholdStore(setupTestDB(t))
	ctx := context.Background()

	h, err := hs.Create(ctx, "Home")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if _, err := hs.AddMember(ctx, h.ID, "u1", "Anna", model.RoleAdmin); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if _, err := hs.AddMember(ctx, h.ID, "u2", "Ben", model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}

	m, err := hs.GetMember(ctx, "u1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.HouseholdID != h.ID || m.Role != model.RoleAdmin || m.DisplayName != "Anna" {
		t.Errorf("member = %+v", m)
	}

	members, err := hs.ListMembers(ctx, h.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}

	missing, err := hs.GetMember(ctx, "nobody")
	if err != nil {
		t.Fatalf("get missing member: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil member, got %+v", missing)
	}
}

func TestHouseholdMemberBelongsToOneHousehold(t *testing.T) {
	hs := NewHouseholdStore(setupTestDB(t))
	ctx := context.Background()

	a, _ := hs.Create(ctx, "A")
	b, _ := hs.Create(ctx, "B")
	if _, err := hs.AddMember(ctx, a.ID, "u1", "Anna", model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := hs.AddMember(ctx, b.ID, "u1", "Anna", model.RoleMember); err == nil {
		t.Error("expected error adding a user to a second household")
	}
}

func TestHouseholdRejectsUnknownRole(t *testing.T) {
	hs := NewHouseholdStore(setupTestDB(t))
	ctx := context.Background()

	h, _ := hs.Create(ctx, "Home")
	if _, err := hs.AddMember(ctx, h.ID, "u1", "Anna", model.Role("owner")); err == nil {
		t.Error("expected error for unknown role")
	}
}
