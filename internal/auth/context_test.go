package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:      "u1",
		HouseholdID: "h1",
		Role:        "admin",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got.UserID)
	}
	if got.HouseholdID != "h1" {
		t.Errorf("HouseholdID = %q, want h1", got.HouseholdID)
	}
	if got.Role != "admin" {
		t.Errorf("Role = %q, want %q", got.Role, "admin")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAccessorsMissing(t *testing.T) {
	ctx := context.Background()
	if HouseholdID(ctx) != "" {
		t.Errorf("HouseholdID = %q, want empty", HouseholdID(ctx))
	}
	if UserID(ctx) != "" {
		t.Errorf("UserID = %q, want empty", UserID(ctx))
	}
	if IsAdmin(ctx) {
		t.Error("expected IsAdmin false without context")
	}
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"member", false},
		{"", false},
	}
	for _, tt := range tests {
		ctx := WithAuth(context.Background(), AuthContext{Role: tt.role})
		if got := IsAdmin(ctx); got != tt.want {
			t.Errorf("IsAdmin(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}
