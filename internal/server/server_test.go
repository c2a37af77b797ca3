package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Susa-Sek/chorechamp-sub001/internal/config"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/testutil"
)

type fixture struct {
	handler     http.Handler
	householdID string
	choreID     string
	rewardID    string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	clock := testutil.NewClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))

	hid := testutil.Household(t, db, map[string]model.Role{
		"alice": model.RoleAdmin,
		"bob":   model.RoleMember,
	})

	cfg := config.Default()
	cfg.Streak.Timezone = "UTC"
	srv, err := New(context.Background(), db, cfg, testutil.Logger(), clock.Now)
	require.NoError(t, err)

	return &fixture{
		handler:     srv.Router(),
		householdID: hid,
		choreID:     testutil.Chore(t, db, hid, 10),
		rewardID:    testutil.Reward(t, db, hid, 30, nil),
	}
}

func (f *fixture) do(t *testing.T, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	f := setup(t)

	rec, body := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentityRequired(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodGet, "/api/users/bob/balance", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/users/bob/balance", "mallory", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCompleteUndoFlow(t *testing.T) {
	f := setup(t)

	rec, body := f.do(t, http.MethodPost, "/api/chores/"+f.choreID+"/complete", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 10, body["points_earned"])
	assert.EqualValues(t, 1, body["new_streak"])
	assert.EqualValues(t, 10, body["new_balance"])

	rec, _ = f.do(t, http.MethodPost, "/api/chores/"+f.choreID+"/complete", "bob", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/users/bob/balance", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, body["current_balance"])
	assert.EqualValues(t, 10, body["total_earned"])

	rec, body = f.do(t, http.MethodPost, "/api/chores/"+f.choreID+"/undo", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 10, body["points_deducted"])

	rec, body = f.do(t, http.MethodGet, "/api/users/bob/balance", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["current_balance"])
}

func TestUnknownChore(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodPost, "/api/chores/does-not-exist/complete", "bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBonusRequiresAdmin(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodPost, "/api/users/bob/bonus", "bob", `{"points": 50}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/users/bob/bonus", "alice", `{"points": 50, "reason": "helped out"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 50, body["new_balance"])

	rec, _ = f.do(t, http.MethodPost, "/api/users/bob/bonus", "alice", `{"points": -5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedeemAndFulfill(t *testing.T) {
	f := setup(t)

	rec, body := f.do(t, http.MethodPost, "/api/rewards/"+f.rewardID+"/redeem", "bob", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "no points yet")
	assert.EqualValues(t, 0, body["available"])
	assert.EqualValues(t, 30, body["requested"])

	rec, _ = f.do(t, http.MethodPost, "/api/users/bob/bonus", "alice", `{"points": 40}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/api/rewards/"+f.rewardID+"/redeem", "bob", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 30, body["points_spent"])
	assert.EqualValues(t, 10, body["new_balance"])
	redemptionID, _ := body["redemption_id"].(string)
	require.NotEmpty(t, redemptionID)

	rec, _ = f.do(t, http.MethodPost, "/api/redemptions/"+redemptionID+"/fulfill", "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/redemptions/"+redemptionID+"/fulfill", "alice", `{"notes": "enjoy"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = f.do(t, http.MethodPost, "/api/redemptions/"+redemptionID+"/cancel", "alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "fulfilled redemptions cannot be cancelled")

	rec, _ = f.do(t, http.MethodGet, "/api/redemptions?status=fulfilled", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, redemptionID, list[0]["id"])
}

func TestAdminManagesCatalog(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodPost, "/api/chores", "bob", `{"title": "Vacuum", "points": 15}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/chores", "alice", `{"title": "Vacuum", "points": 15}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	choreID, _ := body["id"].(string)
	require.NotEmpty(t, choreID)

	rec, body = f.do(t, http.MethodPost, "/api/chores/"+choreID+"/complete", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 15, body["points_earned"])

	rec, _ = f.do(t, http.MethodPost, "/api/chores", "alice", `{"title": "", "points": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/rewards", "bob", `{"title": "Sticker", "point_cost": 5}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/api/rewards", "alice", `{"title": "Sticker", "point_cost": 5, "quantity_available": 1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "draft", body["status"])
	rewardID, _ := body["id"].(string)
	require.NotEmpty(t, rewardID)

	rec, _ = f.do(t, http.MethodPost, "/api/rewards/"+rewardID+"/redeem", "bob", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "draft rewards are not available")

	rec, _ = f.do(t, http.MethodPost, "/api/rewards/"+rewardID+"/status", "bob", `{"status": "published"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/api/rewards/"+rewardID+"/status", "alice", `{"status": "published"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "published", body["status"])

	rec, _ = f.do(t, http.MethodPost, "/api/rewards/"+rewardID+"/redeem", "bob", "")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = f.do(t, http.MethodPost, "/api/rewards/"+rewardID+"/status", "alice", `{"status": "gone"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLevelAndLeaderboard(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodPost, "/api/users/bob/bonus", "alice", `{"points": 105}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/api/users/bob/level", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["current_level"])
	assert.Equal(t, "Helfer", body["title"])
	assert.EqualValues(t, 2.5, body["progress_percentage"])
	assert.EqualValues(t, 195, body["points_to_next_level"])

	rec, _ = f.do(t, http.MethodGet, "/api/households/"+f.householdID+"/leaderboard?period=this_week", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var standings []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &standings))
	require.Len(t, standings, 2)
	assert.Equal(t, "bob", standings[0]["user_id"])
	assert.EqualValues(t, 1, standings[0]["rank"])
	assert.Equal(t, "alice", standings[1]["user_id"])
	assert.EqualValues(t, 0, standings[1]["total_points"])

	rec, _ = f.do(t, http.MethodGet, "/api/households/"+f.householdID+"/leaderboard?period=forever", "bob", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/households/other/leaderboard", "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransactionsVisibility(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodPost, "/api/chores/"+f.choreID+"/complete", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/users/bob/transactions", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.EqualValues(t, 10, txs[0]["points"])

	rec, _ = f.do(t, http.MethodGet, "/api/users/alice/transactions", "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/users/bob/transactions?limit=abc", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadgesAfterCompletion(t *testing.T) {
	f := setup(t)

	rec, _ := f.do(t, http.MethodPost, "/api/chores/"+f.choreID+"/complete", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/users/bob/badges", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var badges []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &badges))

	status := map[string]any{}
	for _, b := range badges {
		status[b["id"].(string)] = b["status"]
	}
	assert.Equal(t, "earned", status["first-chore"])
	assert.Equal(t, "in_progress", status["ten-chores"])
}
