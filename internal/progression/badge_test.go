package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

func TestCatalog(t *testing.T) {
	badges, err := Catalog()
	require.NoError(t, err)
	require.Len(t, badges, 10)

	byID := make(map[string]model.Badge)
	for _, b := range badges {
		byID[b.ID] = b
	}
	assert.Equal(t, model.CriteriaChoresCompleted, byID["first-chore"].CriteriaType)
	assert.Equal(t, int64(1), byID["first-chore"].CriteriaValue)
	assert.Equal(t, model.CriteriaStreakDays, byID["streak-7"].CriteriaType)
	assert.Equal(t, int64(10000), byID["points-10000"].CriteriaValue)
}

func TestParseCatalogRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad yaml", "badges: [", "decode badge catalog"},
		{"missing id", "badges:\n  - name: x\n    criteria_type: total_points\n    criteria_value: 1\n", "missing id"},
		{"duplicate", "badges:\n  - id: a\n    criteria_type: total_points\n    criteria_value: 1\n  - id: a\n    criteria_type: total_points\n    criteria_value: 2\n", "duplicate id"},
		{"unknown criteria", "badges:\n  - id: a\n    criteria_type: karma\n    criteria_value: 1\n", "unknown criteria type"},
		{"zero threshold", "badges:\n  - id: a\n    criteria_type: streak_days\n    criteria_value: 0\n", "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestEvaluateBadge(t *testing.T) {
	badge := model.Badge{ID: "ten-chores", CriteriaType: model.CriteriaChoresCompleted, CriteriaValue: 10}
	earnedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		counters  Counters
		earned    *model.UserBadge
		want      string
		wantAward bool
	}{
		{"locked", Counters{}, nil, StatusLocked, false},
		{"in progress", Counters{ChoresCompleted: 4}, nil, StatusInProgress, false},
		{"threshold crossed", Counters{ChoresCompleted: 10}, nil, StatusEarned, true},
		{"already earned", Counters{ChoresCompleted: 12}, &model.UserBadge{BadgeID: "ten-chores", EarnedAt: earnedAt}, StatusEarned, false},
		{"earned stays after undo", Counters{ChoresCompleted: 3}, &model.UserBadge{BadgeID: "ten-chores", EarnedAt: earnedAt}, StatusEarned, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, award := EvaluateBadge(badge, tt.counters, tt.earned)
			assert.Equal(t, tt.want, st.Status)
			assert.Equal(t, tt.wantAward, award)
			assert.Equal(t, tt.counters.ChoresCompleted, st.CurrentValue)
			if tt.earned != nil {
				require.NotNil(t, st.EarnedAt)
				assert.Equal(t, earnedAt, *st.EarnedAt)
			}
		})
	}
}
