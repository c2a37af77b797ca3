package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodStart(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Wednesday 2026-03-04 10:00 UTC is 11:00 in Berlin.
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	week, err := PeriodStart(PeriodThisWeek, now, berlin)
	require.NoError(t, err)
	assert.True(t, week.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, berlin)), "got %s", week)
	assert.Equal(t, time.Monday, week.Weekday())

	month, err := PeriodStart(PeriodThisMonth, now, berlin)
	require.NoError(t, err)
	assert.True(t, month.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, berlin)))

	all, err := PeriodStart(PeriodAllTime, now, berlin)
	require.NoError(t, err)
	assert.True(t, all.IsZero())

	_, err = PeriodStart("yesterday", now, berlin)
	assert.Error(t, err)
}

func TestPeriodStartOnSunday(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 22, 0, 0, 0, time.UTC)
	week, err := PeriodStart(PeriodThisWeek, sunday, time.UTC)
	require.NoError(t, err)
	assert.True(t, week.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))

	// Late Sunday UTC is already Monday in Berlin.
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	week, err = PeriodStart(PeriodThisWeek, time.Date(2026, 3, 8, 23, 30, 0, 0, time.UTC), berlin)
	require.NoError(t, err)
	assert.True(t, week.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, berlin)))
}

func TestRank(t *testing.T) {
	in := []Standing{
		{UserID: "carol", TotalPoints: 30},
		{UserID: "bob", TotalPoints: 50},
		{UserID: "alice", TotalPoints: 30},
		{UserID: "dave", TotalPoints: 0},
	}
	got := Rank(in)

	require.Len(t, got, 4)
	assert.Equal(t, []string{"bob", "alice", "carol", "dave"}, []string{got[0].UserID, got[1].UserID, got[2].UserID, got[3].UserID})
	assert.Equal(t, []int{1, 2, 3, 4}, []int{got[0].Rank, got[1].Rank, got[2].Rank, got[3].Rank})
	assert.Equal(t, "carol", in[0].UserID, "input is not reordered")
}
