package progression

import (
	"fmt"
	"sort"
	"time"
)

// Leaderboard periods.
const (
	PeriodThisWeek  = "this_week"
	PeriodThisMonth = "this_month"
	PeriodAllTime   = "all_time"
)

// PeriodStart returns the first instant of period containing now, in loc.
// Weeks start on Monday. all_time returns the zero time.
func PeriodStart(period string, now time.Time, loc *time.Location) (time.Time, error) {
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch period {
	case PeriodThisWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset), nil
	case PeriodThisMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc), nil
	case PeriodAllTime, "":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

// Standing is one leaderboard row.
type Standing struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	TotalPoints int64  `json:"total_points"`
	Rank        int    `json:"rank"`
}

// Rank orders standings by points descending, then user id ascending, and
// numbers them by position.
func Rank(rows []Standing) []Standing {
	out := make([]Standing, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
