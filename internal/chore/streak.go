package chore

import (
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

// DateLayout is the layout of a streak's last completion date.
const DateLayout = "2006-01-02"

// CompletionDate returns the calendar date of t in loc.
func CompletionDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// NextStreak applies a completion on day to prev. A completion the day
// after the last one extends the streak, one on the same day leaves it
// unchanged and any other day starts over at 1.
func NextStreak(prev model.UserStreak, day string) model.UserStreak {
	next := prev
	next.LastCompletionDate = day

	switch daysBetween(prev.LastCompletionDate, day) {
	case 0:
		if next.CurrentStreak == 0 {
			next.CurrentStreak = 1
		}
	case 1:
		next.CurrentStreak++
	default:
		next.CurrentStreak = 1
	}

	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return next
}

// daysBetween returns the number of calendar days from a to b, or -1 when
// a is empty or either date is malformed.
func daysBetween(a, b string) int {
	if a == "" {
		return -1
	}
	da, err := time.Parse(DateLayout, a)
	if err != nil {
		return -1
	}
	db, err := time.Parse(DateLayout, b)
	if err != nil {
		return -1
	}
	return int(db.Sub(da).Hours() / 24)
}
