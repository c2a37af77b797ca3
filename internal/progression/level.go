package progression

import (
	"github.com/shopspring/decimal"
)

// Tier is one step of the level table.
type Tier struct {
	Level          int    `json:"level"`
	PointsRequired int64  `json:"points_required"`
	Title          string `json:"title"`
}

// Tiers is the static level table in ascending order.
var Tiers = []Tier{
	{1, 0, "Anfänger"},
	{2, 100, "Helfer"},
	{3, 300, "Fleißig"},
	{4, 600, "Tüchtig"},
	{5, 1000, "Profi"},
	{6, 1500, "Experte"},
	{7, 2500, "Meister"},
	{8, 4000, "Großmeister"},
	{9, 6500, "Legende"},
	{10, 10000, "Haushaltsheld"},
}

// LevelFromPoints returns the highest tier whose threshold is at most
// totalEarned.
func LevelFromPoints(totalEarned int64) Tier {
	cur := Tiers[0]
	for _, t := range Tiers {
		if t.PointsRequired > totalEarned {
			break
		}
		cur = t
	}
	return cur
}

// LevelProgress describes a user's position within the level table.
type LevelProgress struct {
	CurrentLevel       int             `json:"current_level"`
	Title              string          `json:"title"`
	TotalPoints        int64           `json:"total_points"`
	ProgressPercentage decimal.Decimal `json:"progress_percentage"`
	PointsToNextLevel  int64           `json:"points_to_next_level"`
	NextLevel          *Tier           `json:"next_level,omitempty"`
	MaxLevel           bool            `json:"max_level"`
}

// ProgressToNextLevel returns the percentage of the way from the current
// tier to the next, clamped to [0, 100] and rounded to two places. At the
// top tier it reports 100 and MaxLevel.
func ProgressToNextLevel(totalEarned int64) LevelProgress {
	cur := LevelFromPoints(totalEarned)
	p := LevelProgress{
		CurrentLevel: cur.Level,
		Title:        cur.Title,
		TotalPoints:  totalEarned,
	}

	if cur.Level == len(Tiers) {
		p.MaxLevel = true
		p.ProgressPercentage = decimal.NewFromInt(100)
		return p
	}

	next := Tiers[cur.Level]
	p.NextLevel = &next
	p.PointsToNextLevel = next.PointsRequired - totalEarned

	hundred := decimal.NewFromInt(100)
	pct := decimal.NewFromInt(totalEarned - cur.PointsRequired).
		Div(decimal.NewFromInt(next.PointsRequired - cur.PointsRequired)).
		Mul(hundred)
	switch {
	case pct.LessThan(decimal.Zero):
		pct = decimal.Zero
	case pct.GreaterThan(hundred):
		pct = hundred
	}
	p.ProgressPercentage = pct.Round(2)
	return p
}

func init() {
	// Percentages are numbers on the wire, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}
