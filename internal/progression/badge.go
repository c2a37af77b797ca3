package progression

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

//go:embed badges.yaml
var catalogYAML []byte

// Badge statuses.
const (
	StatusEarned     = "earned"
	StatusInProgress = "in_progress"
	StatusLocked     = "locked"
)

// Catalog returns the built-in badge definitions.
func Catalog() ([]model.Badge, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog decodes and validates a badge catalog document.
func ParseCatalog(data []byte) ([]model.Badge, error) {
	var doc struct {
		Badges []model.Badge `yaml:"badges"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode badge catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Badges))
	for _, b := range doc.Badges {
		if b.ID == "" {
			return nil, fmt.Errorf("badge %q: missing id", b.Name)
		}
		if seen[b.ID] {
			return nil, fmt.Errorf("badge %s: duplicate id", b.ID)
		}
		seen[b.ID] = true
		switch b.CriteriaType {
		case model.CriteriaChoresCompleted, model.CriteriaStreakDays, model.CriteriaTotalPoints:
		default:
			return nil, fmt.Errorf("badge %s: unknown criteria type %q", b.ID, b.CriteriaType)
		}
		if b.CriteriaValue <= 0 {
			return nil, fmt.Errorf("badge %s: criteria value must be positive", b.ID)
		}
	}
	return doc.Badges, nil
}

// Counters are the observable values badges are measured against.
type Counters struct {
	ChoresCompleted int64
	StreakDays      int64
	TotalPoints     int64
}

func (c Counters) Value(t model.CriteriaType) int64 {
	switch t {
	case model.CriteriaChoresCompleted:
		return c.ChoresCompleted
	case model.CriteriaStreakDays:
		return c.StreakDays
	case model.CriteriaTotalPoints:
		return c.TotalPoints
	}
	return 0
}

type BadgeStatus struct {
	model.Badge
	Status       string     `json:"status"`
	CurrentValue int64      `json:"current_value"`
	EarnedAt     *time.Time `json:"earned_at,omitempty"`
}

// EvaluateBadge derives a badge's status from the counters. earned is the
// existing award, if any. The returned bool reports whether the threshold
// is crossed but no award exists yet.
func EvaluateBadge(b model.Badge, c Counters, earned *model.UserBadge) (BadgeStatus, bool) {
	v := c.Value(b.CriteriaType)
	st := BadgeStatus{Badge: b, CurrentValue: v}

	switch {
	case earned != nil:
		st.Status = StatusEarned
		at := earned.EarnedAt
		st.EarnedAt = &at
		return st, false
	case v >= b.CriteriaValue:
		st.Status = StatusEarned
		return st, true
	case v > 0:
		st.Status = StatusInProgress
	default:
		st.Status = StatusLocked
	}
	return st, false
}
