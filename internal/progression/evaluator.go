package progression

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Susa-Sek/chorechamp-sub001/internal/metrics"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/points"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
	"github.com/Susa-Sek/chorechamp-sub001/internal/websocket"
)

// Evaluator derives levels, badges and leaderboards from persisted state.
// Its only writes are the level cache, badge progress rows and idempotent
// badge awards.
type Evaluator struct {
	badges     *store.BadgeStore
	balances   *store.PointStore
	chores     *store.ChoreStore
	households *store.HouseholdStore
	notifier   points.Notifier
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

func NewEvaluator(db store.DBTX, notifier points.Notifier, location *time.Location, logger *slog.Logger, now func() time.Time) *Evaluator {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		badges:     store.NewBadgeStore(db),
		balances:   store.NewPointStore(db),
		chores:     store.NewChoreStore(db),
		households: store.NewHouseholdStore(db),
		notifier:   notifier,
		location:   location,
		logger:     logger.With("component", "progression"),
		now:        now,
	}
}

// SeedCatalog writes the built-in badge catalog.
func (e *Evaluator) SeedCatalog(ctx context.Context) error {
	catalog, err := Catalog()
	if err != nil {
		return err
	}
	return e.badges.Seed(ctx, catalog)
}

// Level returns the level of a member of householdID from total earned
// points and refreshes the level cache.
func (e *Evaluator) Level(ctx context.Context, householdID, userID string) (*LevelProgress, error) {
	if _, err := points.MemberOf(ctx, e.households, userID, householdID); err != nil {
		return nil, err
	}
	b, err := e.balances.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	var earned int64
	if b != nil {
		earned = b.TotalEarned
	}

	p := ProgressToNextLevel(earned)
	if err := e.badges.UpsertLevel(ctx, userID, p.CurrentLevel, p.Title, e.now().UTC()); err != nil {
		e.logger.Warn("level cache not updated", "user_id", userID, "error", err)
	}
	return &p, nil
}

// Badges evaluates every badge for a member of householdID. Badges whose
// threshold is crossed are awarded; awarding is idempotent.
func (e *Evaluator) Badges(ctx context.Context, householdID, userID string) ([]BadgeStatus, error) {
	if _, err := points.MemberOf(ctx, e.households, userID, householdID); err != nil {
		return nil, err
	}

	c, err := e.counters(ctx, userID)
	if err != nil {
		return nil, err
	}
	defs, err := e.badges.List(ctx)
	if err != nil {
		return nil, err
	}
	earned, err := e.badges.EarnedBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	out := make([]BadgeStatus, 0, len(defs))
	for _, def := range defs {
		var prior *model.UserBadge
		if ub, ok := earned[def.ID]; ok {
			prior = &ub
		}

		st, award := EvaluateBadge(def, c, prior)
		if award {
			inserted, err := e.badges.AwardBadge(ctx, userID, def.ID, now)
			if err != nil {
				return nil, err
			}
			at := now
			st.EarnedAt = &at
			if inserted {
				metrics.BadgesAwarded.Inc()
				e.logger.Info("badge awarded", "user_id", userID, "badge_id", def.ID)
				if e.notifier != nil {
					e.notifier.Broadcast(websocket.NewMessage(householdID, "badge", "earned", def.ID, map[string]any{"user_id": userID}))
				}
			}
		}
		if err := e.badges.UpsertProgress(ctx, userID, def.ID, st.CurrentValue, now); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (e *Evaluator) counters(ctx context.Context, userID string) (Counters, error) {
	var c Counters

	n, err := e.chores.CountCompletions(ctx, userID)
	if err != nil {
		return c, err
	}
	c.ChoresCompleted = n

	st, err := e.chores.GetStreak(ctx, userID)
	if err != nil {
		return c, err
	}
	if st != nil {
		c.StreakDays = int64(st.LongestStreak)
	}

	b, err := e.balances.GetBalance(ctx, userID)
	if err != nil {
		return c, err
	}
	if b != nil {
		c.TotalPoints = b.TotalEarned
	}
	return c, nil
}

// Leaderboard ranks the household's members by points summed over period.
func (e *Evaluator) Leaderboard(ctx context.Context, householdID, period string) ([]Standing, error) {
	since, err := PeriodStart(period, e.now(), e.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", points.ErrInvalidInput, err)
	}

	rows, err := e.balances.LeaderboardTotals(ctx, householdID, since)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("household %s: %w", householdID, points.ErrNotFound)
	}

	standings := make([]Standing, len(rows))
	for i, r := range rows {
		standings[i] = Standing{UserID: r.UserID, DisplayName: r.DisplayName, TotalPoints: r.Points}
	}
	return Rank(standings), nil
}
