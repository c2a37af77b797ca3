package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Susa-Sek/chorechamp-sub001/internal/chore"
	"github.com/Susa-Sek/chorechamp-sub001/internal/config"
	"github.com/Susa-Sek/chorechamp-sub001/internal/handler"
	"github.com/Susa-Sek/chorechamp-sub001/internal/middleware"
	"github.com/Susa-Sek/chorechamp-sub001/internal/points"
	"github.com/Susa-Sek/chorechamp-sub001/internal/progression"
	"github.com/Susa-Sek/chorechamp-sub001/internal/reward"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
	ws "github.com/Susa-Sek/chorechamp-sub001/internal/websocket"
)

type Server struct {
	cfg            config.Config
	hub            *ws.Hub
	mutator        *points.Mutator
	reconciler     *points.Reconciler
	choreH         *handler.ChoreHandler
	rewardH        *handler.RewardHandler
	pointsH        *handler.PointsHandler
	progressionH   *handler.ProgressionHandler
	householdStore *store.HouseholdStore
	rateLimiter    *middleware.RateLimiter
	logger         *slog.Logger
}

// New wires the engine onto db. now may be nil.
func New(ctx context.Context, db *sql.DB, cfg config.Config, logger *slog.Logger, now func() time.Time) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	writer, err := points.NewLedgerWriter(ctx, cfg.Ledger.Strategy, db, cfg.Ledger.CASRetries, logger)
	if err != nil {
		return nil, fmt.Errorf("ledger writer: %w", err)
	}

	pointStore := store.NewPointStore(db)
	householdStore := store.NewHouseholdStore(db)
	issues := store.NewReconciliationStore(db)

	mutator := points.NewMutator(writer, issues, hub, logger, now)
	pointsSvc := points.NewService(mutator, pointStore, householdStore, store.NewChoreStore(db))
	choreSvc := chore.NewService(db, mutator, hub, chore.Options{
		Location:    loc,
		BonusEvery:  cfg.Streak.BonusEvery,
		BonusPoints: cfg.Streak.BonusPoints,
	}, logger, now)
	rewardSvc := reward.NewService(db, mutator, hub, logger, now)

	evaluator := progression.NewEvaluator(db, hub, loc, logger, now)
	if err := evaluator.SeedCatalog(ctx); err != nil {
		return nil, fmt.Errorf("seed badges: %w", err)
	}

	logger.Info("ledger writer selected", "strategy", mutator.Strategy())

	return &Server{
		cfg:            cfg,
		hub:            hub,
		mutator:        mutator,
		reconciler:     points.NewReconciler(mutator, pointStore, issues, logger),
		choreH:         handler.NewChoreHandler(choreSvc, evaluator, logger),
		rewardH:        handler.NewRewardHandler(rewardSvc, logger),
		pointsH:        handler.NewPointsHandler(pointsSvc, logger),
		progressionH:   handler.NewProgressionHandler(evaluator, logger),
		householdStore: householdStore,
		rateLimiter:    middleware.NewRateLimiter(),
		logger:         logger,
	}, nil
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Reconciler() *points.Reconciler {
	return s.reconciler
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if len(s.cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", middleware.HeaderUserID, middleware.HeaderHouseholdID, middleware.HeaderUserRole},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	r.Get("/health", s.healthHandler)
	if s.cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(s.householdStore))

		r.Get("/ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

		r.Route("/api", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.mutationLimit)
				r.Post("/chores/{id}/complete", s.choreH.Complete)
				r.Post("/chores/{id}/undo", s.choreH.Undo)
				r.Post("/rewards/{id}/redeem", s.rewardH.Redeem)
				r.Post("/redemptions/{id}/cancel", s.rewardH.Cancel)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/redemptions/{id}/fulfill", s.rewardH.Fulfill)
					r.Post("/users/{id}/bonus", s.pointsH.Bonus)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/chores", s.choreH.Create)
				r.Post("/rewards", s.rewardH.Create)
				r.Post("/rewards/{id}/status", s.rewardH.SetStatus)
			})

			r.Get("/redemptions", s.rewardH.ListRedemptions)
			r.Get("/users/{id}/balance", s.pointsH.Balance)
			r.Get("/users/{id}/transactions", s.pointsH.Transactions)
			r.Get("/users/{id}/level", s.progressionH.Level)
			r.Get("/users/{id}/badges", s.progressionH.Badges)
			r.Get("/households/{id}/leaderboard", s.progressionH.Leaderboard)
		})
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// mutationLimit rate-limits point-changing requests per caller.
func (s *Server) mutationLimit(next http.Handler) http.Handler {
	if s.cfg.Server.RateLimit <= 0 {
		return next
	}
	return middleware.RateLimit(s.rateLimiter, middleware.ActorKey, s.cfg.Server.RateLimit, time.Minute)(next)
}
