package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Susa-Sek/chorechamp-sub001/internal/auth"
	"github.com/Susa-Sek/chorechamp-sub001/internal/progression"
)

type ProgressionHandler struct {
	evaluator *progression.Evaluator
	logger    *slog.Logger
}

func NewProgressionHandler(e *progression.Evaluator, logger *slog.Logger) *ProgressionHandler {
	return &ProgressionHandler{evaluator: e, logger: logger.With("component", "progression_handler")}
}

func (h *ProgressionHandler) Level(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	lp, err := h.evaluator.Level(r.Context(), ac.HouseholdID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "get level", err)
		return
	}
	writeJSON(w, http.StatusOK, lp)
}

func (h *ProgressionHandler) Badges(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	list, err := h.evaluator.Badges(r.Context(), ac.HouseholdID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "evaluate badges", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ProgressionHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	householdID := chi.URLParam(r, "id")

	if householdID != ac.HouseholdID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = progression.PeriodAllTime
	}

	standings, err := h.evaluator.Leaderboard(r.Context(), householdID, period)
	if err != nil {
		writeError(w, h.logger, "get leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}
