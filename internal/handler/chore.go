package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Susa-Sek/chorechamp-sub001/internal/auth"
	"github.com/Susa-Sek/chorechamp-sub001/internal/chore"
	"github.com/Susa-Sek/chorechamp-sub001/internal/progression"
)

type ChoreHandler struct {
	chores   *chore.Service
	progress *progression.Evaluator
	logger   *slog.Logger
}

// NewChoreHandler creates the completion handler. progress may be nil, in
// which case badges are only evaluated when read.
func NewChoreHandler(chores *chore.Service, progress *progression.Evaluator, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: chores, progress: progress, logger: logger.With("component", "chore_handler")}
}

type choreRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int64  `json:"points"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	c, err := h.chores.Create(r.Context(), ac.HouseholdID, req.Title, req.Description, req.Points)
	if err != nil {
		writeError(w, h.logger, "create chore", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	res, err := h.chores.Complete(r.Context(), ac.HouseholdID, id, ac.UserID)
	if err != nil {
		writeError(w, h.logger, "complete chore", err)
		return
	}

	if h.progress != nil {
		if _, err := h.progress.Badges(r.Context(), ac.HouseholdID, ac.UserID); err != nil {
			h.logger.Warn("badge evaluation failed", "user_id", ac.UserID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *ChoreHandler) Undo(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	res, err := h.chores.Undo(r.Context(), ac.HouseholdID, id, ac.UserID)
	if err != nil {
		writeError(w, h.logger, "undo chore", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
