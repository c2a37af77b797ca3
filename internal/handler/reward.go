package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Susa-Sek/chorechamp-sub001/internal/auth"
	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/reward"
)

type RewardHandler struct {
	rewards *reward.Service
	logger  *slog.Logger
}

func NewRewardHandler(rewards *reward.Service, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rewards, logger: logger.With("component", "reward_handler")}
}

type rewardRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	PointCost   int64              `json:"point_cost"`
	Quantity    *int64             `json:"quantity_available"`
	Status      model.RewardStatus `json:"status"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	reward, err := h.rewards.Create(r.Context(), ac.HouseholdID, req.Title, req.Description, req.PointCost, req.Quantity, req.Status)
	if err != nil {
		writeError(w, h.logger, "create reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

type statusRequest struct {
	Status model.RewardStatus `json:"status"`
}

func (h *RewardHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	reward, err := h.rewards.SetStatus(r.Context(), ac.HouseholdID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.logger, "set reward status", err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	res, err := h.rewards.Redeem(r.Context(), ac.HouseholdID, chi.URLParam(r, "id"), ac.UserID)
	if err != nil {
		writeError(w, h.logger, "redeem reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type fulfillRequest struct {
	Notes string `json:"notes"`
}

func (h *RewardHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req fulfillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	err := h.rewards.Fulfill(r.Context(), ac.HouseholdID, chi.URLParam(r, "id"), ac.UserID, strings.TrimSpace(req.Notes))
	if err != nil {
		writeError(w, h.logger, "fulfill redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *RewardHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	res, err := h.rewards.Cancel(r.Context(), ac.HouseholdID, chi.URLParam(r, "id"), ac.UserID, auth.IsAdmin(r.Context()))
	if err != nil {
		writeError(w, h.logger, "cancel redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RewardHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	status := model.RedemptionStatus(r.URL.Query().Get("status"))

	list, err := h.rewards.ListRedemptions(r.Context(), ac.HouseholdID, status)
	if err != nil {
		writeError(w, h.logger, "list redemptions", err)
		return
	}
	if list == nil {
		list = []model.RedemptionView{}
	}
	writeJSON(w, http.StatusOK, list)
}
