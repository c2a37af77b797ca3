package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Susa-Sek/chorechamp-sub001/internal/auth"
	"github.com/Susa-Sek/chorechamp-sub001/internal/points"
)

type PointsHandler struct {
	points *points.Service
	logger *slog.Logger
}

func NewPointsHandler(svc *points.Service, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{points: svc, logger: logger.With("component", "points_handler")}
}

type bonusRequest struct {
	Points int64  `json:"points"`
	Reason string `json:"reason"`
}

func (h *PointsHandler) Bonus(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req bonusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	res, err := h.points.Bonus(r.Context(), ac.UserID, ac.HouseholdID, chi.URLParam(r, "id"), req.Points, req.Reason)
	if err != nil {
		writeError(w, h.logger, "grant bonus", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_balance":    res.NewBalance(),
		"transaction_id": res.Transaction.ID,
	})
}

func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	sum, err := h.points.Balance(r.Context(), ac.HouseholdID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Transactions lists a ledger page. Members see their own ledger; admins
// see any member's.
func (h *PointsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	userID := chi.URLParam(r, "id")

	if userID != ac.UserID && !auth.IsAdmin(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
		return
	}

	txs, err := h.points.Transactions(r.Context(), ac.HouseholdID, userID, limit, offset)
	if err != nil {
		writeError(w, h.logger, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
