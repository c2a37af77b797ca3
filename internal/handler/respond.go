package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Susa-Sek/chorechamp-sub001/internal/points"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, points.ErrPartialFailure):
		return http.StatusInternalServerError
	case errors.Is(err, points.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, points.ErrInvalidState),
		errors.Is(err, points.ErrWindowExpired),
		errors.Is(err, points.ErrInsufficientBalance),
		errors.Is(err, points.ErrOutOfStock),
		errors.Is(err, points.ErrNotAvailable),
		errors.Is(err, points.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, points.ErrInvalidAmount), errors.Is(err, points.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, points.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"error": ...}. Client errors carry their
// message; server errors are logged and replaced with a generic one, except
// partial failures which say that the operation needs reconciliation.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	body := map[string]string{"error": err.Error()}

	var pf *points.PartialFailureError
	switch {
	case errors.As(err, &pf):
		body = map[string]string{
			"error": "operation partially applied and flagged for reconciliation",
			"code":  "partial_failure",
		}
	case status == http.StatusInternalServerError:
		logger.Error(op+" failed", "error", err)
		body = map[string]string{"error": op + " failed"}
	}

	var ib *points.InsufficientBalanceError
	if errors.As(err, &ib) {
		writeJSON(w, status, map[string]any{
			"error":     err.Error(),
			"available": ib.Available,
			"requested": ib.Requested,
		})
		return
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
