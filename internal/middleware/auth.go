package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/Susa-Sek/chorechamp-sub001/internal/auth"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

// Headers set by the upstream gateway after it authenticated the caller.
const (
	HeaderUserID      = "X-User-ID"
	HeaderHouseholdID = "X-Household-ID"
	HeaderUserRole    = "X-User-Role"
)

// Identity reads the gateway identity headers, checks them against the
// caller's household membership and populates AuthContext. The membership
// row is authoritative for household and role.
func Identity(householdStore *store.HouseholdStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(HeaderUserID)
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "missing caller identity")
				return
			}

			member, err := householdStore.GetMember(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if member == nil {
				writeError(w, http.StatusForbidden, "caller is not a household member")
				return
			}
			if h := r.Header.Get(HeaderHouseholdID); h != "" && h != member.HouseholdID {
				writeError(w, http.StatusForbidden, "household mismatch")
				return
			}
			if role := r.Header.Get(HeaderUserRole); role != "" && role != string(member.Role) {
				writeError(w, http.StatusForbidden, "role mismatch")
				return
			}

			ac := auth.AuthContext{
				UserID:      member.UserID,
				HouseholdID: member.HouseholdID,
				Role:        string(member.Role),
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
