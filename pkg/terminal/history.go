package terminal

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
)

// HandleHistory returns the transcript of the caller's own session.
// It expects claims from auth.RequireToken in the request context.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.transcript == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxList := configuration.GetInt("History", "max_list", 500)
	limit := maxList
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if n < limit {
			limit = n
		}
	}

	entries, err := h.transcript.ListSession(r.Context(), claims.SessionID, limit)
	if err != nil {
		logger.TerminalError("History lookup for session %s failed: %v", claims.SessionID, err)
		http.Error(w, "History unavailable", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(entries)
}
