package http

import (
	"log/slog"
	"net/http"
	"time"

	"spendlens/internal/core"
)

// handleSpending serves GET /api/spending?timeframe=&user_id=. An unknown
// timeframe is not an error; it produces the empty view.
func (s *Server) handleSpending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	timeframe := core.Timeframe(sanitizeInput(r.URL.Query().Get("timeframe")))
	userID := sanitizeInput(r.URL.Query().Get("user_id"))

	receipts, err := s.getReceipts(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Spending query error", "error", err,
			"timeframe", timeframe, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to compute spending")
		return
	}

	spending := core.ComputeSpending(receipts, timeframe, time.Now())
	writeJSON(w, http.StatusOK, spending)
}
