package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error onto its HTTP status. Known sentinels
// surface their own text; anything unrecognized is logged and hidden behind a
// generic 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range errStatus {
		if errors.Is(err, m.sentinel) {
			writeError(w, m.status, m.sentinel.Error())
			return
		}
	}
	logger.ErrorContext(r.Context(), "handler: request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// errStatus orders the sentinel-to-status mapping; first match wins.
var errStatus = []struct {
	sentinel error
	status   int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrAlreadyExists, http.StatusConflict},
	{domain.ErrAlreadySettled, http.StatusConflict},
	{domain.ErrBonusAlreadyApplied, http.StatusConflict},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
	{domain.ErrBettingClosed, http.StatusBadRequest},
	{domain.ErrInvalidSelection, http.StatusBadRequest},
	{domain.ErrOddsUnavailable, http.StatusBadRequest},
	{domain.ErrInvalidStake, http.StatusBadRequest},
	{domain.ErrRateLimited, http.StatusTooManyRequests},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// statusFilter translates the ?status= query value into bet statuses. The
// pseudo-status Settled covers every terminal state. The bool reports whether
// the value was understood.
func statusFilter(value string) ([]domain.BetStatus, bool) {
	switch value {
	case "":
		return nil, true
	case "Settled":
		return domain.SettledStatuses, true
	case string(domain.BetStatusPending):
		return []domain.BetStatus{domain.BetStatusPending}, true
	case string(domain.BetStatusWon):
		return []domain.BetStatus{domain.BetStatusWon}, true
	case string(domain.BetStatusLost):
		return []domain.BetStatus{domain.BetStatusLost}, true
	case string(domain.BetStatusVoid):
		return []domain.BetStatus{domain.BetStatusVoid}, true
	default:
		return nil, false
	}
}
