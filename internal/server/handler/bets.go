package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// BettingService defines the methods the bet handler requires from the
// service layer.
type BettingService interface {
	PlaceBet(ctx context.Context, userID, matchID, team string, stake decimal.Decimal) (domain.Bet, error)
}

// BetHandler serves bet placement.
type BetHandler struct {
	betting BettingService
	logger  *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(betting BettingService, logger *slog.Logger) *BetHandler {
	return &BetHandler{betting: betting, logger: logger}
}

type placeBetRequest struct {
	UserID  string          `json:"user_id"`
	MatchID string          `json:"match_id"`
	Team    string          `json:"team"`
	Stake   decimal.Decimal `json:"stake"`
}

// Place places a bet for a user on a match.
// POST /api/bets
func (h *BetHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || req.MatchID == "" || req.Team == "" {
		writeError(w, http.StatusBadRequest, "user_id, match_id, and team are required")
		return
	}

	bet, err := h.betting.PlaceBet(r.Context(), req.UserID, req.MatchID, req.Team, req.Stake)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}
