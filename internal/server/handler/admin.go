package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/service"
)

// SettlementService defines the settlement entry point the admin handler
// uses.
type SettlementService interface {
	SettleMatch(ctx context.Context, matchID string, homeScore, awayScore int) (domain.SettlementSummary, error)
}

// RoundTicker forces a round lifecycle pass.
type RoundTicker interface {
	Tick(ctx context.Context, now time.Time) (service.TickSummary, error)
}

// LedgerVerifier replays a user's ledger against their bankroll.
type LedgerVerifier interface {
	VerifyLedger(ctx context.Context, userID string) (service.LedgerVerification, error)
}

// AdminHandler serves the operator endpoints behind API-key auth.
type AdminHandler struct {
	settlement SettlementService
	rounds     RoundTicker
	accounts   LedgerVerifier
	logger     *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(settlement SettlementService, rounds RoundTicker, accounts LedgerVerifier, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		settlement: settlement,
		rounds:     rounds,
		accounts:   accounts,
		logger:     logger,
	}
}

type settleRequest struct {
	MatchID   string `json:"match_id"`
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
}

// Settle settles a match with a manually entered final score.
// POST /api/admin/settle
func (h *AdminHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.MatchID == "" || req.HomeScore == nil || req.AwayScore == nil {
		writeError(w, http.StatusBadRequest, "match_id, home_score, and away_score are required")
		return
	}
	if *req.HomeScore < 0 || *req.AwayScore < 0 {
		writeError(w, http.StatusBadRequest, "scores must not be negative")
		return
	}

	summary, err := h.settlement.SettleMatch(r.Context(), req.MatchID, *req.HomeScore, *req.AwayScore)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// TickRounds forces a round activation/completion pass, including the weekly
// bonus run for any round that activates.
// POST /api/admin/rounds/tick
func (h *AdminHandler) TickRounds(w http.ResponseWriter, r *http.Request) {
	summary, err := h.rounds.Tick(r.Context(), time.Now().UTC())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// VerifyLedger replays one user's ledger and reports whether it reproduces
// the live bankroll.
// GET /api/admin/users/{id}/ledger/verify
func (h *AdminHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	verification, err := h.accounts.VerifyLedger(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, verification)
}
