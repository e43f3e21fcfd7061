package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// AccountService defines the methods the user handler requires from the
// service layer.
type AccountService interface {
	Register(ctx context.Context, username, email string) (domain.User, error)
	Get(ctx context.Context, userID string) (domain.User, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.User, error)
	Bets(ctx context.Context, userID string, statuses []domain.BetStatus) ([]domain.Bet, error)
	History(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
}

// UserHandler serves account endpoints.
type UserHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(accounts AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Register creates a user account.
// POST /api/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "email is not valid")
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Username, req.Email)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Get returns one user with their current bankroll.
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type listBetsResponse struct {
	Bets []domain.Bet `json:"bets"`
}

// ListBets returns a user's bets, optionally filtered by status. The pseudo
// status Settled selects Won, Lost, and Void together.
// GET /api/users/{id}/bets?status=
func (h *UserHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	statuses, ok := statusFilter(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status filter (valid: Pending, Won, Lost, Void, Settled)")
		return
	}

	bets, err := h.accounts.Bets(r.Context(), pathParam(r, "id"), statuses)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}

type ledgerResponse struct {
	Entries []domain.LedgerEntry `json:"entries"`
}

// ListLedger returns a user's full bankroll history, oldest first.
// GET /api/users/{id}/ledger
func (h *UserHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.accounts.History(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, ledgerResponse{Entries: entries})
}

type leaderboardResponse struct {
	Users []domain.User `json:"users"`
}

// Leaderboard returns active users ranked by bankroll.
// GET /api/leaderboard?limit=
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.Leaderboard(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Users: users})
}
