package handler

import (
	"log/slog"
	"net/http"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// RoundHandler serves round endpoints.
type RoundHandler struct {
	rounds RoundReader
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(rounds RoundReader, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{rounds: rounds, logger: logger}
}

type listRoundsResponse struct {
	Rounds []domain.Round `json:"rounds"`
}

// List returns all rounds, optionally narrowed to a year.
// GET /api/rounds?year=
func (h *RoundHandler) List(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.rounds.List(r.Context(), queryInt(r, "year", 0))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if rounds == nil {
		rounds = []domain.Round{}
	}
	writeJSON(w, http.StatusOK, listRoundsResponse{Rounds: rounds})
}

// GetActive returns the currently Active round, 404 when between rounds.
// GET /api/rounds/active
func (h *RoundHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.GetActive(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}
