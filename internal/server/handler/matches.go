package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// MatchReader is the slice of the match store the handler reads from.
type MatchReader interface {
	GetByID(ctx context.Context, id string) (domain.Match, error)
	ListByRound(ctx context.Context, roundID string) ([]domain.Match, error)
}

// RoundReader is the slice of the round store the handler reads from.
type RoundReader interface {
	GetActive(ctx context.Context) (domain.Round, error)
	FirstUpcoming(ctx context.Context) (domain.Round, error)
	GetByNumber(ctx context.Context, roundNumber, year int) (domain.Round, error)
	List(ctx context.Context, year int) ([]domain.Round, error)
}

// PredictionReader serves the latest stored prediction per match.
type PredictionReader interface {
	Latest(ctx context.Context, matchID string) (domain.Prediction, error)
}

// MatchHandler serves fixture endpoints.
type MatchHandler struct {
	matches     MatchReader
	rounds      RoundReader
	predictions PredictionReader
	logger      *slog.Logger
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matches MatchReader, rounds RoundReader, predictions PredictionReader, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{
		matches:     matches,
		rounds:      rounds,
		predictions: predictions,
		logger:      logger,
	}
}

type listMatchesResponse struct {
	Round   domain.Round   `json:"round"`
	Matches []domain.Match `json:"matches"`
}

// List returns the matches of one round: the requested round number, or the
// round the competition is currently at.
// GET /api/matches?round=&year=
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	var round domain.Round
	var err error

	if number := queryInt(r, "round", 0); number > 0 {
		year := queryInt(r, "year", time.Now().UTC().Year())
		round, err = h.rounds.GetByNumber(r.Context(), number, year)
	} else {
		round, err = h.currentRound(r.Context())
	}
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	matches, err := h.matches.ListByRound(r.Context(), round.ID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	writeJSON(w, http.StatusOK, listMatchesResponse{Round: round, Matches: matches})
}

// Get returns one match.
// GET /api/matches/{id}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// GetPrediction returns the latest stored prediction for a match.
// GET /api/matches/{id}/prediction
func (h *MatchHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if _, err := h.matches.GetByID(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	prediction, err := h.predictions.Latest(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

// currentRound mirrors the pipeline's notion of "now": the Active round, or
// the nearest Upcoming one.
func (h *MatchHandler) currentRound(ctx context.Context) (domain.Round, error) {
	round, err := h.rounds.GetActive(ctx)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Round{}, err
	}
	return h.rounds.FirstUpcoming(ctx)
}
