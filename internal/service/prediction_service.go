package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/predictor"
)

// PredictionService runs the model over the bettable matches of the target
// round and stores the output.
type PredictionService struct {
	predictions domain.PredictionStore
	matches     domain.MatchStore
	rounds      domain.RoundStore
	model       predictor.Model
	logger      *slog.Logger
}

// NewPredictionService creates a PredictionService.
func NewPredictionService(
	predictions domain.PredictionStore,
	matches domain.MatchStore,
	rounds domain.RoundStore,
	model predictor.Model,
	logger *slog.Logger,
) *PredictionService {
	return &PredictionService{
		predictions: predictions,
		matches:     matches,
		rounds:      rounds,
		model:       model,
		logger:      logger.With(slog.String("component", "predictions")),
	}
}

// Refresh predicts every open match of the target round and upserts the
// results. Matches the model declines (no odds yet) are skipped quietly.
// Returns the number of predictions written.
func (s *PredictionService) Refresh(ctx context.Context, now time.Time) (int, error) {
	round, err := targetRound(ctx, s.rounds)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.DebugContext(ctx, "no round to predict")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("predictions: target round: %w", err)
	}

	matches, err := s.matches.ListOpenForBets(ctx, round.ID, now)
	if err != nil {
		return 0, fmt.Errorf("predictions: list matches for round %d: %w", round.RoundNumber, err)
	}

	written := 0
	for _, match := range matches {
		p, ok, err := s.model.Predict(ctx, match)
		if err != nil {
			s.logger.WarnContext(ctx, "model failed",
				slog.String("model", s.model.Name()),
				slog.String("match_id", match.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ok {
			continue
		}
		if _, err := s.predictions.Upsert(ctx, p); err != nil {
			s.logger.WarnContext(ctx, "store prediction",
				slog.String("match_id", match.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		written++
	}

	if written > 0 {
		s.logger.InfoContext(ctx, "predictions refreshed",
			slog.String("model", s.model.Name()),
			slog.Int("round", round.RoundNumber),
			slog.Int("written", written),
		)
	}
	return written, nil
}

// Latest returns the newest stored prediction for a match.
func (s *PredictionService) Latest(ctx context.Context, matchID string) (domain.Prediction, error) {
	p, err := s.predictions.GetByMatch(ctx, matchID)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predictions: match %s: %w", matchID, err)
	}
	return p, nil
}

// targetRound picks the round current work should aim at: the Active round,
// or the nearest Upcoming one between rounds.
func targetRound(ctx context.Context, rounds domain.RoundStore) (domain.Round, error) {
	round, err := rounds.GetActive(ctx)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Round{}, err
	}
	return rounds.FirstUpcoming(ctx)
}
