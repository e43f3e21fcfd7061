package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a new PredictionStore backed by the given
// connection pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

const predictionSelectCols = `id, match_id, model,
	home_win_probability::text, away_win_probability::text,
	predicted_winner, confidence::text, confidence_level,
	recommended_team, stake_fraction::text, created_at`

func scanPredictionFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Prediction, error) {
	var p domain.Prediction
	var level string
	var homeProb, awayProb, confidence, fraction string

	err := scanner.Scan(
		&p.ID, &p.MatchID, &p.Model,
		&homeProb, &awayProb,
		&p.PredictedWinner, &confidence, &level,
		&p.RecommendedTeam, &fraction, &p.CreatedAt,
	)
	if err != nil {
		return domain.Prediction{}, err
	}

	p.ConfidenceLevel = domain.ConfidenceLevel(level)
	if p.HomeWinProbability, err = parseNumeric(homeProb); err != nil {
		return domain.Prediction{}, err
	}
	if p.AwayWinProbability, err = parseNumeric(awayProb); err != nil {
		return domain.Prediction{}, err
	}
	if p.Confidence, err = parseNumeric(confidence); err != nil {
		return domain.Prediction{}, err
	}
	if p.StakeFraction, err = parseNumeric(fraction); err != nil {
		return domain.Prediction{}, err
	}
	return p, nil
}

// Upsert writes a model's latest read on a match, replacing any previous row
// for the same match and model.
func (s *PredictionStore) Upsert(ctx context.Context, p domain.Prediction) (domain.Prediction, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO predictions (
			id, match_id, model, home_win_probability, away_win_probability,
			predicted_winner, confidence, confidence_level, recommended_team,
			stake_fraction, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT ON CONSTRAINT predictions_match_model_key DO UPDATE SET
			home_win_probability = EXCLUDED.home_win_probability,
			away_win_probability = EXCLUDED.away_win_probability,
			predicted_winner = EXCLUDED.predicted_winner,
			confidence = EXCLUDED.confidence,
			confidence_level = EXCLUDED.confidence_level,
			recommended_team = EXCLUDED.recommended_team,
			stake_fraction = EXCLUDED.stake_fraction,
			created_at = NOW()
		RETURNING `+predictionSelectCols,
		p.ID, p.MatchID, p.Model,
		p.HomeWinProbability.StringFixed(4), p.AwayWinProbability.StringFixed(4),
		p.PredictedWinner, p.Confidence.StringFixed(4), string(p.ConfidenceLevel),
		p.RecommendedTeam, p.StakeFraction.StringFixed(4),
	)

	stored, err := scanPredictionFromRow(row)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("postgres: upsert prediction for match %s: %w", p.MatchID, err)
	}
	return stored, nil
}

// GetByMatch returns the freshest prediction for a match across all models.
func (s *PredictionStore) GetByMatch(ctx context.Context, matchID string) (domain.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+predictionSelectCols+` FROM predictions
		 WHERE match_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		matchID,
	)

	p, err := scanPredictionFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Prediction{}, domain.ErrNotFound
		}
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction for match %s: %w", matchID, err)
	}
	return p, nil
}
