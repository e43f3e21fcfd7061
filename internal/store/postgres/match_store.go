package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// MatchStore implements domain.MatchStore using PostgreSQL.
type MatchStore struct {
	pool *pgxpool.Pool
}

// NewMatchStore creates a new MatchStore backed by the given connection pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchSelectCols = `id, round_id, home_team, away_team,
	home_odds::text, away_odds::text, start_time, status,
	home_score, away_score, winner, venue, venue_city,
	external_ref, odds_updated_at, created_at, updated_at`

func scanMatchFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Match, error) {
	var m domain.Match
	var status string
	var homeOdds, awayOdds *string
	var externalRef *string

	err := scanner.Scan(
		&m.ID, &m.RoundID, &m.HomeTeam, &m.AwayTeam,
		&homeOdds, &awayOdds, &m.StartTime, &status,
		&m.HomeScore, &m.AwayScore, &m.Winner, &m.Venue, &m.VenueCity,
		&externalRef, &m.OddsUpdatedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Match{}, err
	}

	m.Status = domain.MatchStatus(status)
	if externalRef != nil {
		m.ExternalRef = *externalRef
	}
	if m.HomeOdds, err = parseNullNumeric(homeOdds); err != nil {
		return domain.Match{}, err
	}
	if m.AwayOdds, err = parseNullNumeric(awayOdds); err != nil {
		return domain.Match{}, err
	}
	return m, nil
}

func scanMatchRows(rows pgx.Rows) ([]domain.Match, error) {
	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatchFromRow(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Upsert inserts or refreshes a match keyed by external_ref. Fixture data
// (teams, kickoff, venue, round) is refreshed; odds, status, and result
// fields are never touched here, and a Completed match is left entirely
// alone.
func (s *MatchStore) Upsert(ctx context.Context, match domain.Match) (domain.Match, error) {
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	if match.Status == "" {
		match.Status = domain.MatchStatusScheduled
	}

	var externalRef *string
	if match.ExternalRef != "" {
		externalRef = &match.ExternalRef
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO matches (
			id, round_id, home_team, away_team, start_time, status,
			venue, venue_city, external_ref, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT ON CONSTRAINT matches_external_ref_key DO UPDATE SET
			round_id = EXCLUDED.round_id,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			start_time = EXCLUDED.start_time,
			venue = EXCLUDED.venue,
			venue_city = EXCLUDED.venue_city,
			updated_at = NOW()
		WHERE matches.status <> 'Completed'
		RETURNING `+matchSelectCols,
		match.ID, match.RoundID, match.HomeTeam, match.AwayTeam,
		match.StartTime, string(match.Status),
		match.Venue, match.VenueCity, externalRef,
	)

	m, err := scanMatchFromRow(row)
	if err != nil {
		// The guarded update returns no row for a Completed match; hand back
		// the stored one unchanged.
		if err == pgx.ErrNoRows && match.ExternalRef != "" {
			return s.getByExternalRef(ctx, match.ExternalRef)
		}
		return domain.Match{}, fmt.Errorf("postgres: upsert match %s v %s: %w", match.HomeTeam, match.AwayTeam, err)
	}
	return m, nil
}

func (s *MatchStore) getByExternalRef(ctx context.Context, ref string) (domain.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchSelectCols+` FROM matches WHERE external_ref = $1`, ref)

	m, err := scanMatchFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, fmt.Errorf("postgres: get match by ref %s: %w", ref, err)
	}
	return m, nil
}

// GetByID retrieves a single match by ID.
func (s *MatchStore) GetByID(ctx context.Context, id string) (domain.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchSelectCols+` FROM matches WHERE id = $1`, id)

	m, err := scanMatchFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, fmt.Errorf("postgres: get match %s: %w", id, err)
	}
	return m, nil
}

// ListByRound returns a round's matches ordered by kickoff.
func (s *MatchStore) ListByRound(ctx context.Context, roundID string) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchSelectCols+` FROM matches WHERE round_id = $1 ORDER BY start_time, id`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches for round %s: %w", roundID, err)
	}
	defer rows.Close()

	matches, err := scanMatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan matches for round: %w", err)
	}
	return matches, nil
}

// ListOpenForBets returns the round's Scheduled matches that have not kicked
// off yet.
func (s *MatchStore) ListOpenForBets(ctx context.Context, roundID string, now time.Time) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchSelectCols+` FROM matches
		 WHERE round_id = $1 AND status = 'Scheduled' AND start_time > $2
		 ORDER BY start_time, id`,
		roundID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open matches for round %s: %w", roundID, err)
	}
	defer rows.Close()

	matches, err := scanMatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open matches: %w", err)
	}
	return matches, nil
}

// ListAwaitingResult returns matches worth polling for a result: Live ones,
// and Scheduled ones whose kickoff has passed.
func (s *MatchStore) ListAwaitingResult(ctx context.Context, now time.Time) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchSelectCols+` FROM matches
		 WHERE status = 'Live' OR (status = 'Scheduled' AND start_time <= $1)
		 ORDER BY start_time, id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches awaiting result: %w", err)
	}
	defer rows.Close()

	matches, err := scanMatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan matches awaiting result: %w", err)
	}
	return matches, nil
}

// UpdateOdds writes a fresh pair of head-to-head prices. Odds on a settled
// match are immutable.
func (s *MatchStore) UpdateOdds(ctx context.Context, id string, homeOdds, awayOdds decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE matches
		 SET home_odds = $1, away_odds = $2, odds_updated_at = $3, updated_at = $3
		 WHERE id = $4 AND status <> 'Completed'`,
		homeOdds.StringFixed(3), awayOdds.StringFixed(3), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: update odds for match %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus moves a match between non-terminal states. It refuses to write
// Completed (only the settlement transaction does that) and leaves a settled
// match alone.
func (s *MatchStore) UpdateStatus(ctx context.Context, id string, status domain.MatchStatus) error {
	if status == domain.MatchStatusCompleted {
		return fmt.Errorf("postgres: update match %s status: %w", id, domain.ErrAlreadySettled)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE matches SET status = $1, updated_at = $2 WHERE id = $3 AND status <> 'Completed'`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: update match %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
