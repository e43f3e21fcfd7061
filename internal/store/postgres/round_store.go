package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a new RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

const roundSelectCols = `id, round_number, year, start_time, end_time, status, created_at, updated_at`

func scanRoundFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Round, error) {
	var r domain.Round
	var status string

	err := scanner.Scan(
		&r.ID, &r.RoundNumber, &r.Year, &r.StartTime, &r.EndTime,
		&status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.Round{}, err
	}
	r.Status = domain.RoundStatus(status)
	return r, nil
}

func scanRoundRows(rows pgx.Rows) ([]domain.Round, error) {
	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRoundFromRow(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// Upsert inserts or refreshes a round keyed by (round_number, year). The
// stored status is preserved on update; only the schedule window moves.
func (s *RoundStore) Upsert(ctx context.Context, round domain.Round) (domain.Round, error) {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	if round.Status == "" {
		round.Status = domain.RoundStatusUpcoming
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO rounds (id, round_number, year, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT ON CONSTRAINT rounds_number_year_key DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_at = NOW()
		RETURNING `+roundSelectCols,
		round.ID, round.RoundNumber, round.Year,
		round.StartTime, round.EndTime, string(round.Status),
	)

	r, err := scanRoundFromRow(row)
	if err != nil {
		return domain.Round{}, fmt.Errorf("postgres: upsert round %d/%d: %w", round.RoundNumber, round.Year, err)
	}
	return r, nil
}

// GetByID retrieves a single round by ID.
func (s *RoundStore) GetByID(ctx context.Context, id string) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundSelectCols+` FROM rounds WHERE id = $1`, id)

	r, err := scanRoundFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Round{}, domain.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get round %s: %w", id, err)
	}
	return r, nil
}

// GetActive returns the Active round, or domain.ErrNotFound when none is.
// With overlapping data the most recently started wins.
func (s *RoundStore) GetActive(ctx context.Context) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundSelectCols+` FROM rounds WHERE status = $1 ORDER BY start_time DESC LIMIT 1`,
		string(domain.RoundStatusActive),
	)

	r, err := scanRoundFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Round{}, domain.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get active round: %w", err)
	}
	return r, nil
}

// FirstUpcoming returns the Upcoming round with the earliest start.
func (s *RoundStore) FirstUpcoming(ctx context.Context) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundSelectCols+` FROM rounds WHERE status = $1 ORDER BY start_time LIMIT 1`,
		string(domain.RoundStatusUpcoming),
	)

	r, err := scanRoundFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Round{}, domain.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: first upcoming round: %w", err)
	}
	return r, nil
}

// GetByNumber retrieves a round by its (round_number, year) key.
func (s *RoundStore) GetByNumber(ctx context.Context, roundNumber, year int) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundSelectCols+` FROM rounds WHERE round_number = $1 AND year = $2`,
		roundNumber, year,
	)

	r, err := scanRoundFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Round{}, domain.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get round %d/%d: %w", roundNumber, year, err)
	}
	return r, nil
}

// List returns all rounds, optionally restricted to a year, ordered by
// start time.
func (s *RoundStore) List(ctx context.Context, year int) ([]domain.Round, error) {
	query := `SELECT ` + roundSelectCols + ` FROM rounds`
	args := []any{}
	if year > 0 {
		query += ` WHERE year = $1`
		args = append(args, year)
	}
	query += ` ORDER BY start_time`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds: %w", err)
	}
	defer rows.Close()

	rounds, err := scanRoundRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rounds: %w", err)
	}
	return rounds, nil
}

// ListByStatus returns rounds in the given status ordered by start time.
func (s *RoundStore) ListByStatus(ctx context.Context, status domain.RoundStatus) ([]domain.Round, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roundSelectCols+` FROM rounds WHERE status = $1 ORDER BY start_time`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds by status %s: %w", status, err)
	}
	defer rows.Close()

	rounds, err := scanRoundRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rounds by status: %w", err)
	}
	return rounds, nil
}

// SetStatus moves a round to the given status.
func (s *RoundStore) SetStatus(ctx context.Context, id string, status domain.RoundStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rounds SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: set round %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
