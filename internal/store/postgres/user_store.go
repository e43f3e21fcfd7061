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

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userSelectCols = `id, username, email, bankroll::text, active, is_bot, created_at, updated_at`

func scanUserFromRow(scanner interface{ Scan(dest ...any) error }) (domain.User, error) {
	var u domain.User
	var bankroll string

	err := scanner.Scan(
		&u.ID, &u.Username, &u.Email, &bankroll,
		&u.Active, &u.IsBot, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Bankroll, err = parseNumeric(bankroll)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func scanUserRows(rows pgx.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		u, err := scanUserFromRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts the user and its Initial Deposit ledger entry in one
// transaction. A duplicate username or email yields domain.ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, user domain.User, initialDeposit decimal.Decimal) (domain.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Bankroll = initialDeposit
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: create user: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, username, email, bankroll, active, is_bot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Username, user.Email, initialDeposit.StringFixed(2),
		user.Active, user.IsBot, now, now,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.User{}, domain.ErrAlreadyExists
		}
		return domain.User{}, fmt.Errorf("postgres: create user %s: %w", user.Username, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, amount, balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), user.ID, string(domain.LedgerInitialDeposit),
		initialDeposit.StringFixed(2), "0.00", initialDeposit.StringFixed(2), now,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: create user %s: ledger entry: %w", user.Username, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("postgres: create user %s: commit: %w", user.Username, err)
	}
	committed = true

	return user, nil
}

// GetByID retrieves a single user by ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE id = $1`, id)

	u, err := scanUserFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// GetByUsername retrieves a single user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE username = $1`, username)

	u, err := scanUserFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user by username %s: %w", username, err)
	}
	return u, nil
}

// ListActive returns all active users.
func (s *UserStore) ListActive(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active users: %w", err)
	}
	defer rows.Close()

	users, err := scanUserRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active users: %w", err)
	}
	return users, nil
}

// Leaderboard returns active users ordered by bankroll descending.
func (s *UserStore) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	query := `SELECT ` + userSelectCols + ` FROM users WHERE active ORDER BY bankroll DESC, username`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	users, err := scanUserRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan leaderboard: %w", err)
	}
	return users, nil
}

// ApplyRoundBonus credits amount to the user under a Weekly Addition ledger
// entry for the round, all in one transaction, and returns the new bankroll.
// The partial unique index on (user_id, round_id) turns a repeat application
// into domain.ErrBonusAlreadyApplied with no mutation.
func (s *UserStore) ApplyRoundBonus(ctx context.Context, userID, roundID string, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: round bonus: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var balanceStr string
	err = tx.QueryRow(ctx,
		`SELECT bankroll::text FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&balanceStr)
	if err != nil {
		if err == pgx.ErrNoRows {
			return decimal.Decimal{}, domain.ErrNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("postgres: round bonus: lock user %s: %w", userID, err)
	}

	balance, err := parseNumeric(balanceStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: round bonus: %w", err)
	}
	newBalance := balance.Add(amount)
	now := time.Now().UTC()

	// The ledger insert goes first so the unique index can reject a repeat
	// before the balance moves.
	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, round_id, amount, balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), userID, string(domain.LedgerRoundBonus), roundID,
		amount.StringFixed(2), balance.StringFixed(2), newBalance.StringFixed(2), now,
	)
	if err != nil {
		if isUniqueViolation(err, "ledger_round_bonus_key") {
			return decimal.Decimal{}, domain.ErrBonusAlreadyApplied
		}
		return decimal.Decimal{}, fmt.Errorf("postgres: round bonus: ledger entry: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET bankroll = $1, updated_at = $2 WHERE id = $3`,
		newBalance.StringFixed(2), now, userID,
	)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: round bonus: update bankroll: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: round bonus: commit: %w", err)
	}
	committed = true

	return newBalance, nil
}
