package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. The store only
// reads; ledger entries are written by the UserStore and BetStore
// transactions that move the money they record.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const ledgerSelectCols = `id, user_id, kind, bet_id, round_id,
	amount::text, balance_before::text, balance_after::text, created_at`

func scanLedgerFromRow(scanner interface{ Scan(dest ...any) error }) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var kind string
	var amount, before, after string

	err := scanner.Scan(
		&e.ID, &e.UserID, &kind, &e.BetID, &e.RoundID,
		&amount, &before, &after, &e.CreatedAt,
	)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	e.Kind = domain.LedgerKind(kind)
	if e.Amount, err = parseNumeric(amount); err != nil {
		return domain.LedgerEntry{}, err
	}
	if e.BalanceBefore, err = parseNumeric(before); err != nil {
		return domain.LedgerEntry{}, err
	}
	if e.BalanceAfter, err = parseNumeric(after); err != nil {
		return domain.LedgerEntry{}, err
	}
	return e, nil
}

func scanLedgerRows(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerFromRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// History returns a user's complete ledger in commit order, oldest first.
// Folding the amounts reproduces the live bankroll.
func (s *LedgerStore) History(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerSelectCols+` FROM ledger_entries WHERE user_id = $1 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: ledger history for user %s: %w", userID, err)
	}
	defer rows.Close()

	entries, err := scanLedgerRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ledger history: %w", err)
	}
	return entries, nil
}

// ListCreatedBetween returns entries created in [from, to), oldest first, for
// the archive exporter.
func (s *LedgerStore) ListCreatedBetween(ctx context.Context, from, to time.Time, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerSelectCols+` FROM ledger_entries
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY seq
		 LIMIT $3 OFFSET $4`,
		from, to, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedgerRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ledger entries: %w", err)
	}
	return entries, nil
}
