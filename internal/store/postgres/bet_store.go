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

// BetStore implements domain.BetStore using PostgreSQL. Place and SettleMatch
// are the two transactions that move money; each one keeps the bankroll
// update, the bet row, and the ledger entry in a single commit.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betSelectCols = `id, user_id, match_id, team_selected,
	stake::text, odds_at_placement::text, potential_payout::text,
	status, placed_at, settled_at`

func scanBetFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Bet, error) {
	var b domain.Bet
	var status string
	var stake, odds, payout string

	err := scanner.Scan(
		&b.ID, &b.UserID, &b.MatchID, &b.TeamSelected,
		&stake, &odds, &payout,
		&status, &b.PlacedAt, &b.SettledAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}

	b.Status = domain.BetStatus(status)
	if b.Stake, err = parseNumeric(stake); err != nil {
		return domain.Bet{}, err
	}
	if b.OddsAtPlacement, err = parseNumeric(odds); err != nil {
		return domain.Bet{}, err
	}
	if b.PotentialPayout, err = parseNumeric(payout); err != nil {
		return domain.Bet{}, err
	}
	return b, nil
}

func scanBetRows(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBetFromRow(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// Place atomically debits the stake and records the bet and its ledger entry.
// The match row is share-locked and re-checked inside the transaction so a
// concurrent settlement cannot slip a fresh Pending bet under itself, and the
// funds check happens under the user row lock so two placements cannot both
// spend the same dollars.
func (s *BetStore) Place(ctx context.Context, bet domain.Bet) (domain.Bet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()

	var matchStatus string
	var startTime time.Time
	err = tx.QueryRow(ctx,
		`SELECT status, start_time FROM matches WHERE id = $1 FOR SHARE`,
		bet.MatchID,
	).Scan(&matchStatus, &startTime)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: place bet: lock match: %w", err)
	}
	if domain.MatchStatus(matchStatus) != domain.MatchStatusScheduled || !now.Before(startTime) {
		return domain.Bet{}, domain.ErrBettingClosed
	}

	var balanceText string
	err = tx.QueryRow(ctx,
		`SELECT bankroll::text FROM users WHERE id = $1 FOR UPDATE`,
		bet.UserID,
	).Scan(&balanceText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: place bet: lock user: %w", err)
	}
	balance, err := parseNumeric(balanceText)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet: %w", err)
	}
	if balance.LessThan(bet.Stake) {
		return domain.Bet{}, domain.ErrInsufficientFunds
	}
	newBalance := balance.Sub(bet.Stake)

	_, err = tx.Exec(ctx,
		`UPDATE users SET bankroll = $1, updated_at = $2 WHERE id = $3`,
		newBalance.StringFixed(2), now, bet.UserID,
	)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet: debit stake: %w", err)
	}

	bet.ID = uuid.NewString()
	bet.Status = domain.BetStatusPending
	bet.PlacedAt = now
	bet.SettledAt = nil

	_, err = tx.Exec(ctx,
		`INSERT INTO bets (id, user_id, match_id, team_selected, stake,
			odds_at_placement, potential_payout, status, placed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		bet.ID, bet.UserID, bet.MatchID, bet.TeamSelected,
		bet.Stake.StringFixed(2), bet.OddsAtPlacement.StringFixed(3),
		bet.PotentialPayout.StringFixed(2), string(bet.Status), bet.PlacedAt,
	)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet: insert bet: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, user_id, kind, bet_id, amount,
			balance_before, balance_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), bet.UserID, string(domain.LedgerBetPlaced), bet.ID,
		bet.Stake.Neg().StringFixed(2), balance.StringFixed(2),
		newBalance.StringFixed(2), now,
	)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet: write ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: place bet: commit: %w", err)
	}
	committed = true
	return bet, nil
}

// SettleMatch resolves every Pending bet on a match in one transaction and
// marks the match Completed with its final score. A match that already
// settled returns ErrAlreadySettled with nothing written.
//
// The match row is locked exclusively first, so concurrent settlements of the
// same match serialize there and the loser of the race sees Completed.
// Pending bets are processed in user_id order and each user row is locked in
// turn; Place locks in the same match-then-user order, so the two
// transactions cannot deadlock. A bet whose user row has vanished is skipped
// and stays Pending; everything else in the batch still commits.
func (s *BetStore) SettleMatch(ctx context.Context, matchID string, result domain.MatchResult) (domain.SettlementSummary, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	summary := domain.SettlementSummary{
		MatchID:   matchID,
		Winner:    result.Winner,
		SettledAt: now,
	}

	var matchStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM matches WHERE id = $1 FOR UPDATE`,
		matchID,
	).Scan(&matchStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SettlementSummary{}, domain.ErrNotFound
		}
		return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: lock match: %w", err)
	}
	if domain.MatchStatus(matchStatus) == domain.MatchStatusCompleted {
		return domain.SettlementSummary{}, domain.ErrAlreadySettled
	}

	rows, err := tx.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets
		 WHERE match_id = $1 AND status = 'Pending'
		 ORDER BY user_id, placed_at
		 FOR UPDATE`,
		matchID,
	)
	if err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: load pending bets: %w", err)
	}
	bets, err := scanBetRows(rows)
	rows.Close()
	if err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: scan pending bets: %w", err)
	}

	for _, bet := range bets {
		res := domain.ResolveBet(bet, result.Winner)

		var balanceText string
		err = tx.QueryRow(ctx,
			`SELECT bankroll::text FROM users WHERE id = $1 FOR UPDATE`,
			bet.UserID,
		).Scan(&balanceText)
		if err != nil {
			if err == pgx.ErrNoRows {
				summary.Skipped++
				summary.SkippedBets = append(summary.SkippedBets, bet.ID)
				continue
			}
			return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: lock user %s: %w", bet.UserID, err)
		}
		balance, err := parseNumeric(balanceText)
		if err != nil {
			return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: %w", err)
		}
		newBalance := balance.Add(res.Delta)

		if !res.Delta.IsZero() {
			_, err = tx.Exec(ctx,
				`UPDATE users SET bankroll = $1, updated_at = $2 WHERE id = $3`,
				newBalance.StringFixed(2), now, bet.UserID,
			)
			if err != nil {
				return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: credit user %s: %w", bet.UserID, err)
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE bets SET status = $1, settled_at = $2 WHERE id = $3`,
			string(res.Status), now, bet.ID,
		)
		if err != nil {
			return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: update bet %s: %w", bet.ID, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO ledger_entries (id, user_id, kind, bet_id, amount,
				balance_before, balance_after, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), bet.UserID, string(res.Kind), bet.ID,
			res.Delta.StringFixed(2), balance.StringFixed(2),
			newBalance.StringFixed(2), now,
		)
		if err != nil {
			return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: write ledger for bet %s: %w", bet.ID, err)
		}

		switch res.Status {
		case domain.BetStatusWon:
			summary.Won++
		case domain.BetStatusLost:
			summary.Lost++
		case domain.BetStatusVoid:
			summary.Void++
		}
		if res.Delta.IsPositive() {
			summary.TotalPaid = summary.TotalPaid.Add(res.Delta)
		}
		summary.Events = append(summary.Events, domain.BankrollEvent{
			UserID:      bet.UserID,
			NewBankroll: newBalance,
			Reason:      string(res.Kind),
			MatchID:     matchID,
		})
	}

	_, err = tx.Exec(ctx,
		`UPDATE matches
		 SET status = 'Completed', home_score = $1, away_score = $2,
		     winner = $3, updated_at = $4
		 WHERE id = $5`,
		result.HomeScore, result.AwayScore, result.Winner, now, matchID,
	)
	if err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: finalize match: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("postgres: settle match: commit: %w", err)
	}
	committed = true
	return summary, nil
}

// GetByID retrieves a single bet by ID.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE id = $1`, id)

	b, err := scanBetFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	return b, nil
}

// ListByUser returns a user's bets newest first, optionally filtered to a set
// of statuses.
func (s *BetStore) ListByUser(ctx context.Context, userID string, statuses []domain.BetStatus) ([]domain.Bet, error) {
	var rows pgx.Rows
	var err error

	if len(statuses) == 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT `+betSelectCols+` FROM bets WHERE user_id = $1 ORDER BY placed_at DESC`,
			userID,
		)
	} else {
		filter := make([]string, len(statuses))
		for i, st := range statuses {
			filter[i] = string(st)
		}
		rows, err = s.pool.Query(ctx,
			`SELECT `+betSelectCols+` FROM bets
			 WHERE user_id = $1 AND status = ANY($2)
			 ORDER BY placed_at DESC`,
			userID, filter,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for user %s: %w", userID, err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets for user: %w", err)
	}
	return bets, nil
}

// HasPending reports whether the user already holds a Pending bet on the
// match.
func (s *BetStore) HasPending(ctx context.Context, userID, matchID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM bets WHERE user_id = $1 AND match_id = $2 AND status = 'Pending'
		 )`,
		userID, matchID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check pending bet: %w", err)
	}
	return exists, nil
}

// ListSettledBetween returns bets settled in [from, to), oldest first, for
// the archive exporter.
func (s *BetStore) ListSettledBetween(ctx context.Context, from, to time.Time, opts domain.ListOpts) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets
		 WHERE settled_at >= $1 AND settled_at < $2
		 ORDER BY settled_at, id
		 LIMIT $3 OFFSET $4`,
		from, to, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled bets: %w", err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settled bets: %w", err)
	}
	return bets, nil
}
