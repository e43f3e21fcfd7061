package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/notify"
)

// LedgerVerification is the result of replaying one user's ledger against the
// live bankroll.
type LedgerVerification struct {
	UserID     string          `json:"user_id"`
	Entries    int             `json:"entries"`
	Bankroll   decimal.Decimal `json:"bankroll"`
	Replayed   decimal.Decimal `json:"replayed"`
	Consistent bool            `json:"consistent"`
}

// AccountService manages users and their read-side views: bets, ledger
// history, leaderboard.
type AccountService struct {
	users  domain.UserStore
	bets   domain.BetStore
	ledger domain.LedgerStore
	rounds domain.RoundStore
	events *notify.EventPublisher
	logger *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	users domain.UserStore,
	bets domain.BetStore,
	ledger domain.LedgerStore,
	rounds domain.RoundStore,
	events *notify.EventPublisher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:  users,
		bets:   bets,
		ledger: ledger,
		rounds: rounds,
		events: events,
		logger: logger.With(slog.String("component", "accounts")),
	}
}

// Register creates a user. Late joiners start with the bankroll an original
// member would hold from bonuses alone: the active round number times the
// weekly bonus, or one bonus when the season has not started.
func (s *AccountService) Register(ctx context.Context, username, email string) (domain.User, error) {
	deposit, err := s.initialDeposit(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("accounts: register %s: %w", username, err)
	}

	user, err := s.users.Create(ctx, domain.User{
		Username: username,
		Email:    email,
		Active:   true,
	}, deposit)
	if err != nil {
		return domain.User{}, fmt.Errorf("accounts: register %s: %w", username, err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", username),
		slog.String("initial_deposit", deposit.StringFixed(2)),
	)
	s.events.PublishBankroll(ctx, domain.BankrollEvent{
		UserID:      user.ID,
		NewBankroll: user.Bankroll,
		Reason:      string(domain.LedgerInitialDeposit),
	})
	return user, nil
}

// EnsureBotUser returns the bot account with the given username, creating it
// on first use with the same deposit rule as human registration.
func (s *AccountService) EnsureBotUser(ctx context.Context, username string) (domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("accounts: lookup bot %s: %w", username, err)
	}

	deposit, err := s.initialDeposit(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("accounts: create bot %s: %w", username, err)
	}

	user, err = s.users.Create(ctx, domain.User{
		Username: username,
		Email:    fmt.Sprintf("%s@bots.tipengine.local", strings.ToLower(username)),
		Active:   true,
		IsBot:    true,
	}, deposit)
	if err != nil {
		// Lost a create race with another instance; the row is there now.
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.users.GetByUsername(ctx, username)
		}
		return domain.User{}, fmt.Errorf("accounts: create bot %s: %w", username, err)
	}

	s.logger.InfoContext(ctx, "bot user created",
		slog.String("user_id", user.ID),
		slog.String("username", username),
		slog.String("initial_deposit", deposit.StringFixed(2)),
	)
	return user, nil
}

// initialDeposit computes the starting bankroll from the active round.
func (s *AccountService) initialDeposit(ctx context.Context) (decimal.Decimal, error) {
	round, err := s.rounds.GetActive(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return RoundBonus, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("lookup active round: %w", err)
	}
	return RoundBonus.Mul(decimal.NewFromInt(int64(round.RoundNumber))), nil
}

// Get returns one user.
func (s *AccountService) Get(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("accounts: get user %s: %w", userID, err)
	}
	return user, nil
}

// Leaderboard returns active users by bankroll, best first.
func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	users, err := s.users.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("accounts: leaderboard: %w", err)
	}
	return users, nil
}

// Bets returns the user's bets, optionally narrowed to the given statuses.
func (s *AccountService) Bets(ctx context.Context, userID string, statuses []domain.BetStatus) ([]domain.Bet, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("accounts: get user %s: %w", userID, err)
	}
	bets, err := s.bets.ListByUser(ctx, userID, statuses)
	if err != nil {
		return nil, fmt.Errorf("accounts: bets for user %s: %w", userID, err)
	}
	return bets, nil
}

// History returns the user's ledger entries, oldest first.
func (s *AccountService) History(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("accounts: get user %s: %w", userID, err)
	}
	entries, err := s.ledger.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("accounts: ledger for user %s: %w", userID, err)
	}
	return entries, nil
}

// VerifyLedger replays the user's full ledger and checks it against the live
// bankroll: the deltas must sum to the balance and every entry must chain
// onto the previous one.
func (s *AccountService) VerifyLedger(ctx context.Context, userID string) (LedgerVerification, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return LedgerVerification{}, fmt.Errorf("accounts: get user %s: %w", userID, err)
	}
	entries, err := s.ledger.History(ctx, userID)
	if err != nil {
		return LedgerVerification{}, fmt.Errorf("accounts: ledger for user %s: %w", userID, err)
	}

	replayed := domain.ReplayBalance(entries)
	consistent := replayed.Equal(user.Bankroll)

	prev := decimal.Zero
	for _, e := range entries {
		if !e.BalanceBefore.Equal(prev) || !e.BalanceAfter.Sub(e.BalanceBefore).Equal(e.Amount) {
			consistent = false
			break
		}
		prev = e.BalanceAfter
	}

	if !consistent {
		s.logger.WarnContext(ctx, "ledger replay mismatch",
			slog.String("user_id", userID),
			slog.String("bankroll", user.Bankroll.StringFixed(2)),
			slog.String("replayed", replayed.StringFixed(2)),
		)
	}

	return LedgerVerification{
		UserID:     userID,
		Entries:    len(entries),
		Bankroll:   user.Bankroll,
		Replayed:   replayed,
		Consistent: consistent,
	}, nil
}
