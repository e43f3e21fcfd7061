package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/metrics"
	"github.com/jakeharveyy/tipengine/internal/notify"
)

// BettingService validates and places bets. All preconditions are checked
// here against a consistent read; the store re-checks the racy ones (match
// still open, funds still there) under row locks inside the placement
// transaction.
type BettingService struct {
	bets    domain.BetStore
	matches domain.MatchStore
	users   domain.UserStore
	events  *notify.EventPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBettingService creates a BettingService.
func NewBettingService(
	bets domain.BetStore,
	matches domain.MatchStore,
	users domain.UserStore,
	events *notify.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *BettingService {
	return &BettingService{
		bets:    bets,
		matches: matches,
		users:   users,
		events:  events,
		metrics: m,
		logger:  logger.With(slog.String("component", "betting")),
	}
}

// PlaceBet validates the wager and hands it to the placement transaction.
// Preconditions are checked in a fixed order and the first failure wins:
// match open, team in match, odds set, stake valid, funds sufficient. No
// failure leaves any trace.
func (s *BettingService) PlaceBet(ctx context.Context, userID, matchID, team string, stake decimal.Decimal) (domain.Bet, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		s.countRejection(err)
		return domain.Bet{}, fmt.Errorf("betting: load match %s: %w", matchID, err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.countRejection(err)
		return domain.Bet{}, fmt.Errorf("betting: load user %s: %w", userID, err)
	}

	if err := validateBet(match, user, team, stake, time.Now().UTC()); err != nil {
		s.countRejection(err)
		return domain.Bet{}, fmt.Errorf("betting: place: %w", err)
	}

	odds, _ := match.OddsFor(team)
	placed, err := s.bets.Place(ctx, domain.NewBet(userID, matchID, team, stake, odds))
	if err != nil {
		s.countRejection(err)
		return domain.Bet{}, fmt.Errorf("betting: place: %w", err)
	}

	s.metrics.BetsPlaced.Inc()
	s.logger.InfoContext(ctx, "bet placed",
		slog.String("bet_id", placed.ID),
		slog.String("user_id", userID),
		slog.String("match_id", matchID),
		slog.String("team", team),
		slog.String("stake", stake.StringFixed(2)),
		slog.String("odds", odds.String()),
	)

	s.publishDebit(ctx, placed, user.Bankroll.Sub(stake))
	return placed, nil
}

// validateBet applies the placement preconditions in their fixed order.
func validateBet(match domain.Match, user domain.User, team string, stake decimal.Decimal, now time.Time) error {
	if !match.OpenForBets(now) {
		return domain.ErrBettingClosed
	}
	if !match.HasTeam(team) {
		return domain.ErrInvalidSelection
	}
	if _, ok := match.OddsFor(team); !ok {
		return domain.ErrOddsUnavailable
	}
	if !domain.ValidStake(stake) {
		return domain.ErrInvalidStake
	}
	if user.Bankroll.LessThan(stake) {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// publishDebit emits the post-commit bankroll event for a placement. The
// fresh read picks up the committed balance; when it fails the pre-placement
// figure still tells subscribers the right story.
func (s *BettingService) publishDebit(ctx context.Context, bet domain.Bet, fallback decimal.Decimal) {
	newBankroll := fallback
	if u, err := s.users.GetByID(ctx, bet.UserID); err == nil {
		newBankroll = u.Bankroll
	} else {
		s.logger.WarnContext(ctx, "reload bankroll for event",
			slog.String("user_id", bet.UserID),
			slog.String("error", err.Error()),
		)
	}
	s.events.PublishBankroll(ctx, domain.BankrollEvent{
		UserID:      bet.UserID,
		NewBankroll: newBankroll,
		Reason:      string(domain.LedgerBetPlaced),
		MatchID:     bet.MatchID,
	})
}

func (s *BettingService) countRejection(err error) {
	if reason, ok := rejectionReason(err); ok {
		s.metrics.BetsRejected.WithLabelValues(reason).Inc()
	}
}

// rejectionReason maps a placement failure to its metric label. Infrastructure
// errors are not rejections and report false.
func rejectionReason(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrBettingClosed):
		return "betting_closed", true
	case errors.Is(err, domain.ErrInvalidSelection):
		return "invalid_selection", true
	case errors.Is(err, domain.ErrOddsUnavailable):
		return "odds_unavailable", true
	case errors.Is(err, domain.ErrInvalidStake):
		return "invalid_stake", true
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds", true
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", true
	default:
		return "", false
	}
}
