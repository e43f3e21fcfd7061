package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// BotConfig tunes the automated bettor.
type BotConfig struct {
	Username string
	// MaxBankrollFraction is the hard stake ceiling as a fraction of the
	// current bankroll, applied after the model's own sizing.
	MaxBankrollFraction decimal.Decimal
	// MinStake is the floor below which a recommendation is not worth acting
	// on.
	MinStake decimal.Decimal
}

// BotService turns stored recommendations into real bets through the same
// validation path humans use. It never sizes a stake itself; the model's
// stake fraction is taken as-is and only capped.
type BotService struct {
	accounts    *AccountService
	betting     *BettingService
	bets        domain.BetStore
	matches     domain.MatchStore
	rounds      domain.RoundStore
	predictions domain.PredictionStore
	cfg         BotConfig
	logger      *slog.Logger
}

// NewBotService creates a BotService.
func NewBotService(
	accounts *AccountService,
	betting *BettingService,
	bets domain.BetStore,
	matches domain.MatchStore,
	rounds domain.RoundStore,
	predictions domain.PredictionStore,
	cfg BotConfig,
	logger *slog.Logger,
) *BotService {
	return &BotService{
		accounts:    accounts,
		betting:     betting,
		bets:        bets,
		matches:     matches,
		rounds:      rounds,
		predictions: predictions,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "bot")),
	}
}

// Run places one bet per recommended open match of the target round, skipping
// matches the bot already has a pending bet on. Returns the number of bets
// placed.
func (s *BotService) Run(ctx context.Context, now time.Time) (int, error) {
	bot, err := s.accounts.EnsureBotUser(ctx, s.cfg.Username)
	if err != nil {
		return 0, fmt.Errorf("bot: ensure user: %w", err)
	}

	round, err := targetRound(ctx, s.rounds)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.DebugContext(ctx, "no round to bet on")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("bot: target round: %w", err)
	}

	matches, err := s.matches.ListOpenForBets(ctx, round.ID, now)
	if err != nil {
		return 0, fmt.Errorf("bot: list matches for round %d: %w", round.RoundNumber, err)
	}

	placed := 0
	for _, match := range matches {
		err := s.betMatch(ctx, bot.ID, match)
		switch {
		case errors.Is(err, errSkipMatch):
			continue
		case err != nil:
			s.logger.WarnContext(ctx, "bot bet failed",
				slog.String("match_id", match.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		placed++
	}

	if placed > 0 {
		s.logger.InfoContext(ctx, "bot run finished",
			slog.Int("round", round.RoundNumber),
			slog.Int("placed", placed),
		)
	}
	return placed, nil
}

// errSkipMatch marks a match the bot passes on without anything being wrong.
var errSkipMatch = errors.New("skip")

// betMatch sizes and places one bet. The bankroll is re-read per match so
// each stake is a fraction of what is actually left.
func (s *BotService) betMatch(ctx context.Context, botID string, match domain.Match) error {
	pred, err := s.predictions.GetByMatch(ctx, match.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return errSkipMatch
	}
	if err != nil {
		return fmt.Errorf("load prediction: %w", err)
	}
	if pred.RecommendedTeam == nil {
		return errSkipMatch
	}

	pending, err := s.bets.HasPending(ctx, botID, match.ID)
	if err != nil {
		return fmt.Errorf("check pending: %w", err)
	}
	if pending {
		return errSkipMatch
	}

	bot, err := s.accounts.Get(ctx, botID)
	if err != nil {
		return fmt.Errorf("reload bankroll: %w", err)
	}

	stake := pred.StakeFraction.Mul(bot.Bankroll)
	if ceiling := bot.Bankroll.Mul(s.cfg.MaxBankrollFraction); stake.GreaterThan(ceiling) {
		stake = ceiling
	}
	stake = stake.Round(2)
	if stake.LessThanOrEqual(s.cfg.MinStake) {
		return errSkipMatch
	}

	bet, err := s.betting.PlaceBet(ctx, botID, match.ID, *pred.RecommendedTeam, stake)
	if err != nil {
		return fmt.Errorf("place: %w", err)
	}

	s.logger.InfoContext(ctx, "bot bet placed",
		slog.String("bet_id", bet.ID),
		slog.String("match_id", match.ID),
		slog.String("team", bet.TeamSelected),
		slog.String("stake", stake.StringFixed(2)),
		slog.String("confidence", pred.Confidence.StringFixed(4)),
	)
	return nil
}
