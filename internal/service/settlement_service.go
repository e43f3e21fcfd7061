package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/metrics"
	"github.com/jakeharveyy/tipengine/internal/notify"
)

// SettlementService resolves every pending bet on a finished match. The money
// work happens inside one store transaction; this layer derives the winner,
// times the run, and fans out events after commit.
type SettlementService struct {
	bets     domain.BetStore
	matches  domain.MatchStore
	events   *notify.EventPublisher
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(
	bets domain.BetStore,
	matches domain.MatchStore,
	events *notify.EventPublisher,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		bets:     bets,
		matches:  matches,
		events:   events,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// SettleMatch resolves the match with the given final score. Settling an
// already Completed match returns domain.ErrAlreadySettled and changes
// nothing, so callers may retry freely.
func (s *SettlementService) SettleMatch(ctx context.Context, matchID string, homeScore, awayScore int) (domain.SettlementSummary, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("settle: load match %s: %w", matchID, err)
	}

	result := domain.MatchResult{
		HomeScore: homeScore,
		AwayScore: awayScore,
		Winner:    domain.WinnerOf(match, homeScore, awayScore),
	}

	start := time.Now()
	summary, err := s.bets.SettleMatch(ctx, matchID, result)
	if err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("settle: match %s: %w", matchID, err)
	}
	s.metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	s.metrics.Settlements.Inc()
	s.metrics.BetsSettled.WithLabelValues("won").Add(float64(summary.Won))
	s.metrics.BetsSettled.WithLabelValues("lost").Add(float64(summary.Lost))
	s.metrics.BetsSettled.WithLabelValues("void").Add(float64(summary.Void))

	s.logger.InfoContext(ctx, "match settled",
		slog.String("match_id", matchID),
		slog.String("winner", summary.Winner),
		slog.Int("won", summary.Won),
		slog.Int("lost", summary.Lost),
		slog.Int("void", summary.Void),
		slog.Int("skipped", summary.Skipped),
		slog.String("total_paid", summary.TotalPaid.StringFixed(2)),
	)

	// Commit is behind us; everything below is fan-out and must not fail the
	// settlement.
	for _, ev := range summary.Events {
		s.events.PublishBankroll(ctx, ev)
	}
	s.events.PublishResult(ctx, domain.ResultEvent{
		MatchID:   matchID,
		Winner:    summary.Winner,
		HomeScore: homeScore,
		AwayScore: awayScore,
		Resolved:  summary.Resolved(),
	})

	if s.notifier != nil {
		title := fmt.Sprintf("Settled: %s vs %s", match.HomeTeam, match.AwayTeam)
		body := fmt.Sprintf("%s %d - %d %s. Winner: %s. Bets won %d, lost %d, void %d, paid out %s.",
			match.HomeTeam, homeScore, awayScore, match.AwayTeam,
			summary.Winner, summary.Won, summary.Lost, summary.Void,
			summary.TotalPaid.StringFixed(2),
		)
		if err := s.notifier.Notify(ctx, "settlement", title, body); err != nil {
			s.logger.WarnContext(ctx, "settlement notification",
				slog.String("match_id", matchID),
				slog.String("error", err.Error()),
			)
		}
	}

	return summary, nil
}
