package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/platform/nrl"
)

// Settler resolves a finished match. Implemented by the settlement service.
type Settler interface {
	SettleMatch(ctx context.Context, matchID string, homeScore, awayScore int) (domain.SettlementSummary, error)
}

// ResultsPoll watches matches that are live or past kickoff and routes their
// feed state into the system: a finished fixture with both scores triggers
// settlement, anything else at most updates the match status. Settlement is
// the only path that completes a match.
type ResultsPoll struct {
	feed       DrawFeed
	rounds     domain.RoundStore
	matches    domain.MatchStore
	settler    Settler
	feedErrors *prometheus.CounterVec
	logger     *slog.Logger
}

// NewResultsPoll creates a ResultsPoll.
func NewResultsPoll(feed DrawFeed, rounds domain.RoundStore, matches domain.MatchStore, settler Settler, feedErrors *prometheus.CounterVec, logger *slog.Logger) *ResultsPoll {
	return &ResultsPoll{
		feed:       feed,
		rounds:     rounds,
		matches:    matches,
		settler:    settler,
		feedErrors: feedErrors,
		logger:     logger.With(slog.String("job", "results_poll")),
	}
}

// Run executes one poll pass. Matches awaiting a result are grouped by round
// so each round's draw page is fetched once.
func (s *ResultsPoll) Run(ctx context.Context, now time.Time) error {
	awaiting, err := s.matches.ListAwaitingResult(ctx, now)
	if err != nil {
		return fmt.Errorf("results poll: list matches: %w", err)
	}
	if len(awaiting) == 0 {
		return nil
	}

	// Group by round, preserving kickoff order.
	var roundIDs []string
	byRound := make(map[string][]domain.Match)
	for _, m := range awaiting {
		if _, seen := byRound[m.RoundID]; !seen {
			roundIDs = append(roundIDs, m.RoundID)
		}
		byRound[m.RoundID] = append(byRound[m.RoundID], m)
	}

	for _, roundID := range roundIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		round, err := s.rounds.GetByID(ctx, roundID)
		if err != nil {
			s.logger.WarnContext(ctx, "round lookup failed",
				slog.String("round_id", roundID),
				slog.String("error", err.Error()),
			)
			continue
		}

		fixtures, err := s.feed.FetchRound(ctx, round.RoundNumber, round.Year)
		if err != nil {
			s.feedErrors.WithLabelValues("nrl").Inc()
			s.logger.WarnContext(ctx, "fetch round failed",
				slog.Int("round", round.RoundNumber),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, m := range byRound[roundID] {
			s.applyResult(ctx, m, fixtures)
		}
	}
	return nil
}

// applyResult routes one match's feed state. Unknown states and missing
// fixtures change nothing; a later poll retries.
func (s *ResultsPoll) applyResult(ctx context.Context, m domain.Match, fixtures []nrl.Fixture) {
	f, ok := nrl.FindFixture(fixtures, m.HomeTeam, m.AwayTeam, m.StartTime)
	if !ok {
		s.logger.DebugContext(ctx, "no fixture found for match",
			slog.String("match_id", m.ID),
			slog.String("home_team", m.HomeTeam),
			slog.String("away_team", m.AwayTeam),
		)
		return
	}

	switch f.Status {
	case nrl.FeedFinished:
		// ToFixture demotes a finished fixture missing a score to Unknown, so
		// both scores are present here.
		summary, err := s.settler.SettleMatch(ctx, m.ID, *f.HomeScore, *f.AwayScore)
		switch {
		case errors.Is(err, domain.ErrAlreadySettled):
			// Another instance or the admin endpoint got there first.
		case err != nil:
			s.logger.ErrorContext(ctx, "settle from feed failed",
				slog.String("match_id", m.ID),
				slog.String("error", err.Error()),
			)
		default:
			s.logger.InfoContext(ctx, "match settled from feed",
				slog.String("match_id", m.ID),
				slog.String("winner", summary.Winner),
				slog.Int("resolved", summary.Resolved()),
			)
		}

	case nrl.FeedLive, nrl.FeedScheduled, nrl.FeedPostponed, nrl.FeedCancelled:
		status := feedToMatchStatus(f.Status)
		if m.Status == status {
			return
		}
		if err := s.matches.UpdateStatus(ctx, m.ID, status); err != nil {
			s.logger.WarnContext(ctx, "update match status failed",
				slog.String("match_id", m.ID),
				slog.String("status", string(status)),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.InfoContext(ctx, "match status updated",
			slog.String("match_id", m.ID),
			slog.String("from", string(m.Status)),
			slog.String("to", string(status)),
		)
	}
}

// feedToMatchStatus maps the non-terminal feed states onto match statuses.
func feedToMatchStatus(fs nrl.FeedStatus) domain.MatchStatus {
	switch fs {
	case nrl.FeedLive:
		return domain.MatchStatusLive
	case nrl.FeedPostponed:
		return domain.MatchStatusPostponed
	case nrl.FeedCancelled:
		return domain.MatchStatusCancelled
	default:
		return domain.MatchStatusScheduled
	}
}
