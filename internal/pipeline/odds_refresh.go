package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/notify"
	"github.com/jakeharveyy/tipengine/internal/platform/nrl"
	"github.com/jakeharveyy/tipengine/internal/platform/sportsbook"
)

// OddsFeed supplies bookmaker head-to-head prices for upcoming events.
type OddsFeed interface {
	ListOdds(ctx context.Context) ([]sportsbook.Event, error)
}

// OddsRefresh reprices the open matches of the current round. The bookmaker
// feed is the preferred source; without one it falls back to the prices the
// draw feed embeds. Fresh prices go to the database (authoritative), the
// redis odds cache, and the odds event channel.
type OddsRefresh struct {
	book       OddsFeed // nil when the bookmaker feed is disabled
	draw       DrawFeed
	rounds     domain.RoundStore
	matches    domain.MatchStore
	cache      domain.OddsCache
	events     *notify.EventPublisher
	season     int
	feedErrors *prometheus.CounterVec
	logger     *slog.Logger
}

// NewOddsRefresh creates an OddsRefresh. book may be nil, in which case every
// refresh uses the draw feed's embedded prices.
func NewOddsRefresh(book OddsFeed, draw DrawFeed, rounds domain.RoundStore, matches domain.MatchStore, cache domain.OddsCache, events *notify.EventPublisher, season int, feedErrors *prometheus.CounterVec, logger *slog.Logger) *OddsRefresh {
	return &OddsRefresh{
		book:       book,
		draw:       draw,
		rounds:     rounds,
		matches:    matches,
		cache:      cache,
		events:     events,
		season:     season,
		feedErrors: feedErrors,
		logger:     logger.With(slog.String("job", "odds_refresh")),
	}
}

// Run executes one refresh pass over the current round's open matches.
func (s *OddsRefresh) Run(ctx context.Context, now time.Time) error {
	round, err := currentRound(ctx, s.rounds)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.DebugContext(ctx, "no round to price")
		return nil
	}
	if err != nil {
		return fmt.Errorf("odds refresh: current round: %w", err)
	}

	open, err := s.matches.ListOpenForBets(ctx, round.ID, now)
	if err != nil {
		return fmt.Errorf("odds refresh: list open matches: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	var updated int
	if s.book != nil {
		updated, err = s.refreshFromBook(ctx, open, now)
	} else {
		updated, err = s.refreshFromDraw(ctx, round, open, now)
	}
	if err != nil {
		return err
	}

	if updated > 0 {
		s.logger.InfoContext(ctx, "odds refreshed",
			slog.Int("round", round.RoundNumber),
			slog.Int("updated", updated),
			slog.Int("open_matches", len(open)),
		)
	}
	return nil
}

// refreshFromBook prices matches from the bookmaker feed, pairing events to
// matches by both team names plus kickoff proximity.
func (s *OddsRefresh) refreshFromBook(ctx context.Context, open []domain.Match, now time.Time) (int, error) {
	events, err := s.book.ListOdds(ctx)
	if err != nil {
		s.feedErrors.WithLabelValues("sportsbook").Inc()
		return 0, fmt.Errorf("odds refresh: %w", err)
	}

	updated := 0
	for _, m := range open {
		ev, ok := findEvent(events, m)
		if !ok {
			continue
		}
		applied, err := s.apply(ctx, m, *ev.HomeOdds, *ev.AwayOdds, now)
		if err != nil {
			s.logger.WarnContext(ctx, "apply odds failed",
				slog.String("match_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if applied {
			updated++
		}
	}
	return updated, nil
}

// refreshFromDraw prices matches from the odds embedded in the draw feed.
func (s *OddsRefresh) refreshFromDraw(ctx context.Context, round domain.Round, open []domain.Match, now time.Time) (int, error) {
	fixtures, err := s.draw.FetchRound(ctx, round.RoundNumber, s.season)
	if err != nil {
		s.feedErrors.WithLabelValues("nrl").Inc()
		return 0, fmt.Errorf("odds refresh: %w", err)
	}

	updated := 0
	for _, m := range open {
		f, ok := nrl.FindFixture(fixtures, m.HomeTeam, m.AwayTeam, m.StartTime)
		if !ok || f.HomeOdds == nil || f.AwayOdds == nil {
			continue
		}
		applied, err := s.apply(ctx, m, *f.HomeOdds, *f.AwayOdds, now)
		if err != nil {
			s.logger.WarnContext(ctx, "apply odds failed",
				slog.String("match_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if applied {
			updated++
		}
	}
	return updated, nil
}

// apply writes one fresh pair of prices. Unchanged prices are skipped so the
// odds channel only carries real moves. The database write is authoritative;
// a cache failure is logged and tolerated.
func (s *OddsRefresh) apply(ctx context.Context, m domain.Match, home, away decimal.Decimal, now time.Time) (bool, error) {
	if m.HomeOdds != nil && m.AwayOdds != nil && m.HomeOdds.Equal(home) && m.AwayOdds.Equal(away) {
		return false, nil
	}

	if err := s.matches.UpdateOdds(ctx, m.ID, home, away); err != nil {
		return false, err
	}

	if err := s.cache.SetOdds(ctx, m.ID, domain.MatchOdds{
		HomeOdds:  home,
		AwayOdds:  away,
		UpdatedAt: now,
	}); err != nil {
		s.logger.WarnContext(ctx, "prime odds cache failed",
			slog.String("match_id", m.ID),
			slog.String("error", err.Error()),
		)
	}

	s.events.PublishOdds(ctx, domain.OddsEvent{
		MatchID:  m.ID,
		HomeTeam: m.HomeTeam,
		AwayTeam: m.AwayTeam,
		HomeOdds: home,
		AwayOdds: away,
	})
	return true, nil
}

// eventWindow is how far a bookmaker event's start may drift from the stored
// kickoff before it is considered a different game.
const eventWindow = 12 * time.Hour

// findEvent locates the bookmaker event for a match by both team names and
// kickoff proximity. Bookmaker feeds use full club names, so both sides are
// normalized before comparing.
func findEvent(events []sportsbook.Event, m domain.Match) (sportsbook.Event, bool) {
	for _, ev := range events {
		if !strings.EqualFold(nrl.NormalizeTeamName(ev.HomeTeam), m.HomeTeam) ||
			!strings.EqualFold(nrl.NormalizeTeamName(ev.AwayTeam), m.AwayTeam) {
			continue
		}
		diff := ev.CommenceTime.Sub(m.StartTime)
		if diff < 0 {
			diff = -diff
		}
		if diff < eventWindow {
			return ev, true
		}
	}
	return sportsbook.Event{}, false
}

// currentRound resolves the round the jobs operate on: the active round, or
// the earliest upcoming one between rounds.
func currentRound(ctx context.Context, rounds domain.RoundStore) (domain.Round, error) {
	round, err := rounds.GetActive(ctx)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Round{}, err
	}
	return rounds.FirstUpcoming(ctx)
}
