// Package pipeline runs the background jobs: fixture sync, odds refresh,
// results polling, round ticking, prediction refresh, the bot, and the daily
// ledger export. One orchestrator drives them all on tickers, with redis
// locks keeping multiple instances from running the same job at once.
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

// DrawFeed supplies one round of the season draw.
type DrawFeed interface {
	FetchRound(ctx context.Context, round, season int) ([]nrl.Fixture, error)
}

// roundLookahead is how many not-yet-finished rounds each sync keeps fresh:
// the current one plus the next.
const roundLookahead = 1

// maxRoundsPerSync bounds one run's crawl. It is high enough to walk a whole
// season forward when bootstrapping an empty database mid-season.
const maxRoundsPerSync = 32

// FixtureSync keeps rounds and matches aligned with the season draw. It
// crawls forward from the current round, refreshing fixture data without ever
// touching odds, results, or settled matches.
type FixtureSync struct {
	feed       DrawFeed
	rounds     domain.RoundStore
	matches    domain.MatchStore
	season     int
	feedErrors *prometheus.CounterVec
	logger     *slog.Logger
}

// NewFixtureSync creates a FixtureSync for the given season.
func NewFixtureSync(feed DrawFeed, rounds domain.RoundStore, matches domain.MatchStore, season int, feedErrors *prometheus.CounterVec, logger *slog.Logger) *FixtureSync {
	return &FixtureSync{
		feed:       feed,
		rounds:     rounds,
		matches:    matches,
		season:     season,
		feedErrors: feedErrors,
		logger:     logger.With(slog.String("job", "fixture_sync")),
	}
}

// Run executes one sync pass. Starting at the current round it fetches draw
// rounds until it has refreshed the lookahead window, skipping past the end
// of the season when the feed returns no fixtures.
func (s *FixtureSync) Run(ctx context.Context, now time.Time) error {
	start, err := s.startRound(ctx)
	if err != nil {
		return fmt.Errorf("fixture sync: pick start round: %w", err)
	}

	synced := 0
	ahead := 0
	for number := start; number < start+maxRoundsPerSync && ahead <= roundLookahead; number++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		fixtures, err := s.feed.FetchRound(ctx, number, s.season)
		if err != nil {
			s.feedErrors.WithLabelValues("nrl").Inc()
			return fmt.Errorf("fixture sync: round %d: %w", number, err)
		}
		if len(fixtures) == 0 {
			// Past the end of the season.
			break
		}

		round, ok, err := s.syncRound(ctx, number, fixtures, now)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		synced++
		if round.EndTime.After(now) {
			ahead++
		}
	}

	if synced > 0 {
		s.logger.InfoContext(ctx, "fixture sync complete",
			slog.Int("rounds", synced),
			slog.Int("start_round", start),
		)
	}
	return nil
}

// startRound picks where the crawl begins: the active round, else the first
// upcoming one, else just past the last stored round (round 1 on a fresh
// database).
func (s *FixtureSync) startRound(ctx context.Context) (int, error) {
	round, err := s.rounds.GetActive(ctx)
	if err == nil {
		return round.RoundNumber, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	round, err = s.rounds.FirstUpcoming(ctx)
	if err == nil {
		return round.RoundNumber, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	stored, err := s.rounds.List(ctx, s.season)
	if err != nil {
		return 0, err
	}
	last := 0
	for _, r := range stored {
		if r.RoundNumber > last {
			last = r.RoundNumber
		}
	}
	return last + 1, nil
}

// syncRound upserts one round and its matches. The round window is estimated
// from the kickoffs: three days before the first game to one day after the
// last. Returns false when the feed carries no usable kickoff times.
func (s *FixtureSync) syncRound(ctx context.Context, number int, fixtures []nrl.Fixture, now time.Time) (domain.Round, bool, error) {
	var first, last time.Time
	for _, f := range fixtures {
		if f.KickOff.IsZero() {
			continue
		}
		if first.IsZero() || f.KickOff.Before(first) {
			first = f.KickOff
		}
		if f.KickOff.After(last) {
			last = f.KickOff
		}
	}
	if first.IsZero() {
		s.logger.WarnContext(ctx, "round has no kickoff times, skipping",
			slog.Int("round", number),
		)
		return domain.Round{}, false, nil
	}

	start := startOfDay(first).AddDate(0, 0, -3)
	end := endOfDay(last).AddDate(0, 0, 1)

	// A round whose window has already closed is stored Completed so the round
	// tick never activates it (and never pays its bonus) retroactively.
	status := domain.RoundStatusUpcoming
	if end.Before(now) {
		status = domain.RoundStatusCompleted
	}

	round, err := s.rounds.Upsert(ctx, domain.Round{
		RoundNumber: number,
		Year:        s.season,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
	})
	if err != nil {
		return domain.Round{}, false, fmt.Errorf("fixture sync: upsert round %d: %w", number, err)
	}

	for _, f := range fixtures {
		if f.KickOff.IsZero() {
			s.logger.WarnContext(ctx, "fixture has no kickoff, skipping",
				slog.Int("round", number),
				slog.String("home_team", f.HomeTeam),
				slog.String("away_team", f.AwayTeam),
			)
			continue
		}

		_, err := s.matches.Upsert(ctx, domain.Match{
			RoundID:     round.ID,
			HomeTeam:    f.HomeTeam,
			AwayTeam:    f.AwayTeam,
			StartTime:   f.KickOff,
			Venue:       f.Venue,
			VenueCity:   f.VenueCity,
			ExternalRef: f.ExternalRef,
			Status:      insertStatus(f.Status),
		})
		if err != nil {
			return domain.Round{}, false, fmt.Errorf("fixture sync: upsert match %s v %s: %w", f.HomeTeam, f.AwayTeam, err)
		}
	}

	return round, true, nil
}

// insertStatus maps a feed status to the status a NEW match row gets. It is
// used only on insert; transitions on stored matches belong to the results
// job. A finished fixture still comes in Scheduled, because the settlement
// transaction is the only writer of Completed and the results job will route
// it there.
func insertStatus(fs nrl.FeedStatus) domain.MatchStatus {
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

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
}
