package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/platform/nrl"
	"github.com/jakeharveyy/tipengine/internal/platform/sportsbook"
)

// In-memory fakes for the feeds and stores the jobs drive. The store fakes
// mirror the postgres contracts the jobs lean on: upserts keyed on the natural
// key that never touch results or Completed rows, and sentinel errors. Tests
// run single-goroutine, so no locking.

// testNow is the fixed wall clock the job tests run at: a Wednesday in the
// middle of the 2026 season, between rounds.
var testNow = time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// feedErrorCounter returns a fresh unregistered counter for one test.
func feedErrorCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_errors_total"},
		[]string{"feed"},
	)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

// fakeDraw serves canned draw fixtures per round number and records which
// rounds were requested.
type fakeDraw struct {
	fixtures map[int][]nrl.Fixture
	errs     map[int]error
	requests []int
}

func newFakeDraw() *fakeDraw {
	return &fakeDraw{
		fixtures: make(map[int][]nrl.Fixture),
		errs:     make(map[int]error),
	}
}

func (f *fakeDraw) FetchRound(_ context.Context, round, _ int) ([]nrl.Fixture, error) {
	f.requests = append(f.requests, round)
	if err := f.errs[round]; err != nil {
		return nil, err
	}
	return f.fixtures[round], nil
}

var _ DrawFeed = (*fakeDraw)(nil)

// fakeBook serves canned bookmaker events.
type fakeBook struct {
	events   []sportsbook.Event
	err      error
	requests int
}

func (f *fakeBook) ListOdds(context.Context) ([]sportsbook.Event, error) {
	f.requests++
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

var _ OddsFeed = (*fakeBook)(nil)

type fakeRoundStore struct {
	rounds map[string]domain.Round
	seq    int
}

func newFakeRoundStore() *fakeRoundStore {
	return &fakeRoundStore{rounds: make(map[string]domain.Round)}
}

func (f *fakeRoundStore) add(r domain.Round) domain.Round {
	if r.ID == "" {
		f.seq++
		r.ID = fmt.Sprintf("r%d", f.seq)
	}
	f.rounds[r.ID] = r
	return r
}

func (f *fakeRoundStore) Upsert(_ context.Context, round domain.Round) (domain.Round, error) {
	for _, r := range f.rounds {
		if r.RoundNumber == round.RoundNumber && r.Year == round.Year {
			round.ID = r.ID
			round.Status = r.Status
			f.rounds[r.ID] = round
			return round, nil
		}
	}
	if round.Status == "" {
		round.Status = domain.RoundStatusUpcoming
	}
	return f.add(round), nil
}

func (f *fakeRoundStore) GetByID(_ context.Context, id string) (domain.Round, error) {
	r, ok := f.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeRoundStore) GetActive(ctx context.Context) (domain.Round, error) {
	active, _ := f.ListByStatus(ctx, domain.RoundStatusActive)
	if len(active) == 0 {
		return domain.Round{}, domain.ErrNotFound
	}
	return active[0], nil
}

func (f *fakeRoundStore) FirstUpcoming(ctx context.Context) (domain.Round, error) {
	upcoming, _ := f.ListByStatus(ctx, domain.RoundStatusUpcoming)
	if len(upcoming) == 0 {
		return domain.Round{}, domain.ErrNotFound
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartTime.Before(upcoming[j].StartTime) })
	return upcoming[0], nil
}

func (f *fakeRoundStore) GetByNumber(_ context.Context, roundNumber, year int) (domain.Round, error) {
	for _, r := range f.rounds {
		if r.RoundNumber == roundNumber && r.Year == year {
			return r, nil
		}
	}
	return domain.Round{}, domain.ErrNotFound
}

func (f *fakeRoundStore) List(_ context.Context, year int) ([]domain.Round, error) {
	var out []domain.Round
	for _, r := range f.rounds {
		if year == 0 || r.Year == year {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (f *fakeRoundStore) ListByStatus(_ context.Context, status domain.RoundStatus) ([]domain.Round, error) {
	var out []domain.Round
	for _, r := range f.rounds {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (f *fakeRoundStore) SetStatus(_ context.Context, id string, status domain.RoundStatus) error {
	r, ok := f.rounds[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	f.rounds[id] = r
	return nil
}

var _ domain.RoundStore = (*fakeRoundStore)(nil)

// statusWrite records one UpdateStatus call.
type statusWrite struct {
	matchID string
	status  domain.MatchStatus
}

type fakeMatchStore struct {
	matches      map[string]domain.Match
	seq          int
	statusWrites []statusWrite
	oddsWrites   int
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{matches: make(map[string]domain.Match)}
}

func (f *fakeMatchStore) add(m domain.Match) domain.Match {
	if m.ID == "" {
		f.seq++
		m.ID = fmt.Sprintf("m%d", f.seq)
	}
	f.matches[m.ID] = m
	return m
}

func (f *fakeMatchStore) byRef(ref string) (domain.Match, bool) {
	for _, m := range f.matches {
		if m.ExternalRef == ref {
			return m, true
		}
	}
	return domain.Match{}, false
}

// Upsert mirrors the postgres guard: an update refreshes fixture fields only,
// and a Completed row comes back unchanged.
func (f *fakeMatchStore) Upsert(_ context.Context, match domain.Match) (domain.Match, error) {
	for _, m := range f.matches {
		if m.ExternalRef == match.ExternalRef {
			if m.Status == domain.MatchStatusCompleted {
				return m, nil
			}
			m.RoundID = match.RoundID
			m.HomeTeam = match.HomeTeam
			m.AwayTeam = match.AwayTeam
			m.StartTime = match.StartTime
			m.Venue = match.Venue
			m.VenueCity = match.VenueCity
			f.matches[m.ID] = m
			return m, nil
		}
	}
	if match.Status == "" {
		match.Status = domain.MatchStatusScheduled
	}
	return f.add(match), nil
}

func (f *fakeMatchStore) GetByID(_ context.Context, id string) (domain.Match, error) {
	m, ok := f.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMatchStore) ListByRound(_ context.Context, roundID string) ([]domain.Match, error) {
	var out []domain.Match
	for _, m := range f.matches {
		if m.RoundID == roundID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeMatchStore) ListOpenForBets(ctx context.Context, roundID string, now time.Time) ([]domain.Match, error) {
	all, _ := f.ListByRound(ctx, roundID)
	var out []domain.Match
	for _, m := range all {
		if m.OpenForBets(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMatchStore) ListAwaitingResult(_ context.Context, now time.Time) ([]domain.Match, error) {
	var out []domain.Match
	for _, m := range f.matches {
		if m.Status == domain.MatchStatusLive ||
			(m.Status == domain.MatchStatusScheduled && !now.Before(m.StartTime)) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMatchStore) UpdateOdds(_ context.Context, id string, homeOdds, awayOdds decimal.Decimal) error {
	m, ok := f.matches[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	m.HomeOdds = &homeOdds
	m.AwayOdds = &awayOdds
	m.OddsUpdatedAt = &now
	f.matches[id] = m
	f.oddsWrites++
	return nil
}

func (f *fakeMatchStore) UpdateStatus(_ context.Context, id string, status domain.MatchStatus) error {
	m, ok := f.matches[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = status
	f.matches[id] = m
	f.statusWrites = append(f.statusWrites, statusWrite{matchID: id, status: status})
	return nil
}

var _ domain.MatchStore = (*fakeMatchStore)(nil)

// settleCall records one SettleMatch call.
type settleCall struct {
	matchID   string
	homeScore int
	awayScore int
}

type fakeSettler struct {
	calls []settleCall
	errs  map[string]error
}

func newFakeSettler() *fakeSettler {
	return &fakeSettler{errs: make(map[string]error)}
}

func (f *fakeSettler) SettleMatch(_ context.Context, matchID string, homeScore, awayScore int) (domain.SettlementSummary, error) {
	f.calls = append(f.calls, settleCall{matchID: matchID, homeScore: homeScore, awayScore: awayScore})
	if err := f.errs[matchID]; err != nil {
		return domain.SettlementSummary{}, err
	}
	winner := "Draw"
	switch {
	case homeScore > awayScore:
		winner = "Home"
	case awayScore > homeScore:
		winner = "Away"
	}
	return domain.SettlementSummary{MatchID: matchID, Winner: winner, Won: 1}, nil
}

var _ Settler = (*fakeSettler)(nil)

// fakeBus records published payloads per channel.
type fakeBus struct {
	published map[string][][]byte
	streams   map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		streams:   make(map[string][][]byte),
	}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

var _ domain.SignalBus = (*fakeBus)(nil)

type fakeOddsCache struct {
	odds map[string]domain.MatchOdds
	err  error
}

func newFakeOddsCache() *fakeOddsCache {
	return &fakeOddsCache{odds: make(map[string]domain.MatchOdds)}
}

func (f *fakeOddsCache) SetOdds(_ context.Context, matchID string, odds domain.MatchOdds) error {
	if f.err != nil {
		return f.err
	}
	f.odds[matchID] = odds
	return nil
}

func (f *fakeOddsCache) GetOdds(_ context.Context, matchID string) (domain.MatchOdds, error) {
	odds, ok := f.odds[matchID]
	if !ok {
		return domain.MatchOdds{}, domain.ErrNotFound
	}
	return odds, nil
}

func (f *fakeOddsCache) Invalidate(_ context.Context, matchID string) error {
	delete(f.odds, matchID)
	return nil
}

var _ domain.OddsCache = (*fakeOddsCache)(nil)
