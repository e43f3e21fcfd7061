package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/metrics"
	"github.com/jakeharveyy/tipengine/internal/notify"
)

// In-memory fakes for the domain store interfaces. They implement just the
// behavior the services rely on: sentinel errors, the placement debit, the
// settlement state machine, and the per-(user, round) bonus guard. Tests run
// single-goroutine, so no locking.

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

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

func testPublisher(bus *fakeBus) *notify.EventPublisher {
	return notify.NewEventPublisher(bus, nil, discardLogger())
}

type fakeUserStore struct {
	users   map[string]domain.User
	bonuses map[string]bool // userID + "/" + roundID
	seq     int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:   make(map[string]domain.User),
		bonuses: make(map[string]bool),
	}
}

func (f *fakeUserStore) add(u domain.User) domain.User {
	if u.ID == "" {
		f.seq++
		u.ID = fmt.Sprintf("u%d", f.seq)
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserStore) Create(_ context.Context, user domain.User, deposit decimal.Decimal) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.User{}, domain.ErrAlreadyExists
		}
	}
	user.Bankroll = deposit
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	return f.add(user), nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUserStore) ListActive(context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.users {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserStore) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	out, _ := f.ListActive(ctx)
	sort.Slice(out, func(i, j int) bool { return out[i].Bankroll.GreaterThan(out[j].Bankroll) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUserStore) ApplyRoundBonus(_ context.Context, userID, roundID string, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := f.users[userID]
	if !ok {
		return decimal.Decimal{}, domain.ErrNotFound
	}
	key := userID + "/" + roundID
	if f.bonuses[key] {
		return decimal.Decimal{}, domain.ErrBonusAlreadyApplied
	}
	f.bonuses[key] = true
	u.Bankroll = u.Bankroll.Add(amount)
	f.users[userID] = u
	return u.Bankroll, nil
}

var _ domain.UserStore = (*fakeUserStore)(nil)

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

type fakeMatchStore struct {
	matches map[string]domain.Match
	seq     int
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

func (f *fakeMatchStore) Upsert(_ context.Context, match domain.Match) (domain.Match, error) {
	for _, m := range f.matches {
		if m.ExternalRef == match.ExternalRef {
			if m.Status == domain.MatchStatusCompleted {
				return m, nil
			}
			match.ID = m.ID
			match.Status = m.Status
			f.matches[m.ID] = match
			return match, nil
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
	return nil
}

func (f *fakeMatchStore) UpdateStatus(_ context.Context, id string, status domain.MatchStatus) error {
	m, ok := f.matches[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = status
	f.matches[id] = m
	return nil
}

var _ domain.MatchStore = (*fakeMatchStore)(nil)

// fakeBetStore mirrors the contract of the postgres BetStore: Place debits
// the user and SettleMatch resolves pending bets, credits deltas, and
// finalizes the match.
type fakeBetStore struct {
	users   *fakeUserStore
	matches *fakeMatchStore
	bets    map[string]domain.Bet
	seq     int
}

func newFakeBetStore(users *fakeUserStore, matches *fakeMatchStore) *fakeBetStore {
	return &fakeBetStore{
		users:   users,
		matches: matches,
		bets:    make(map[string]domain.Bet),
	}
}

func (f *fakeBetStore) Place(_ context.Context, bet domain.Bet) (domain.Bet, error) {
	u, ok := f.users.users[bet.UserID]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	if u.Bankroll.LessThan(bet.Stake) {
		return domain.Bet{}, domain.ErrInsufficientFunds
	}
	u.Bankroll = u.Bankroll.Sub(bet.Stake)
	f.users.users[u.ID] = u

	f.seq++
	bet.ID = fmt.Sprintf("b%d", f.seq)
	bet.PlacedAt = time.Now().UTC()
	f.bets[bet.ID] = bet
	return bet, nil
}

func (f *fakeBetStore) SettleMatch(_ context.Context, matchID string, result domain.MatchResult) (domain.SettlementSummary, error) {
	match, ok := f.matches.matches[matchID]
	if !ok {
		return domain.SettlementSummary{}, domain.ErrNotFound
	}
	if match.Status == domain.MatchStatusCompleted {
		return domain.SettlementSummary{}, domain.ErrAlreadySettled
	}

	summary := domain.SettlementSummary{
		MatchID:   matchID,
		Winner:    result.Winner,
		TotalPaid: decimal.Zero,
		SettledAt: time.Now().UTC(),
	}

	var pending []domain.Bet
	for _, b := range f.bets {
		if b.MatchID == matchID && b.Status == domain.BetStatusPending {
			pending = append(pending, b)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].UserID < pending[j].UserID })

	for _, b := range pending {
		u, ok := f.users.users[b.UserID]
		if !ok {
			summary.Skipped++
			summary.SkippedBets = append(summary.SkippedBets, b.ID)
			continue
		}
		res := domain.ResolveBet(b, result.Winner)
		u.Bankroll = u.Bankroll.Add(res.Delta)
		f.users.users[u.ID] = u

		now := summary.SettledAt
		b.Status = res.Status
		b.SettledAt = &now
		f.bets[b.ID] = b

		switch res.Status {
		case domain.BetStatusWon:
			summary.Won++
		case domain.BetStatusLost:
			summary.Lost++
		case domain.BetStatusVoid:
			summary.Void++
		}
		summary.TotalPaid = summary.TotalPaid.Add(res.Delta)
		summary.Events = append(summary.Events, domain.BankrollEvent{
			UserID:      b.UserID,
			NewBankroll: u.Bankroll,
			Reason:      string(res.Kind),
			MatchID:     matchID,
		})
	}

	match.HomeScore = &result.HomeScore
	match.AwayScore = &result.AwayScore
	match.Winner = &result.Winner
	match.Status = domain.MatchStatusCompleted
	f.matches.matches[matchID] = match

	return summary, nil
}

func (f *fakeBetStore) GetByID(_ context.Context, id string) (domain.Bet, error) {
	b, ok := f.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBetStore) ListByUser(_ context.Context, userID string, statuses []domain.BetStatus) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range f.bets {
		if b.UserID != userID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if b.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBetStore) HasPending(_ context.Context, userID, matchID string) (bool, error) {
	for _, b := range f.bets {
		if b.UserID == userID && b.MatchID == matchID && b.Status == domain.BetStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBetStore) ListSettledBetween(_ context.Context, from, to time.Time, opts domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range f.bets {
		if b.SettledAt == nil {
			continue
		}
		if b.SettledAt.Before(from) || !b.SettledAt.Before(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettledAt.Before(*out[j].SettledAt) })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

var _ domain.BetStore = (*fakeBetStore)(nil)

type fakeLedgerStore struct {
	entries map[string][]domain.LedgerEntry
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{entries: make(map[string][]domain.LedgerEntry)}
}

func (f *fakeLedgerStore) History(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	return append([]domain.LedgerEntry(nil), f.entries[userID]...), nil
}

func (f *fakeLedgerStore) ListCreatedBetween(_ context.Context, from, to time.Time, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, entries := range f.entries {
		for _, e := range entries {
			if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

var _ domain.LedgerStore = (*fakeLedgerStore)(nil)

type fakePredictionStore struct {
	predictions map[string]domain.Prediction // by match ID
	seq         int
}

func newFakePredictionStore() *fakePredictionStore {
	return &fakePredictionStore{predictions: make(map[string]domain.Prediction)}
}

func (f *fakePredictionStore) Upsert(_ context.Context, p domain.Prediction) (domain.Prediction, error) {
	if p.ID == "" {
		f.seq++
		p.ID = fmt.Sprintf("p%d", f.seq)
	}
	p.CreatedAt = time.Now().UTC()
	f.predictions[p.MatchID] = p
	return p, nil
}

func (f *fakePredictionStore) GetByMatch(_ context.Context, matchID string) (domain.Prediction, error) {
	p, ok := f.predictions[matchID]
	if !ok {
		return domain.Prediction{}, domain.ErrNotFound
	}
	return p, nil
}

var _ domain.PredictionStore = (*fakePredictionStore)(nil)

// env bundles one fully wired set of fakes and services.
type env struct {
	users       *fakeUserStore
	rounds      *fakeRoundStore
	matches     *fakeMatchStore
	bets        *fakeBetStore
	ledger      *fakeLedgerStore
	predictions *fakePredictionStore
	bus         *fakeBus

	betting    *BettingService
	settlement *SettlementService
	accounts   *AccountService
	roundsSvc  *RoundService
}

func newEnv() *env {
	users := newFakeUserStore()
	rounds := newFakeRoundStore()
	matches := newFakeMatchStore()
	bets := newFakeBetStore(users, matches)
	ledger := newFakeLedgerStore()
	predictions := newFakePredictionStore()
	bus := newFakeBus()

	logger := discardLogger()
	publisher := testPublisher(bus)
	m := metrics.New()

	betting := NewBettingService(bets, matches, users, publisher, m, logger)
	settlement := NewSettlementService(bets, matches, publisher, nil, m, logger)
	accounts := NewAccountService(users, bets, ledger, rounds, publisher, logger)
	roundsSvc := NewRoundService(rounds, users, publisher, logger)

	return &env{
		users:       users,
		rounds:      rounds,
		matches:     matches,
		bets:        bets,
		ledger:      ledger,
		predictions: predictions,
		bus:         bus,

		betting:    betting,
		settlement: settlement,
		accounts:   accounts,
		roundsSvc:  roundsSvc,
	}
}
