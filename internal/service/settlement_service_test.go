package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// The canonical lifecycle: 1000.00 bankroll, 100.00 on the home side at 1.90,
// home wins 24-12. The bankroll must land on 1090.00 through exactly one
// debit and one credit.
func TestSettleMatchLifecycle(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	user := e.users.add(domain.User{Username: "sam", Email: "sam@example.com", Bankroll: dec("1000.00"), Active: true})
	match := openMatch(e)

	bet, err := e.betting.PlaceBet(ctx, user.ID, match.ID, "Broncos", dec("100.00"))
	if err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}

	summary, err := e.settlement.SettleMatch(ctx, match.ID, 24, 12)
	if err != nil {
		t.Fatalf("SettleMatch() error = %v", err)
	}

	if summary.Winner != "Broncos" {
		t.Errorf("winner = %q, want Broncos", summary.Winner)
	}
	if summary.Won != 1 || summary.Lost != 0 || summary.Void != 0 || summary.Skipped != 0 {
		t.Errorf("counts = %d/%d/%d/%d, want 1/0/0/0",
			summary.Won, summary.Lost, summary.Void, summary.Skipped)
	}
	if !summary.TotalPaid.Equal(dec("190.00")) {
		t.Errorf("total paid = %s, want 190.00", summary.TotalPaid)
	}

	after, _ := e.users.GetByID(ctx, user.ID)
	if !after.Bankroll.Equal(dec("1090.00")) {
		t.Errorf("bankroll = %s, want 1090.00", after.Bankroll)
	}

	settled, _ := e.bets.GetByID(ctx, bet.ID)
	if settled.Status != domain.BetStatusWon {
		t.Errorf("bet status = %q, want %q", settled.Status, domain.BetStatusWon)
	}
	if settled.SettledAt == nil {
		t.Error("bet settled_at not set")
	}

	done, _ := e.matches.GetByID(ctx, match.ID)
	if done.Status != domain.MatchStatusCompleted {
		t.Errorf("match status = %q, want %q", done.Status, domain.MatchStatusCompleted)
	}
	if done.Winner == nil || *done.Winner != "Broncos" {
		t.Errorf("match winner = %v, want Broncos", done.Winner)
	}
}

func TestSettleMatchTwiceIsRejected(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	user := e.users.add(domain.User{Username: "sam", Email: "sam@example.com", Bankroll: dec("1000.00"), Active: true})
	match := openMatch(e)

	if _, err := e.betting.PlaceBet(ctx, user.ID, match.ID, "Broncos", dec("100.00")); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	if _, err := e.settlement.SettleMatch(ctx, match.ID, 24, 12); err != nil {
		t.Fatalf("first SettleMatch() error = %v", err)
	}

	before, _ := e.users.GetByID(ctx, user.ID)
	resultEvents := len(e.bus.published[domain.ChannelResults])

	_, err := e.settlement.SettleMatch(ctx, match.ID, 24, 12)
	if !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("second SettleMatch() error = %v, want ErrAlreadySettled", err)
	}

	after, _ := e.users.GetByID(ctx, user.ID)
	if !after.Bankroll.Equal(before.Bankroll) {
		t.Errorf("bankroll moved on resettle: %s -> %s", before.Bankroll, after.Bankroll)
	}
	if got := len(e.bus.published[domain.ChannelResults]); got != resultEvents {
		t.Errorf("result events = %d, want %d", got, resultEvents)
	}
}

func TestSettleMatchOutcomes(t *testing.T) {
	tests := []struct {
		name                 string
		homeScore, awayScore int
		wantStatus           domain.BetStatus
		wantBankroll         string // after 100.00 stake on Broncos from 1000.00
	}{
		{"win pays stake times odds", 24, 12, domain.BetStatusWon, "1090.00"},
		{"loss keeps the stake gone", 12, 24, domain.BetStatusLost, "900.00"},
		{"draw refunds the stake", 18, 18, domain.BetStatusVoid, "1000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			ctx := context.Background()
			user := e.users.add(domain.User{Username: "sam", Email: "sam@example.com", Bankroll: dec("1000.00"), Active: true})
			match := openMatch(e)

			bet, err := e.betting.PlaceBet(ctx, user.ID, match.ID, "Broncos", dec("100.00"))
			if err != nil {
				t.Fatalf("PlaceBet() error = %v", err)
			}
			if _, err := e.settlement.SettleMatch(ctx, match.ID, tt.homeScore, tt.awayScore); err != nil {
				t.Fatalf("SettleMatch() error = %v", err)
			}

			settled, _ := e.bets.GetByID(ctx, bet.ID)
			if settled.Status != tt.wantStatus {
				t.Errorf("bet status = %q, want %q", settled.Status, tt.wantStatus)
			}
			after, _ := e.users.GetByID(ctx, user.ID)
			if !after.Bankroll.Equal(dec(tt.wantBankroll)) {
				t.Errorf("bankroll = %s, want %s", after.Bankroll, tt.wantBankroll)
			}
		})
	}
}

func TestSettleMatchFansOutEvents(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	winner := e.users.add(domain.User{Username: "winner", Email: "w@example.com", Bankroll: dec("1000.00"), Active: true})
	loser := e.users.add(domain.User{Username: "loser", Email: "l@example.com", Bankroll: dec("1000.00"), Active: true})
	match := openMatch(e)

	if _, err := e.betting.PlaceBet(ctx, winner.ID, match.ID, "Broncos", dec("100.00")); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	if _, err := e.betting.PlaceBet(ctx, loser.ID, match.ID, "Storm", dec("50.00")); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	placements := len(e.bus.published[domain.ChannelBankroll])

	summary, err := e.settlement.SettleMatch(ctx, match.ID, 24, 12)
	if err != nil {
		t.Fatalf("SettleMatch() error = %v", err)
	}
	if summary.Won != 1 || summary.Lost != 1 {
		t.Fatalf("counts = %d won %d lost, want 1/1", summary.Won, summary.Lost)
	}

	bankrollEvents := e.bus.published[domain.ChannelBankroll][placements:]
	if len(bankrollEvents) != 2 {
		t.Fatalf("settlement bankroll events = %d, want 2", len(bankrollEvents))
	}
	reasons := make(map[string]domain.BankrollEvent)
	for _, raw := range bankrollEvents {
		var ev domain.BankrollEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal bankroll event: %v", err)
		}
		reasons[ev.Reason] = ev
	}
	win, ok := reasons[string(domain.LedgerBetWon)]
	if !ok {
		t.Fatal("no Bet Win event published")
	}
	if win.UserID != winner.ID || !win.NewBankroll.Equal(dec("1090.00")) {
		t.Errorf("win event = %+v, want user %s at 1090.00", win, winner.ID)
	}
	loss, ok := reasons[string(domain.LedgerBetLost)]
	if !ok {
		t.Fatal("no Bet Loss event published")
	}
	if loss.UserID != loser.ID || !loss.NewBankroll.Equal(dec("950.00")) {
		t.Errorf("loss event = %+v, want user %s at 950.00", loss, loser.ID)
	}

	results := e.bus.published[domain.ChannelResults]
	if len(results) != 1 {
		t.Fatalf("result events = %d, want 1", len(results))
	}
	var res domain.ResultEvent
	if err := json.Unmarshal(results[0], &res); err != nil {
		t.Fatalf("unmarshal result event: %v", err)
	}
	if res.Winner != "Broncos" || res.HomeScore != 24 || res.AwayScore != 12 || res.Resolved != 2 {
		t.Errorf("result event = %+v, want Broncos 24-12 resolved 2", res)
	}
}

func TestSettleMatchUnknownMatch(t *testing.T) {
	e := newEnv()
	if _, err := e.settlement.SettleMatch(context.Background(), "nope", 1, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SettleMatch() error = %v, want ErrNotFound", err)
	}
}
