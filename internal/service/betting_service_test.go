package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

func openMatch(e *env) domain.Match {
	return e.matches.add(domain.Match{
		RoundID:   "r1",
		HomeTeam:  "Broncos",
		AwayTeam:  "Storm",
		HomeOdds:  decPtr("1.90"),
		AwayOdds:  decPtr("2.10"),
		StartTime: time.Now().Add(24 * time.Hour),
		Status:    domain.MatchStatusScheduled,
	})
}

func TestPlaceBet(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	user := e.users.add(domain.User{Username: "sam", Email: "sam@example.com", Bankroll: dec("1000.00"), Active: true})
	match := openMatch(e)

	bet, err := e.betting.PlaceBet(ctx, user.ID, match.ID, "Broncos", dec("100.00"))
	if err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}

	if bet.Status != domain.BetStatusPending {
		t.Errorf("status = %q, want %q", bet.Status, domain.BetStatusPending)
	}
	if !bet.PotentialPayout.Equal(dec("190.00")) {
		t.Errorf("payout = %s, want 190.00", bet.PotentialPayout)
	}
	if !bet.OddsAtPlacement.Equal(dec("1.90")) {
		t.Errorf("odds snapshot = %s, want 1.90", bet.OddsAtPlacement)
	}

	after, _ := e.users.GetByID(ctx, user.ID)
	if !after.Bankroll.Equal(dec("900.00")) {
		t.Errorf("bankroll = %s, want 900.00", after.Bankroll)
	}

	events := e.bus.published[domain.ChannelBankroll]
	if len(events) != 1 {
		t.Fatalf("bankroll events = %d, want 1", len(events))
	}
	var ev domain.BankrollEvent
	if err := json.Unmarshal(events[0], &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Reason != string(domain.LedgerBetPlaced) {
		t.Errorf("event reason = %q, want %q", ev.Reason, domain.LedgerBetPlaced)
	}
	if !ev.NewBankroll.Equal(dec("900.00")) {
		t.Errorf("event bankroll = %s, want 900.00", ev.NewBankroll)
	}
}

// Each failing request below violates its own precondition and every later
// one, so the returned sentinel proves the checks run in order.
func TestPlaceBetPreconditionOrder(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	user := e.users.add(domain.User{Username: "sam", Email: "sam@example.com", Bankroll: dec("50.00"), Active: true})

	started := e.matches.add(domain.Match{
		RoundID:   "r1",
		HomeTeam:  "Broncos",
		AwayTeam:  "Storm",
		HomeOdds:  decPtr("1.90"),
		AwayOdds:  decPtr("2.10"),
		StartTime: time.Now().Add(-time.Hour),
		Status:    domain.MatchStatusScheduled,
	})
	unpriced := e.matches.add(domain.Match{
		RoundID:   "r1",
		HomeTeam:  "Broncos",
		AwayTeam:  "Storm",
		StartTime: time.Now().Add(24 * time.Hour),
		Status:    domain.MatchStatusScheduled,
	})
	open := openMatch(e)

	tests := []struct {
		name    string
		matchID string
		team    string
		stake   string
		want    error
	}{
		{"kickoff passed beats bad team", started.ID, "Raiders", "-5", domain.ErrBettingClosed},
		{"bad team beats bad stake", open.ID, "Raiders", "-5", domain.ErrInvalidSelection},
		{"missing odds beats bad stake", unpriced.ID, "Broncos", "-5", domain.ErrOddsUnavailable},
		{"bad stake beats poor funds", open.ID, "Broncos", "100.005", domain.ErrInvalidStake},
		{"funds checked last", open.ID, "Broncos", "100.00", domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.betting.PlaceBet(ctx, user.ID, tt.matchID, tt.team, dec(tt.stake))
			if !errors.Is(err, tt.want) {
				t.Errorf("PlaceBet() error = %v, want %v", err, tt.want)
			}
		})
	}

	// No failure may leave a trace.
	after, _ := e.users.GetByID(ctx, user.ID)
	if !after.Bankroll.Equal(dec("50.00")) {
		t.Errorf("bankroll after rejections = %s, want 50.00", after.Bankroll)
	}
	if len(e.bets.bets) != 0 {
		t.Errorf("bets after rejections = %d, want 0", len(e.bets.bets))
	}
	if len(e.bus.published[domain.ChannelBankroll]) != 0 {
		t.Errorf("events after rejections = %d, want 0", len(e.bus.published[domain.ChannelBankroll]))
	}
}

func TestPlaceBetUnknownIDs(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	user := e.users.add(domain.User{Username: "sam", Email: "sam@example.com", Bankroll: dec("1000.00"), Active: true})
	match := openMatch(e)

	if _, err := e.betting.PlaceBet(ctx, user.ID, "nope", "Broncos", dec("10.00")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown match error = %v, want ErrNotFound", err)
	}
	if _, err := e.betting.PlaceBet(ctx, "nope", match.ID, "Broncos", dec("10.00")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
}

func TestPlaceBetExactBankroll(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	user := e.users.add(domain.User{Username: "sam", Email: "sam@example.com", Bankroll: dec("100.00"), Active: true})
	match := openMatch(e)

	if _, err := e.betting.PlaceBet(ctx, user.ID, match.ID, "Storm", dec("100.00")); err != nil {
		t.Fatalf("PlaceBet() with stake == bankroll error = %v", err)
	}
	after, _ := e.users.GetByID(ctx, user.ID)
	if !after.Bankroll.IsZero() {
		t.Errorf("bankroll = %s, want 0", after.Bankroll)
	}
}
