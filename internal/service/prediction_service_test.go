package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// stubModel predicts only the matches it was primed with.
type stubModel struct {
	preds map[string]domain.Prediction // by match ID
	err   error
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Predict(_ context.Context, m domain.Match) (domain.Prediction, bool, error) {
	if s.err != nil {
		return domain.Prediction{}, false, s.err
	}
	p, ok := s.preds[m.ID]
	return p, ok, nil
}

func newPredictionService(e *env, model *stubModel) *PredictionService {
	return NewPredictionService(e.predictions, e.matches, e.rounds, model, discardLogger())
}

func TestRefreshStoresPredictions(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	now := time.Now().UTC()

	round := e.rounds.add(domain.Round{
		RoundNumber: 1, Year: 2026,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(6 * 24 * time.Hour),
		Status: domain.RoundStatusActive,
	})
	priced := e.matches.add(domain.Match{
		RoundID: round.ID, HomeTeam: "Broncos", AwayTeam: "Storm",
		HomeOdds: decPtr("1.80"), AwayOdds: decPtr("2.20"),
		StartTime: now.Add(24 * time.Hour), Status: domain.MatchStatusScheduled,
	})
	unpriced := e.matches.add(domain.Match{
		RoundID: round.ID, HomeTeam: "Raiders", AwayTeam: "Sharks",
		StartTime: now.Add(24 * time.Hour), Status: domain.MatchStatusScheduled,
	})

	model := &stubModel{preds: map[string]domain.Prediction{
		priced.ID: {
			MatchID:         priced.ID,
			Model:           "stub",
			PredictedWinner: "Broncos",
			Confidence:      dec("0.58"),
			ConfidenceLevel: domain.ConfidenceMedium,
		},
	}}
	svc := newPredictionService(e, model)

	written, err := svc.Refresh(ctx, now)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1", written)
	}

	stored, err := svc.Latest(ctx, priced.ID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if stored.PredictedWinner != "Broncos" {
		t.Errorf("predicted winner = %q, want Broncos", stored.PredictedWinner)
	}

	if _, err := svc.Latest(ctx, unpriced.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unpriced match prediction error = %v, want ErrNotFound", err)
	}
}

func TestRefreshWithoutRoundDoesNothing(t *testing.T) {
	e := newEnv()
	svc := newPredictionService(e, &stubModel{})

	written, err := svc.Refresh(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
}

func TestRefreshTargetsActiveOverUpcoming(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	now := time.Now().UTC()

	active := e.rounds.add(domain.Round{
		RoundNumber: 1, Year: 2026,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(6 * 24 * time.Hour),
		Status: domain.RoundStatusActive,
	})
	upcoming := e.rounds.add(domain.Round{
		RoundNumber: 2, Year: 2026,
		StartTime: now.Add(7 * 24 * time.Hour), EndTime: now.Add(13 * 24 * time.Hour),
		Status: domain.RoundStatusUpcoming,
	})

	activeMatch := e.matches.add(domain.Match{
		RoundID: active.ID, HomeTeam: "Broncos", AwayTeam: "Storm",
		HomeOdds: decPtr("1.80"), AwayOdds: decPtr("2.20"),
		StartTime: now.Add(24 * time.Hour), Status: domain.MatchStatusScheduled,
	})
	nextMatch := e.matches.add(domain.Match{
		RoundID: upcoming.ID, HomeTeam: "Raiders", AwayTeam: "Sharks",
		HomeOdds: decPtr("1.90"), AwayOdds: decPtr("2.00"),
		StartTime: now.Add(8 * 24 * time.Hour), Status: domain.MatchStatusScheduled,
	})

	model := &stubModel{preds: map[string]domain.Prediction{
		activeMatch.ID: {MatchID: activeMatch.ID, Model: "stub", PredictedWinner: "Broncos"},
		nextMatch.ID:   {MatchID: nextMatch.ID, Model: "stub", PredictedWinner: "Raiders"},
	}}
	svc := newPredictionService(e, model)

	written, err := svc.Refresh(ctx, now)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1 (active round only)", written)
	}
	if _, err := svc.Latest(ctx, nextMatch.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("upcoming round match predicted early, error = %v, want ErrNotFound", err)
	}
}

func TestRefreshSurvivesModelErrors(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	now := time.Now().UTC()

	round := e.rounds.add(domain.Round{
		RoundNumber: 1, Year: 2026,
		StartTime: now.Add(-time.Hour), EndTime: now.Add(6 * 24 * time.Hour),
		Status: domain.RoundStatusActive,
	})
	e.matches.add(domain.Match{
		RoundID: round.ID, HomeTeam: "Broncos", AwayTeam: "Storm",
		HomeOdds: decPtr("1.80"), AwayOdds: decPtr("2.20"),
		StartTime: now.Add(24 * time.Hour), Status: domain.MatchStatusScheduled,
	})

	svc := newPredictionService(e, &stubModel{err: errors.New("model exploded")})

	written, err := svc.Refresh(ctx, now)
	if err != nil {
		t.Fatalf("Refresh() error = %v, want nil (per-match errors are logged)", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
}
