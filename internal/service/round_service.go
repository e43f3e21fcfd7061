package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/notify"
)

// RoundBonus is the amount credited to every active user when a round opens.
var RoundBonus = decimal.NewFromInt(1000)

// TickSummary reports what one round tick did.
type TickSummary struct {
	Activated      []int `json:"activated"`
	Completed      []int `json:"completed"`
	BonusesApplied int   `json:"bonuses_applied"`
	BonusesSkipped int   `json:"bonuses_skipped"`
}

// RoundService drives the round lifecycle: Upcoming rounds whose window has
// opened become Active and pay the weekly bonus; Active rounds whose window
// has closed become Completed.
type RoundService struct {
	rounds domain.RoundStore
	users  domain.UserStore
	events *notify.EventPublisher
	logger *slog.Logger
}

// NewRoundService creates a RoundService.
func NewRoundService(rounds domain.RoundStore, users domain.UserStore, events *notify.EventPublisher, logger *slog.Logger) *RoundService {
	return &RoundService{
		rounds: rounds,
		users:  users,
		events: events,
		logger: logger.With(slog.String("component", "rounds")),
	}
}

// Tick advances every round whose window boundary has passed. Bonuses are
// credited before the round flips to Active: a tick that dies halfway leaves
// the round Upcoming, and the rerun skips the users already paid via the
// per-(user, round) ledger guard. Users who register once the round is Active
// are covered by the scaled initial deposit instead, never by a late bonus.
func (r *RoundService) Tick(ctx context.Context, now time.Time) (TickSummary, error) {
	var summary TickSummary

	upcoming, err := r.rounds.ListByStatus(ctx, domain.RoundStatusUpcoming)
	if err != nil {
		return summary, fmt.Errorf("rounds: list upcoming: %w", err)
	}
	for _, round := range upcoming {
		if !round.DueForActivation(now) {
			continue
		}
		applied, skipped := r.grantBonuses(ctx, round)
		summary.BonusesApplied += applied
		summary.BonusesSkipped += skipped

		if err := r.rounds.SetStatus(ctx, round.ID, domain.RoundStatusActive); err != nil {
			return summary, fmt.Errorf("rounds: activate round %d: %w", round.RoundNumber, err)
		}
		summary.Activated = append(summary.Activated, round.RoundNumber)
		r.logger.InfoContext(ctx, "round activated",
			slog.Int("round", round.RoundNumber),
			slog.Int("year", round.Year),
			slog.Int("bonuses_applied", applied),
			slog.Int("bonuses_skipped", skipped),
		)
	}

	active, err := r.rounds.ListByStatus(ctx, domain.RoundStatusActive)
	if err != nil {
		return summary, fmt.Errorf("rounds: list active: %w", err)
	}
	for _, round := range active {
		if !round.DueForCompletion(now) {
			continue
		}
		if err := r.rounds.SetStatus(ctx, round.ID, domain.RoundStatusCompleted); err != nil {
			return summary, fmt.Errorf("rounds: complete round %d: %w", round.RoundNumber, err)
		}
		summary.Completed = append(summary.Completed, round.RoundNumber)
		r.logger.InfoContext(ctx, "round completed",
			slog.Int("round", round.RoundNumber),
			slog.Int("year", round.Year),
		)
	}

	return summary, nil
}

// grantBonuses credits the weekly bonus to every active user. Each credit is
// its own transaction; one user failing never blocks the rest.
func (r *RoundService) grantBonuses(ctx context.Context, round domain.Round) (applied, skipped int) {
	users, err := r.users.ListActive(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "list users for bonus",
			slog.Int("round", round.RoundNumber),
			slog.String("error", err.Error()),
		)
		return 0, 0
	}

	for _, u := range users {
		newBankroll, err := r.users.ApplyRoundBonus(ctx, u.ID, round.ID, RoundBonus)
		if errors.Is(err, domain.ErrBonusAlreadyApplied) {
			r.logger.DebugContext(ctx, "bonus already applied",
				slog.String("user_id", u.ID),
				slog.Int("round", round.RoundNumber),
			)
			skipped++
			continue
		}
		if err != nil {
			r.logger.WarnContext(ctx, "apply round bonus",
				slog.String("user_id", u.ID),
				slog.Int("round", round.RoundNumber),
				slog.String("error", err.Error()),
			)
			continue
		}

		applied++
		r.events.PublishBankroll(ctx, domain.BankrollEvent{
			UserID:      u.ID,
			NewBankroll: newBankroll,
			Reason:      string(domain.LedgerRoundBonus),
			RoundNumber: round.RoundNumber,
		})
	}
	return applied, skipped
}
