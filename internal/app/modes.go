package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jakeharveyy/tipengine/internal/pipeline"
	"github.com/jakeharveyy/tipengine/internal/platform/nrl"
	"github.com/jakeharveyy/tipengine/internal/platform/sportsbook"
	"github.com/jakeharveyy/tipengine/internal/predictor"
	"github.com/jakeharveyy/tipengine/internal/server"
	"github.com/jakeharveyy/tipengine/internal/server/handler"
	"github.com/jakeharveyy/tipengine/internal/server/ws"
	"github.com/jakeharveyy/tipengine/internal/service"
)

// services bundles the domain services shared by the HTTP layer and the
// background jobs. Both entry points must go through the same instances so a
// manual admin settle and a feed-driven settle behave identically.
type services struct {
	accounts    *service.AccountService
	betting     *service.BettingService
	settlement  *service.SettlementService
	rounds      *service.RoundService
	predictions *service.PredictionService
	bot         *service.BotService
}

// ServeMode runs the HTTP API and WebSocket hub only. Fixtures, odds, and
// results must be driven by a separate jobs process or the admin endpoints.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	return g.Wait()
}

// JobsMode runs the background pipeline only: fixture sync, odds refresh,
// results polling, round lifecycle, predictions, the bot, and the archive.
func (a *App) JobsMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting jobs mode")

	if !a.cfg.Pipeline.Enabled {
		a.logger.WarnContext(ctx, "pipeline.enabled is false, but jobs mode always runs the pipeline")
	}

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startPipeline(ctx, g, deps, svcs)
	return g.Wait()
}

// FullMode runs the HTTP API and the background pipeline in one process.
// Either half can be switched off in config; distributed deployments should
// use serve and jobs modes instead.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	if a.cfg.Pipeline.Enabled {
		a.startPipeline(ctx, g, deps, svcs)
	} else {
		a.logger.WarnContext(ctx, "pipeline.enabled is false, full mode serves the API only")
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	} else {
		a.logger.WarnContext(ctx, "server.enabled is false, no HTTP API in this process")
	}

	return g.Wait()
}

// buildServices constructs the domain service layer over the wired stores.
func (a *App) buildServices(deps *Dependencies) *services {
	accounts := service.NewAccountService(
		deps.Users, deps.Bets, deps.Ledger, deps.Rounds, deps.Events, a.logger,
	)
	betting := service.NewBettingService(
		deps.Bets, deps.Matches, deps.Users, deps.Events, deps.Metrics, a.logger,
	)
	settlement := service.NewSettlementService(
		deps.Bets, deps.Matches, deps.Events, deps.Notifier, deps.Metrics, a.logger,
	)
	rounds := service.NewRoundService(deps.Rounds, deps.Users, deps.Events, a.logger)

	model := predictor.NewImpliedOddsModel(predictor.Config{
		Name:                 a.cfg.Bot.Model,
		ProbabilityThreshold: a.cfg.Bot.ProbabilityThreshold,
		KellyCap:             a.cfg.Bot.KellyCap,
		SafetyFraction:       a.cfg.Bot.SafetyFraction,
	})
	predictions := service.NewPredictionService(
		deps.Predictions, deps.Matches, deps.Rounds, model, a.logger,
	)

	bot := service.NewBotService(
		accounts, betting,
		deps.Bets, deps.Matches, deps.Rounds, deps.Predictions,
		service.BotConfig{
			Username:            a.cfg.Bot.Username,
			MaxBankrollFraction: decimal.NewFromFloat(a.cfg.Bot.MaxBankrollFraction),
			MinStake:            decimal.NewFromFloat(a.cfg.Bot.MinStake),
		},
		a.logger,
	)

	return &services{
		accounts:    accounts,
		betting:     betting,
		settlement:  settlement,
		rounds:      rounds,
		predictions: predictions,
		bot:         bot,
	}
}

// startHTTPServer adds the WebSocket hub and HTTP server goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.Bus, deps.Metrics.WSClients, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.PG, deps.Redis, a.logger),
		Users:   handler.NewUserHandler(svcs.accounts, a.logger),
		Bets:    handler.NewBetHandler(svcs.betting, a.logger),
		Matches: handler.NewMatchHandler(deps.Matches, deps.Rounds, svcs.predictions, a.logger),
		Rounds:  handler.NewRoundHandler(deps.Rounds, a.logger),
		Admin:   handler.NewAdminHandler(svcs.settlement, svcs.rounds, svcs.accounts, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.Limiter, deps.Metrics, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startPipeline builds the feed clients and registers every background job
// on the orchestrator, then adds its Run loop to the errgroup.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	draw := nrl.NewClient(a.cfg.NRL.BaseURL, a.cfg.NRL.Competition)

	// Bookmaker prices are optional; without them the odds job falls back to
	// the prices embedded in the draw feed.
	var book pipeline.OddsFeed
	if a.cfg.Sportsbook.Enabled {
		book = sportsbook.NewClient(a.cfg.Sportsbook.BaseURL, a.cfg.Sportsbook.APIKey, a.cfg.Sportsbook.Sport)
	}

	fixtures := pipeline.NewFixtureSync(
		draw, deps.Rounds, deps.Matches, a.cfg.NRL.Season, deps.Metrics.FeedErrors, a.logger,
	)
	odds := pipeline.NewOddsRefresh(
		book, draw, deps.Rounds, deps.Matches, deps.Odds, deps.Events,
		a.cfg.NRL.Season, deps.Metrics.FeedErrors, a.logger,
	)
	results := pipeline.NewResultsPoll(
		draw, deps.Rounds, deps.Matches, svcs.settlement, deps.Metrics.FeedErrors, a.logger,
	)

	orch := pipeline.NewOrchestrator(deps.Locks, a.logger)
	orch.Add(
		pipeline.Job{Name: "fixture_sync", Interval: a.cfg.Pipeline.FixtureSyncInterval.Duration, Run: fixtures.Run},
		pipeline.Job{Name: "odds_refresh", Interval: a.cfg.Pipeline.OddsInterval.Duration, Run: odds.Run},
		pipeline.Job{Name: "results_poll", Interval: a.cfg.Pipeline.ResultsInterval.Duration, Run: results.Run},
		pipeline.Job{
			Name:     "round_tick",
			Interval: a.cfg.Pipeline.RoundsInterval.Duration,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := svcs.rounds.Tick(ctx, now)
				return err
			},
		},
		pipeline.Job{
			Name:     "predictions",
			Interval: a.cfg.Pipeline.PredictionsInterval.Duration,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := svcs.predictions.Refresh(ctx, now)
				return err
			},
		},
	)

	if a.cfg.Bot.Enabled {
		orch.Add(pipeline.Job{
			Name:     "bot",
			Interval: a.cfg.Pipeline.BotInterval.Duration,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := svcs.bot.Run(ctx, now)
				return err
			},
		})
	}

	if deps.Archiver != nil {
		arch := pipeline.NewArchiver(deps.Archiver, deps.Marks, a.cfg.Archive.RetentionDays, a.logger)
		orch.AddArchiver(arch, fmt.Sprintf("0 %d * * *", a.cfg.Archive.Hour))
	}

	g.Go(func() error {
		return orch.Run(ctx)
	})
}
