package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zmartlabs/zmartd/internal/engine"
	"github.com/zmartlabs/zmartd/internal/notify"
	"github.com/zmartlabs/zmartd/internal/server"
	"github.com/zmartlabs/zmartd/internal/server/handler"
	"github.com/zmartlabs/zmartd/internal/server/ws"
	"github.com/zmartlabs/zmartd/internal/service"
)

// ServeMode runs the HTTP + WebSocket API server together with the
// notification watcher. It blocks until the context is cancelled or a
// component fails.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startNotifyWatcher(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs only the periodic cold-storage export loop.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server, the notification watcher, and the archive
// loop in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startNotifyWatcher(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// newServices constructs the market and governance services from the wired
// dependencies and the configured engine parameters.
func (a *App) newServices(deps *Dependencies) (*service.MarketService, *service.GovernanceService) {
	marketParams := engine.MarketParams{
		SeedLiquidity: a.cfg.Market.SeedLiquidity,
		MinBet:        a.cfg.Market.MinBet,
	}

	marketSvc := service.NewMarketService(
		deps.MarketStore,
		deps.BetStore,
		deps.FeeConfigStore,
		deps.MarketCache,
		deps.LockManager,
		deps.RateLimiter,
		deps.SignalBus,
		deps.AuditStore,
		deps.Clock,
		a.logger,
		service.MarketServiceConfig{
			Params:    marketParams,
			Resolvers: a.cfg.Resolver.Addresses,
			BetRate: service.RateLimit{
				Limit:  a.cfg.Market.BetRateLimit,
				Window: a.cfg.Market.BetRateWindow.Duration,
			},
		},
	)

	govSvc := service.NewGovernanceService(
		deps.ProposalStore,
		deps.FeeConfigStore,
		deps.ProposalCache,
		deps.RateLimiter,
		deps.SignalBus,
		deps.AuditStore,
		deps.Clock,
		a.logger,
		service.GovernanceServiceConfig{
			Governance: engine.GovernanceParams{
				ApprovalThreshold: a.cfg.Governance.ApprovalThreshold,
				VotingWindow:      a.cfg.Governance.VotingWindow.Duration,
			},
			Market: marketParams,
			VoteRate: service.RateLimit{
				Limit:  a.cfg.Governance.VoteRateLimit,
				Window: a.cfg.Governance.VoteRateWindow.Duration,
			},
		},
	)

	return marketSvc, govSvc
}

// startServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup. The server shuts down gracefully when the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by config")
		return
	}

	marketSvc, govSvc := a.newServices(deps)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			Limiter:         deps.RateLimiter,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:     handler.NewHealthHandler(a.logger),
			Status:     handler.NewStatusHandler(a.cfg.Mode, marketSvc, a.logger),
			Markets:    handler.NewMarketHandler(marketSvc, a.logger),
			Bets:       handler.NewBetHandler(marketSvc, a.logger),
			Proposals:  handler.NewProposalHandler(govSvc, a.logger),
			FeeConfigs: handler.NewFeeConfigHandler(marketSvc, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startNotifyWatcher adds the signal-bus notification bridge when at least
// one delivery channel is configured.
func (a *App) startNotifyWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hasTelegram := a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != ""
	hasDiscord := a.cfg.Notify.DiscordWebhookURL != ""
	if !hasTelegram && !hasDiscord {
		return
	}

	watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		err := watcher.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	})
}

// startArchiveLoop adds the periodic export of settled history to object
// storage. One pass runs immediately on start, then on every interval tick.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		a.logger.InfoContext(ctx, "archiving disabled")
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			a.runArchivePass(ctx, deps, retention)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}

// runArchivePass executes one export of markets and audit entries older than
// the retention cutoff. Failures are logged, not fatal; the next tick
// retries.
func (a *App) runArchivePass(ctx context.Context, deps *Dependencies, retention time.Duration) {
	cutoff := deps.Clock.Now().Add(-retention)
	a.logger.InfoContext(ctx, "starting archive pass",
		slog.Time("cutoff", cutoff),
	)

	markets, err := deps.Archiver.ArchiveMarkets(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "market archive failed",
			slog.String("error", err.Error()),
		)
	}

	entries, err := deps.Archiver.ArchiveAuditLog(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "audit archive failed",
			slog.String("error", err.Error()),
		)
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Int64("markets", markets),
		slog.Int64("audit_entries", entries),
	)
}
