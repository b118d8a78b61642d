package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hybridmarkets/resolver/internal/dispute"
	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/extension"
	"github.com/hybridmarkets/resolver/internal/notify"
	"github.com/hybridmarkets/resolver/internal/oracle"
	"github.com/hybridmarkets/resolver/internal/server"
	"github.com/hybridmarkets/resolver/internal/server/handler"
	"github.com/hybridmarkets/resolver/internal/server/ws"
	"github.com/hybridmarkets/resolver/internal/service"
)

// services bundles the engine services built on top of the wired
// dependencies. All services share one reentrancy guard so that an external
// call bracketed by one service blocks re-entry through any other.
type services struct {
	markets     *service.MarketService
	resolutions *service.ResolutionService
	disputes    *service.DisputeService
	payouts     *service.PayoutService
	extensions  *service.ExtensionService
}

// engineConfig translates the file configuration into the service-level
// engine parameters.
func (a *App) engineConfig() service.Config {
	e := a.cfg.Engine
	return service.Config{
		FeePercent:         e.FeePercent,
		MaxOutcomes:        e.MaxOutcomes,
		HybridConsensusPct: e.HybridConsensusPercent,
		Dispute: dispute.Params{
			Base:         e.BaseDisputeThreshold,
			Min:          e.MinDisputeStake,
			Max:          e.MaxDisputeThreshold,
			LargeMarket:  e.LargeMarketThreshold,
			HighActivity: e.HighActivityThreshold,
		},
		Extension: extension.Params{
			MinDays:   e.MinExtensionDays,
			MaxDays:   e.MaxExtensionDays,
			MaxCount:  e.MaxTotalExtensions,
			FeePerDay: e.ExtensionFeePerDay,
		},
		DefaultMaxExtensionDays: e.DefaultMaxExtensionDays,
		DisputeExtension:        e.DisputeExtension.Duration,
		LockTTL:                 e.LockTTL.Duration,
		Oracle: oracle.Config{
			BinanceBaseURL:   a.cfg.Oracle.BinanceBaseURL,
			CoinGeckoBaseURL: a.cfg.Oracle.CoinGeckoBaseURL,
			Timeout:          a.cfg.Oracle.Timeout.Duration,
			PriceScale:       a.cfg.Oracle.PriceScale,
		},
	}
}

// buildServices constructs the full service layer over the wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	cfg := a.engineConfig()
	guard := service.NewGuard()

	return &services{
		markets: service.NewMarketService(
			deps.MarketStore, deps.BetStore, deps.MarketCache, deps.LockManager,
			deps.Funds, deps.AuditStore, guard, cfg, a.logger,
		),
		resolutions: service.NewResolutionService(
			deps.MarketStore, deps.BetStore, deps.ResolutionStore, deps.ThresholdHistory,
			deps.MarketCache, deps.LockManager, deps.SignalBus, deps.Funds,
			deps.AuditStore, guard, cfg, a.logger,
		),
		disputes: service.NewDisputeService(
			deps.MarketStore, deps.ThresholdHistory, deps.LockManager, deps.SignalBus,
			deps.AuditStore, cfg, a.logger,
		),
		payouts: service.NewPayoutService(
			deps.MarketStore, deps.BetStore, deps.MarketCache, deps.LockManager,
			deps.SignalBus, deps.Funds, deps.AuditStore, guard, cfg, a.logger,
		),
		extensions: service.NewExtensionService(
			deps.MarketStore, deps.ExtensionStore, deps.MarketCache, deps.LockManager,
			deps.SignalBus, deps.Funds, deps.AuditStore, guard, cfg, a.logger,
		),
	}
}

// ServerMode runs the HTTP/WebSocket API server.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startHTTPServer(ctx, g, deps, svcs)
	a.startNotifyBridge(ctx, g, deps)

	return g.Wait()
}

// ResolverMode runs the background resolution loop: every interval it lists
// markets past their end time without an oracle result, fetches the oracle
// outcome, and resolves them.
func (a *App) ResolverMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting resolver mode",
		slog.Duration("interval", a.cfg.Resolver.Interval.Duration),
		slog.Int("batch_size", a.cfg.Resolver.BatchSize),
	)

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	g.Go(func() error {
		return a.runResolverLoop(ctx, deps, svcs)
	})
	a.startNotifyBridge(ctx, g, deps)

	return g.Wait()
}

// ArchiveMode runs the settled-market archiver loop: markets resolved more
// than the retention period ago are bundled and uploaded to object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		slog.Duration("interval", a.cfg.Archive.Interval.Duration),
	)

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver not wired (check s3 configuration)")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runArchiveLoop(ctx, deps)
	})

	return g.Wait()
}

// FullMode runs every subsystem: the API server, the resolver loop, and the
// archiver loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	g.Go(func() error {
		return a.runResolverLoop(ctx, deps, svcs)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	} else {
		a.logger.WarnContext(ctx, "full mode: archiver not wired, skipping archive loop")
	}

	a.startHTTPServer(ctx, g, deps, svcs)
	a.startNotifyBridge(ctx, g, deps)

	return g.Wait()
}

// runResolverLoop drives one resolution pass per tick. A failure on one
// market is logged and does not block the rest of the batch: a market whose
// oracle is still unavailable is simply retried on the next tick.
func (a *App) runResolverLoop(ctx context.Context, deps *Dependencies, svcs *services) error {
	interval := a.cfg.Resolver.Interval.Duration
	if interval <= 0 {
		interval = time.Minute
	}

	runOnce := func() {
		markets, err := deps.MarketStore.ListEndedUnresolved(ctx, time.Now().UTC(),
			domain.ListOpts{Limit: a.cfg.Resolver.BatchSize})
		if err != nil {
			a.logger.ErrorContext(ctx, "resolver: list ended markets failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if len(markets) == 0 {
			return
		}

		resolved := 0
		for _, m := range markets {
			if ctx.Err() != nil {
				return
			}
			if _, err := svcs.resolutions.FetchOracleResult(ctx, m.ID); err != nil {
				a.logger.WarnContext(ctx, "resolver: oracle fetch failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if _, err := svcs.resolutions.ResolveMarket(ctx, m.ID); err != nil {
				a.logger.WarnContext(ctx, "resolver: resolve failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			resolved++
		}
		a.logger.InfoContext(ctx, "resolver: pass complete",
			slog.Int("candidates", len(markets)),
			slog.Int("resolved", resolved),
		)
	}

	runOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

// runArchiveLoop uploads bundles for markets that settled before the
// retention cutoff, once per interval.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	runOnce := func() {
		cutoff := time.Now().UTC().Add(-retention)
		archived, err := deps.Archiver.ArchiveSettled(ctx, cutoff, a.cfg.Archive.BatchSize)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive: run failed",
				slog.Int("archived", archived),
				slog.String("error", err.Error()),
			)
			return
		}
		if archived > 0 {
			a.logger.InfoContext(ctx, "archive: pass complete",
				slog.Int("archived", archived),
				slog.Time("cutoff", cutoff),
			)
		}
	}

	runOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

// startHTTPServer adds the API server and its WebSocket hub to the errgroup.
// The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by configuration")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Markets:     handler.NewMarketHandler(svcs.markets, a.logger),
		Resolutions: handler.NewResolutionHandler(svcs.resolutions, a.logger),
		Disputes:    handler.NewDisputeHandler(svcs.disputes, a.logger),
		Extensions:  handler.NewExtensionHandler(svcs.extensions, a.logger),
		Payouts:     handler.NewPayoutHandler(svcs.payouts, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, hub, deps.RateLimiter, a.logger)

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

// notifyEvents maps bus channels to the operator-facing event names used for
// notification filtering.
var notifyEvents = map[string]string{
	service.ChannelResolution: "market_resolved",
	service.ChannelDispute:    "dispute_raised",
	service.ChannelExtension:  "market_extended",
	service.ChannelPayout:     "payout_claimed",
}

// startNotifyBridge forwards engine events from the signal bus to the
// configured notification channels. With zero senders configured the
// Notifier drops every dispatch, so the bridge is safe to run unconditionally.
func (a *App) startNotifyBridge(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for channel, event := range notifyEvents {
		g.Go(func() error {
			ch, err := deps.SignalBus.Subscribe(ctx, channel)
			if err != nil {
				return fmt.Errorf("notify bridge: subscribe %s: %w", channel, err)
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case payload, ok := <-ch:
					if !ok {
						return nil
					}
					a.forwardNotification(ctx, deps.Notifier, event, payload)
				}
			}
		})
	}
}

// forwardNotification decodes a bus event and hands it to the notifier.
// Delivery failures are logged, never propagated.
func (a *App) forwardNotification(ctx context.Context, n *notify.Notifier, event string, payload []byte) {
	var ev service.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		a.logger.WarnContext(ctx, "notify bridge: bad event payload",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	title := fmt.Sprintf("%s: market %s", ev.Type, ev.MarketID)
	body := fmt.Sprintf("type=%s market=%s", ev.Type, ev.MarketID)
	if ev.Actor != "" {
		body += " actor=" + ev.Actor
	}
	if len(ev.Detail) > 0 {
		if detail, err := json.Marshal(ev.Detail); err == nil {
			body += " detail=" + string(detail)
		}
	}

	// Bound each delivery so a slow webhook cannot stall the bridge.
	nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := n.Notify(nctx, event, title, body); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.WarnContext(ctx, "notify bridge: delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
