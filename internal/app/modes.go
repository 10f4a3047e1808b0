package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/pipeline"
	"github.com/alanyoungcy/auctioneer/internal/server"
	"github.com/alanyoungcy/auctioneer/internal/server/handler"
	"github.com/alanyoungcy/auctioneer/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// ServeMode runs the HTTP API and the WebSocket hub. When archiving is
// enabled the archiver runs alongside.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	srv := server.NewServer(a.serverConfig(), a.handlers(deps, hub), deps.RateLimiter, a.logger)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	}

	return g.Wait()
}

// ArchiveMode only runs the closed-listing archiver.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering archive mode")
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires blob storage")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.Retention.Duration, a.logger)
	g.Go(func() error {
		var err error
		if a.cfg.Archive.Cron != "" {
			err = archiver.RunCron(ctx, a.cfg.Archive.Cron)
		} else {
			err = archiver.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
		}
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("archiver: %w", err)
	})
}

func (a *App) serverConfig() server.Config {
	return server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.ApiKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}
}

// handlers builds every HTTP handler over deps.
func (a *App) handlers(deps *Dependencies, hub *ws.Hub) server.Handlers {
	guard := crypto.NewReplayGuard(deps.Nonces, a.cfg.Server.SignatureMaxAge.Duration)
	verifier := handler.NewVerifier(crypto.NewDomain(a.cfg.Auctioneer.ChainID), guard)

	a.logger.Debug("handlers ready",
		slog.Int("health_checks", len(deps.Checks)),
		slog.Bool("archiver", deps.Archiver != nil),
	)

	return server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks),
		Auction: handler.NewAuctionHandler(deps.Auctioneer, verifier, a.logger),
		Query:   handler.NewQueryHandler(deps.Auctioneer, deps.AuditStore, deps.SignalBus, a.logger),
		Metrics: deps.Metrics.Handler(),
		Hub:     hub,
	}
}
