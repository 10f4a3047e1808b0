// Package server exposes the auctioneer over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/server/handler"
	"github.com/alanyoungcy/auctioneer/internal/server/middleware"
	"github.com/alanyoungcy/auctioneer/internal/server/ws"
)

type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards every route except health and metrics. Empty disables it.
	APIKey     string
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates everything the router mounts. Metrics and Hub may be
// nil.
type Handlers struct {
	Health  *handler.HealthHandler
	Auction *handler.AuctionHandler
	Query   *handler.QueryHandler
	Metrics http.Handler
	Hub     *ws.Hub
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Router(cfg, h, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger.With(slog.String("component", "server"))}
}

// Router builds the mux and wraps it in middleware. Exposed for tests.
func Router(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("POST /api/v1/authorize", h.Auction.Authorize())
	mux.HandleFunc("POST /api/v1/sell", h.Auction.Sell())
	mux.HandleFunc("POST /api/v1/buy", h.Auction.Buy())
	mux.HandleFunc("POST /api/v1/deposit", h.Auction.Deposit())
	mux.HandleFunc("POST /api/v1/cancel", h.Auction.Cancel())
	mux.HandleFunc("POST /api/v1/execute-sale", h.Auction.ExecuteSale())
	mux.HandleFunc("POST /api/v1/withdraw", h.Auction.Withdraw())

	mux.HandleFunc("GET /api/v1/listings", h.Query.ListListings)
	mux.HandleFunc("GET /api/v1/listings/{address}", h.Query.GetListing)
	mux.HandleFunc("GET /api/v1/delegations/{instance}", h.Query.GetDelegation)
	mux.HandleFunc("GET /api/v1/derive/{kind}", h.Query.Derive)
	mux.HandleFunc("GET /api/v1/events", h.Query.Events)
	mux.HandleFunc("GET /api/v1/audit", h.Query.Audit)

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var out http.Handler = mux
	out = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(out)
	if limiter != nil {
		out = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(out)
	}
	out = middleware.Logging(logger)(out)
	out = middleware.CORS(cfg.CORSOrigins)(out)
	return out
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
