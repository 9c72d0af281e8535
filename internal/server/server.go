package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zmartlabs/zmartd/internal/domain"
	"github.com/zmartlabs/zmartd/internal/server/handler"
	"github.com/zmartlabs/zmartd/internal/server/middleware"
	"github.com/zmartlabs/zmartd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Per-client request limiting. Disabled when Limiter is nil or
	// RateLimit is zero.
	Limiter         domain.RateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Status     *handler.StatusHandler
	Markets    *handler.MarketHandler
	Bets       *handler.BetHandler
	Proposals  *handler.ProposalHandler
	FeeConfigs *handler.FeeConfigHandler
}

// Server is the HTTP + WebSocket API server for the prediction market.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, logging, CORS, auth) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and status (no auth required beyond the global middleware).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Market endpoints.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/address/{address}", handlers.Markets.GetMarketByAddress)
	mux.HandleFunc("GET /api/markets/{id}/odds", handlers.Markets.GetOdds)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.ResolveMarket)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Markets.CancelMarket)

	// Bet and claim endpoints.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/markets/{id}/bets", handlers.Bets.ListMarketBets)
	mux.HandleFunc("GET /api/markets/{id}/bets/{user}", handlers.Bets.GetBet)
	mux.HandleFunc("GET /api/users/{user}/bets", handlers.Bets.ListUserBets)
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Bets.ClaimWinnings)
	mux.HandleFunc("POST /api/markets/{id}/creator-fees/claim", handlers.Bets.ClaimCreatorFees)

	// Governance endpoints.
	mux.HandleFunc("POST /api/proposals", handlers.Proposals.CreateProposal)
	mux.HandleFunc("GET /api/proposals", handlers.Proposals.ListProposals)
	mux.HandleFunc("GET /api/proposals/{id}", handlers.Proposals.GetProposal)
	mux.HandleFunc("GET /api/proposals/address/{address}", handlers.Proposals.GetProposalByAddress)
	mux.HandleFunc("POST /api/proposals/{id}/votes", handlers.Proposals.Vote)
	mux.HandleFunc("GET /api/proposals/{id}/votes", handlers.Proposals.ListVotes)
	mux.HandleFunc("POST /api/proposals/{id}/execute", handlers.Proposals.Execute)

	// Fee schedule registry.
	mux.HandleFunc("POST /api/fee-configs", handlers.FeeConfigs.RegisterFeeConfig)
	mux.HandleFunc("GET /api/fee-configs", handlers.FeeConfigs.ListFeeConfigs)
	mux.HandleFunc("GET /api/fee-configs/{tier}", handlers.FeeConfigs.GetFeeConfig)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
