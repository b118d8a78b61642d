// Package server exposes the engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
	"github.com/hybridmarkets/resolver/internal/server/handler"
	"github.com/hybridmarkets/resolver/internal/server/middleware"
	"github.com/hybridmarkets/resolver/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimitPerMin int    // per-client requests per minute; 0 disables
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Resolutions *handler.ResolutionHandler
	Disputes    *handler.DisputeHandler
	Extensions  *handler.ExtensionHandler
	Payouts     *handler.PayoutHandler
}

// Server is the HTTP + WebSocket API server for the resolution engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Markets.PlaceBet)

	// Resolution lifecycle.
	mux.HandleFunc("POST /api/markets/{id}/oracle-result", handlers.Resolutions.FetchOracleResult)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Resolutions.ResolveMarket)
	mux.HandleFunc("POST /api/markets/{id}/finalize", handlers.Resolutions.FinalizeMarket)
	mux.HandleFunc("POST /api/markets/{id}/dispute", handlers.Resolutions.RaiseDispute)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Resolutions.CancelMarket)

	// Dispute thresholds.
	mux.HandleFunc("GET /api/markets/{id}/dispute-threshold", handlers.Disputes.GetThreshold)
	mux.HandleFunc("PUT /api/markets/{id}/dispute-threshold", handlers.Disputes.UpdateThreshold)
	mux.HandleFunc("GET /api/markets/{id}/dispute-threshold/history", handlers.Disputes.ThresholdHistory)

	// Extensions.
	mux.HandleFunc("POST /api/markets/{id}/extend", handlers.Extensions.ExtendMarket)
	mux.HandleFunc("GET /api/markets/{id}/extensions", handlers.Extensions.ListExtensions)

	// Payouts.
	mux.HandleFunc("GET /api/markets/{id}/payout", handlers.Payouts.PreviewPayout)
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Payouts.ClaimPayout)
	mux.HandleFunc("POST /api/markets/{id}/collect-fee", handlers.Payouts.CollectFee)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply per-client rate limiting when configured.
	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = corsMiddleware(cfg.CORSOrigins)(h)

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

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Actor")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
