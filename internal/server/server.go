package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sonpham-org/poly/internal/server/handler"
	"github.com/sonpham-org/poly/internal/server/middleware"
	"github.com/sonpham-org/poly/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string  // if empty, authentication is disabled
	RateLimit   float64 // requests per second per client; 0 disables
	RateBurst   int
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Replay  *handler.ReplayHandler
}

// Server is the HTTP + WebSocket API surface.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain (CORS, logging, rate limit, auth) applied.
func NewServer(cfg Config, handlers Handlers, replayWS *ws.ReplayHandler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required once the chain sees an empty key;
	// otherwise it is protected like everything else).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market discovery and tracking.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{slug}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/track", handlers.Markets.Track)
	mux.HandleFunc("DELETE /api/track/{slug}", handlers.Markets.Untrack)

	// Books, trades, history, snapshots.
	mux.HandleFunc("GET /api/book", handlers.Replay.GetBook)
	mux.HandleFunc("GET /api/trades", handlers.Replay.GetTrades)
	mux.HandleFunc("GET /api/price-history", handlers.Replay.GetPriceHistory)
	mux.HandleFunc("GET /api/snapshots", handlers.Replay.ListSnapshots)

	// Manual ingestion trigger.
	mux.HandleFunc("POST /api/ingest/trigger", handlers.Replay.TriggerIngest)

	// WebSocket replay sessions.
	if replayWS != nil {
		mux.HandleFunc("GET /ws/replay/{slug}", replayWS.HandleReplay)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.RateLimit(cfg.RateLimit, cfg.RateBurst)(h)
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
