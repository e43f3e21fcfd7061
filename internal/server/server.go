package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
	"github.com/jakeharveyy/tipengine/internal/metrics"
	"github.com/jakeharveyy/tipengine/internal/server/handler"
	"github.com/jakeharveyy/tipengine/internal/server/middleware"
	"github.com/jakeharveyy/tipengine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, admin authentication is disabled
	RateLimit   int    // requests per window per client IP; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Users   *handler.UserHandler
	Bets    *handler.BetHandler
	Matches *handler.MatchHandler
	Rounds  *handler.RoundHandler
	Admin   *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server for the tipping platform.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting) and attaches the
// WebSocket hub. Admin routes additionally require the configured API key.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, m *metrics.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	rate := func(next http.Handler) http.Handler { return next }
	if limiter != nil && cfg.RateLimit > 0 {
		rate = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)
	}
	auth := middleware.Auth(cfg.APIKey)

	// api registers a rate-limited public route; admin additionally wraps the
	// handler with API-key auth. The route pattern doubles as the label on the
	// request duration histogram, so it must be attached here at registration
	// rather than in an outer middleware.
	api := func(pattern string, hf http.HandlerFunc) {
		mux.Handle(pattern, timed(m, pattern, rate(hf)))
	}
	admin := func(pattern string, hf http.HandlerFunc) {
		mux.Handle(pattern, timed(m, pattern, rate(auth(hf))))
	}

	// User endpoints.
	api("POST /api/users", handlers.Users.Register)
	api("GET /api/users/{id}", handlers.Users.Get)
	api("GET /api/users/{id}/bets", handlers.Users.ListBets)
	api("GET /api/users/{id}/ledger", handlers.Users.ListLedger)
	api("GET /api/leaderboard", handlers.Users.Leaderboard)

	// Bet endpoints.
	api("POST /api/bets", handlers.Bets.Place)

	// Round and match endpoints.
	api("GET /api/rounds", handlers.Rounds.List)
	api("GET /api/rounds/active", handlers.Rounds.GetActive)
	api("GET /api/matches", handlers.Matches.List)
	api("GET /api/matches/{id}", handlers.Matches.Get)
	api("GET /api/matches/{id}/prediction", handlers.Matches.GetPrediction)

	// Admin endpoints.
	admin("POST /api/admin/settle", handlers.Admin.Settle)
	admin("POST /api/admin/rounds/tick", handlers.Admin.TickRounds)
	admin("GET /api/admin/users/{id}/ledger/verify", handlers.Admin.VerifyLedger)

	// Health check and metrics (no rate limiting).
	mux.HandleFunc("GET /healthz", handlers.Health.Health)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	// WebSocket endpoint. Long-lived connections stay out of the duration
	// histogram and the rate limiter.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
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

// timed observes request durations on the route's histogram bucket.
func timed(m *metrics.Metrics, route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
