// Package restapi serves the REST control surface and the dashboard
// WebSocket upgrade endpoint (§6).
package restapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"etfservice/internal/book"
	"etfservice/internal/clearing"
	"etfservice/internal/config"
	"etfservice/internal/fanout"
	"etfservice/internal/ledger"
)

// Server runs an HTTP server. Two are constructed: one for the REST control
// surface plus /metrics (rest_port), one for the dashboard WebSocket upgrade
// (ws_port) — matching the source's separate Flask and websockets servers.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer wires the REST control surface and /metrics onto a fresh
// ServeMux and returns a Server ready to Start on cfg.Port.
func NewServer(
	cfg config.RESTConfig,
	dashCfg config.DashboardConfig,
	b *book.Book,
	c *clearing.Store,
	l *ledger.Ledger,
	logger *slog.Logger,
) *Server {
	handlers := NewHandlers(b, c, l, dashCfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/symbols", handlers.HandleSymbols)
	mux.HandleFunc("/positions/", handlers.routePositions)
	mux.HandleFunc("/create", handlers.HandleCreate)
	mux.HandleFunc("/redeem", handlers.HandleRedeem)
	mux.HandleFunc("/history", handlers.HandleHistory)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		logger: logger.With("component", "restapi-server"),
	}
}

// NewDashboardServer wires the /ws upgrade endpoint onto its own ServeMux
// and returns a Server ready to Start on dashCfg.Port.
func NewDashboardServer(dashCfg config.DashboardConfig, hub *fanout.Hub, logger *slog.Logger) *Server {
	handlers := &Handlers{cfg: dashCfg, logger: logger.With("component", "dashboard-handlers")}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handlers.HandleWebSocket(hub))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", dashCfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		logger: logger.With("component", "dashboard-server"),
	}
}

// Start runs the HTTP server. Blocks until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// routePositions dispatches /positions/<client_id> and
// /positions/<client_id>/<symbol> to the right handler based on path depth.
func (h *Handlers) routePositions(w http.ResponseWriter, r *http.Request) {
	if pathSegment(r.URL.Path, 3) != "" {
		h.HandlePosition(w, r)
		return
	}
	h.HandlePositions(w, r)
}
