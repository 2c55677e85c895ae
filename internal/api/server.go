// Package api serves the aligner's HTTP control API: training status and
// control, context switching, predictions, tree edits and a WebSocket feed
// of training state changes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/server"
	"github.com/FocuswithJustin/JuniperAlign/internal/state"
	"github.com/FocuswithJustin/JuniperAlign/internal/trainer"
)

// Server wires the HTTP API to an orchestrator and its document tree.
type Server struct {
	cfg     Config
	orch    *trainer.Orchestrator
	tree    *state.Store[*tree.Collection]
	hub     *Hub
	limiter *RateLimiter
	started time.Time
	version string
}

// New validates cfg and builds a server. hub should be the hub whose
// HostCallback was given to orch.
func New(cfg Config, orch *trainer.Orchestrator, treeStore *state.Store[*tree.Collection], hub *Hub, version string) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		cfg:     cfg,
		orch:    orch,
		tree:    treeStore,
		hub:     hub,
		started: time.Now(),
		version: version,
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, nil)
	}
	return s, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = server.SecurityHeaders(server.APICSPConfig(), s.routes())
	handler = AuthMiddleware(s.cfg.Auth, handler)
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	handler = instrument(handler)
	return logging.CombinedMiddleware(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", handleNotFound)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /training", s.handleTrainingStatus)
	mux.HandleFunc("POST /training", s.handleStartTraining)
	mux.HandleFunc("DELETE /training", s.handleStopTraining)
	mux.HandleFunc("GET /context", s.handleGetContext)
	mux.HandleFunc("PUT /context", s.handleSetContext)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("GET /tree", s.handleTree)
	mux.HandleFunc("PUT /tree/alignments", s.handleAlignments)
	mux.HandleFunc("POST /tree/reservations", s.handleReservations)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /ws", webSocketHandler(s.hub, server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, s.orch.Status))
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	unsubscribe := s.orch.SubscribeStatus(s.hub.BroadcastStatus)
	defer unsubscribe()

	if s.limiter != nil {
		go s.limiter.sweepLoop(hubCtx.Done())
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	if s.cfg.Auth.Enabled {
		logging.SecurityEvent("authentication_configured", "api", "enabled", true)
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}
	logging.ServerStartup("rest_api", "http", s.cfg.Port,
		"host", s.cfg.Host,
		"websocket_protocol", "ws",
		"rate_limited", s.limiter != nil)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.Info("api server stopped")
	return nil
}
