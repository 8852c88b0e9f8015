package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/adred-codev/filerelay/internal/admission"
	"github.com/adred-codev/filerelay/internal/audit"
	"github.com/adred-codev/filerelay/internal/config"
	"github.com/adred-codev/filerelay/internal/core"
	"github.com/adred-codev/filerelay/internal/identity"
	"github.com/adred-codev/filerelay/internal/metrics"
)

// Server binds the Hub to an HTTP listener, plus a handful of
// ambient endpoints (health, metrics, bootstrap) the core never sees,
// grounded on go-server's Server.setupHTTPServer/waitForShutdown
// shape but cut down to what a single-purpose relay needs.
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	metricsSrv *http.Server
	hub        *Hub
	idm        *identity.Manager
	logger     zerolog.Logger
}

// New constructs a Server. clients/sessions/guard/m/pub are already
// wired by the caller (cmd/relayd/main.go); Server only adds the HTTP
// transport on top.
func New(cfg config.Config, clients *core.ClientRegistry, sessions *core.SessionRegistry, idm *identity.Manager, guard *admission.Guard, m *metrics.Metrics, pub *audit.Publisher, logger zerolog.Logger) *Server {
	hub := NewHub(cfg.Server, clients, sessions, idm, guard, m, pub, logger)

	s := &Server{cfg: cfg, hub: hub, idm: idm, logger: logger.With().Str("component", "server").Logger()}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeHTTP)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/auth/bootstrap", s.handleBootstrap)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		s.metricsSrv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metricsMux}
	}

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"clients":   s.hub.connCount(),
	})
}

// handleBootstrap stands in for the out-of-scope captcha-gated
// onboarding flow (spec §1 Non-goals): given a privateId, it issues a
// signed bootstrap token. A real deployment gates this behind human
// verification; this endpoint only exercises internal/identity.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PrivateID string `json:"privateId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PrivateID == "" {
		http.Error(w, "privateId required", http.StatusBadRequest)
		return
	}

	token, err := s.idm.IssueBootstrapToken(req.PrivateID)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP (and, if enabled, metrics) listeners until ctx
// is cancelled, then shuts both down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.metricsSrv != nil {
		go func() {
			s.logger.Info().Str("addr", s.metricsSrv.Addr).Msg("metrics listening")
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		s.logger.Error().Err(err).Msg("server error, shutting down")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("http server shutdown error")
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("metrics server shutdown error")
		}
	}
	s.logger.Info().Msg("server shutdown complete")
	return nil
}

func (h *Hub) connCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
