// File: internal/infra/http/server.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"stripe-invoice-bridge/internal/config"
	"stripe-invoice-bridge/internal/usecase"
)

type Server struct {
	cfg    *config.Config
	uc     usecase.ReconcileUseCase
	auth   *AuthManager
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(cfg *config.Config, uc usecase.ReconcileUseCase, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:  cfg,
		uc:   uc,
		auth: NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL),
		log:  logger,
	}
}

// Handler builds the full route tree. Split from Start so tests can mount
// it on httptest servers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/webhook/stripe", s.handleStripeWebhook)

	r.Route("/admin", func(r chi.Router) {
		if s.cfg.Admin.LocalhostOnly {
			r.Use(localhostOnly)
		}
		r.Post("/login", s.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Post("/process-payment/{id}", s.handleProcessPayment)
			r.Post("/process-refund/{id}", s.handleProcessRefund)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
