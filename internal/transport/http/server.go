// Package http exposes the dashboard-facing query/mutation surface and the
// inbound Stripe webhook endpoint.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jia-app/billingservice/internal/auth"
	"github.com/jia-app/billingservice/internal/billing/usecase"
	"github.com/jia-app/billingservice/internal/log"
)

// Server is the HTTP transport for the billing service.
type Server struct {
	catalog      *usecase.Catalog
	checkout     *usecase.Checkout
	synchronizer *usecase.Synchronizer
	verifier     WebhookVerifier
	sessions     *auth.JWTValidator // nil disables authenticated routes
	insecure     bool               // development mode: redirect targets use http

	httpServer *http.Server
}

// Config holds HTTP server configuration.
type Config struct {
	Port     int
	Insecure bool
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, catalog *usecase.Catalog, checkout *usecase.Checkout, synchronizer *usecase.Synchronizer, verifier WebhookVerifier, sessions *auth.JWTValidator) *Server {
	s := &Server{
		catalog:      catalog,
		checkout:     checkout,
		synchronizer: synchronizer,
		verifier:     verifier,
		sessions:     sessions,
		insecure:     cfg.Insecure,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.traced)
	r.Use(s.measured)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhooks/stripe", s.handleStripeWebhook)

	r.Route("/api", func(r chi.Router) {
		r.With(s.withSession).Get("/products", s.handleListProducts)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession, s.requireSession)
			r.Get("/subscriptions", s.handleActiveSubscriptions)
			r.Get("/subscription-status", s.handleSubscriptionStatus)
			r.Post("/checkout", s.handleStartCheckout)
			r.Post("/portal", s.handleStartPortal)
		})
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Serve starts the HTTP server and blocks until it stops.
func (s *Server) Serve(ctx context.Context) error {
	log.Info(ctx, "HTTP server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the server's root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// baseURL derives the redirect-target origin from the serving request.
func (s *Server) baseURL(r *http.Request) string {
	scheme := "https"
	if s.insecure {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
