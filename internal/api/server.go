package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"prop-risk-engine-go/internal/config"
	"prop-risk-engine-go/internal/risk"
	"prop-risk-engine-go/internal/store"
	"prop-risk-engine-go/internal/trading"
)

// Server provides the HTTP interface to accounts, trades and risk checks.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	logger    *zap.Logger
	store     *store.Store
	evaluator *risk.Evaluator
	trading   *trading.Service
}

// NewServer creates a Server listening on cfg.Port.
func NewServer(cfg *config.Server, logger *zap.Logger, st *store.Store, evaluator *risk.Evaluator, svc *trading.Service) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.Named("api-server"),
		store:     st,
		evaluator: evaluator,
		trading:   svc,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthHandler)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/plans", s.plansHandler)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.registerHandler)

			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", s.accountHandler)
				r.Get("/risk/check", s.riskCheckHandler)
				r.Get("/risk/metrics", s.riskMetricsHandler)
				r.Get("/can-trade", s.canTradeHandler)
				r.Get("/trades", s.tradesHandler)
				r.Post("/trades", s.openTradeHandler)
				r.Post("/trades/{positionID}/close", s.closeTradeHandler)
				r.Get("/challenges", s.challengesHandler)
				r.Post("/challenge", s.purchaseChallengeHandler)
				r.Get("/statistics", s.statisticsHandler)
			})
		})
	})
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting API server", zap.String("address", ln.Addr().String()))
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
