// Package server wires the HTTP router for the spin wheel service.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/xc9973/spinwheel-service/internal/config"
	"github.com/xc9973/spinwheel-service/internal/handler"
	"github.com/xc9973/spinwheel-service/internal/pkg/db"
)

// Server hosts the HTTP API.
type Server struct {
	httpServer *http.Server
}

// New builds the router and HTTP server.
func New(cfg *config.ServerConfig, spinHandler *handler.SpinHandler, pool *db.Pool) *Server {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/health", handleHealth(pool))

	r.Route("/api/spin", func(r chi.Router) {
		r.Get("/status", spinHandler.Status)
		r.Post("/", spinHandler.Spin)
		r.Post("/bonus", spinHandler.Bonus)
		r.Get("/history", spinHandler.History)
		r.Get("/rewards", spinHandler.Rewards)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports liveness, including database reachability when a
// pool is configured.
func handleHealth(pool *db.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.HealthCheck(ctx); err != nil {
				log.Error().Err(err).Msg("health check failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"success":false,"message":"database unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Server is running"}`))
	}
}

// requestLogger logs each request with method, path, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
