package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/brandflow/hookd/internal/config"
	"github.com/brandflow/hookd/internal/dispatch"
	"github.com/brandflow/hookd/internal/registry"
)

type Server struct {
	cfg        config.ServerConfig
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	router     *chi.Mux
	log        zerolog.Logger
	http       *http.Server
}

func NewServer(cfg config.ServerConfig, reg *registry.Registry, dispatcher *dispatch.Dispatcher, log zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		reg:        reg,
		dispatcher: dispatcher,
		log:        log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	subHandler := NewSubscriptionHandler(s.reg, s.dispatcher)
	dispatchHandler := NewDispatchHandler(s.dispatcher)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(IdentityMiddleware)

		r.Get("/events", subHandler.Catalog)
		r.Get("/stats", subHandler.TenantStats)

		r.Post("/subscriptions", subHandler.Create)
		r.Get("/subscriptions", subHandler.List)
		r.Get("/subscriptions/{id}", subHandler.Get)
		r.Put("/subscriptions/{id}", subHandler.Update)
		r.Delete("/subscriptions/{id}", subHandler.Delete)
		r.Post("/subscriptions/{id}/test", subHandler.Test)
		r.Post("/subscriptions/{id}/regenerate-secret", subHandler.RegenerateSecret)
		r.Patch("/subscriptions/{id}/toggle", subHandler.Toggle)
		r.Get("/subscriptions/{id}/attempts", subHandler.Attempts)

		r.Post("/dispatch", dispatchHandler.Dispatch)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
