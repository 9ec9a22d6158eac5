package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/shohag/hookrelay/internal/config"
	"github.com/shohag/hookrelay/internal/dispatch"
	"github.com/shohag/hookrelay/internal/receiver"
	"github.com/shohag/hookrelay/internal/storage"
)

type Server struct {
	cfg        config.ServerConfig
	rcvCfg     config.ReceiverConfig
	store      storage.Storage
	dispatcher *dispatch.Dispatcher
	receiver   *receiver.Receiver
	router     *chi.Mux
	log        zerolog.Logger
	http       *http.Server
}

func NewServer(cfg config.ServerConfig, rcvCfg config.ReceiverConfig, store storage.Storage, d *dispatch.Dispatcher, rc *receiver.Receiver, log zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		rcvCfg:     rcvCfg,
		store:      store,
		dispatcher: d,
		receiver:   rc,
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

	epHandler := NewEndpointHandler(s.store)
	evHandler := NewEventHandler(s.store, s.dispatcher, s.log)
	dlvHandler := NewDeliveryHandler(s.store)
	flHandler := NewFailureHandler(s.store, s.dispatcher)
	inHandler := NewInboundHandler(s.receiver, s.rcvCfg, s.log)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Inbound webhooks accept any method; the receiver authenticates them.
	r.HandleFunc("/webhooks", inHandler.Receive)
	r.HandleFunc("/webhooks/{provider:[a-z0-9_-]+}", inHandler.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		// Endpoints
		r.Post("/endpoints", epHandler.Create)
		r.Get("/endpoints", epHandler.List)
		r.Get("/endpoints/{id}", epHandler.Get)
		r.Put("/endpoints/{id}", epHandler.Update)
		r.Delete("/endpoints/{id}", epHandler.Delete)
		r.Patch("/endpoints/{id}/toggle", epHandler.Toggle)

		// Outbound events
		r.Post("/events", evHandler.Publish)

		// Deliveries
		r.Get("/deliveries", dlvHandler.List)
		r.Get("/deliveries/{id}", dlvHandler.Get)

		// Dead letters
		r.Get("/failures", flHandler.List)
		r.Get("/failures/{id}", flHandler.Get)
		r.Post("/failures/{id}/retry", flHandler.Retry)
	})

	return r
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

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
