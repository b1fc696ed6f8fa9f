package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moto-yard/internal/logging"
	"moto-yard/internal/parking"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(port, serviceName string, coordinator *parking.InstrumentedCoordinator) *Server {
	handler := NewHandler(coordinator, serviceName)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, coordinator, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: httpServer}
}

func NewRouter(handler *Handler, coordinator *parking.InstrumentedCoordinator, serviceName string) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newOccupancyCollector(coordinator),
	)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware(serviceName))
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(ActorMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sectors", handler.ListSectors)
		r.Post("/sectors", handler.CreateSector)
		r.Delete("/sectors/{code}", handler.DeleteSector)
		r.Get("/sectors/{prefix}/slots", handler.ListSectorSlots)
		r.Get("/occupancy", handler.GetOccupancy)
		r.Get("/dashboard", handler.GetDashboard)
		r.Post("/placements", handler.RegisterPlacement)
		r.Post("/departures", handler.RegisterDeparture)
		r.Get("/reports", handler.GetReport)
	})

	return r
}

func (s *Server) Start() error {
	logging.Info(context.Background(), "starting HTTP server", "addr", s.GetAddress())
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
