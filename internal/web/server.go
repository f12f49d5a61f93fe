// Package web exposes the dispatcher over HTTP.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/picklepals/picklepals/internal/api"
	"github.com/picklepals/picklepals/internal/auth"
	"github.com/picklepals/picklepals/internal/coordinator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server holds the HTTP router and its dependencies.
type Server struct {
	router      *chi.Mux
	dispatcher  *api.Dispatcher
	coordinator *coordinator.Coordinator
	metrics     *Metrics
	log         logrus.FieldLogger
	maxBody     int64
}

// Config holds server configuration.
type Config struct {
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// NewServer creates a new HTTP server. Metrics are registered on reg.
func NewServer(
	dispatcher *api.Dispatcher,
	coord *coordinator.Coordinator,
	sessions *auth.SessionRegistry,
	reg *prometheus.Registry,
	log logrus.FieldLogger,
	cfg Config,
) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		dispatcher:  dispatcher,
		coordinator: coord,
		metrics:     NewMetrics(reg, sessions),
		log:         log,
		maxBody:     cfg.MaxBodyBytes,
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}

	s.setupRoutes(reg)
	return s
}

func (s *Server) setupRoutes(reg *prometheus.Registry) {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Post("/*", s.handleAPI)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs method, path, status and latency. Bodies and headers are
// never logged since they carry passwords and tokens.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"remote":     r.RemoteAddr,
		}).Debug("HTTP request")
	})
}
