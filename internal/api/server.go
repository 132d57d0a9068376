package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/template-marketplace/internal/config"
	"github.com/terra-clan/template-marketplace/internal/metrics"
	"github.com/terra-clan/template-marketplace/internal/models"
)

// Catalog is the read side of the template snapshot holder
type Catalog interface {
	Snapshot() []*models.Record
	Get(id int) *models.Record
	Len() int
}

// Server represents the HTTP API server
type Server struct {
	config  config.ServerConfig
	metrics config.MetricsConfig
	router  *chi.Mux
	catalog Catalog
	hub     *Hub
}

// NewServer creates a new API server. hub may be nil, in which case the
// live stream endpoint is not mounted.
func NewServer(cfg *config.Config, catalog Catalog, hub *Hub) *Server {
	s := &Server{
		config:  cfg.Server,
		metrics: cfg.Metrics,
		catalog: catalog,
		hub:     hub,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check (outside versioned API)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	if s.metrics.Enabled {
		r.Handle(s.metrics.Path, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// The live stream is long-lived and must not be cut by the request timeout.
		if s.hub != nil {
			r.Get("/live", s.handleLive)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", s.handleListTemplates)
				r.Get("/{id}", s.handleGetTemplate)
			})
			r.Get("/stats", s.handleStats)
			r.Get("/channels", s.handleChannels)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog and counts them by route
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			metrics.RecordHTTPRequest(r.Method, route, status)

			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
