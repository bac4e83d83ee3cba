// Package api exposes schedule and slot availability over a read-only HTTP API.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/config"
	"github.com/Shorlotik/Bot-Stomatologija/internal/metrics"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// APIKeyHeader carries the client key when one is configured.
const APIKeyHeader = "X-API-Key"

// Scheduler is the part of the scheduling engine the API reads from.
type Scheduler interface {
	ResolveSchedule(ctx context.Context, date time.Time) (model.Window, bool, error)
	IsDateAvailableFor(ctx context.Context, date time.Time, restricted bool) (bool, error)
	ComputeAvailableSlots(ctx context.Context, date time.Time, durationMinutes int, restricted bool) ([]time.Time, error)
	RestrictedMode() model.RestrictedMode
	Location() *time.Location
}

// CatalogSource returns the current service catalog.
type CatalogSource interface {
	Catalog() model.Catalog
}

// HTTPServer serves the API.
type HTTPServer struct {
	schedule Scheduler
	catalog  CatalogSource
	apiKey   string
	server   *http.Server
	log      zerolog.Logger
}

// NewHTTPServer builds the router and server for cfg.
func NewHTTPServer(cfg config.APIConfig, schedule Scheduler, catalog CatalogSource, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		schedule: schedule,
		catalog:  catalog,
		apiKey:   cfg.APIKey,
		log:      logger.With().Str("component", "api").Logger(),
	}
	port := cfg.Port
	if port == 0 {
		port = 8080
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", APIKeyHeader},
			MaxAge:         300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/services", s.handleServices)
		r.Get("/schedule/{date}", s.handleSchedule)
		r.Get("/slots", s.handleSlots)
		r.Get("/dates/{date}/availability", s.handleDateAvailability)
	})
	return r
}

// Start listens until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.IncHTTP(route, status)

		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
