// Package api exposes the highlight trigger over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thedurancode/aitickets/internal/config"
	"github.com/Thedurancode/aitickets/internal/pipeline"
)

// Highlights is the part of the worker the API drives.
type Highlights interface {
	Trigger(eventID int64) pipeline.TriggerStatus
	Status(eventID int64) (pipeline.RunStatus, bool)
}

// Subscriber upgrades websocket subscriptions.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Options configures the router. A nil Subscriber disables /ws.
type Options struct {
	Server     config.ServerConfig
	Subscriber Subscriber
}

// NewRouter builds the HTTP surface.
func NewRouter(logger zerolog.Logger, highlights Highlights, opts Options) http.Handler {
	h := &handlers{
		logger:     logger.With().Str("component", "api").Logger(),
		highlights: highlights,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.With(triggerLimit(opts.Server.TriggerPerMin)).Post("/api/events/{id}/highlight", h.trigger)
	r.Get("/api/events/{id}/highlight", h.status)

	if opts.Subscriber != nil {
		r.Get("/ws", opts.Subscriber.ServeWS)
	}
	return r
}

// triggerLimit caps triggers per client IP. perMinute <= 0 disables it.
func triggerLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			ev := logger.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				ev = logger.Warn()
			}
			ev.Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}
