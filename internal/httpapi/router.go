package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(serverErrorLoggerMiddleware(d.Logger))
	r.Use(corsMiddleware(d.CORSOrigins))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	s := server{
		gw:            d.Gateway,
		log:           d.Logger,
		version:       d.Version,
		hasDatabase:   d.HasDatabase,
		hasOpenAI:     d.HasOpenAI,
		chatMaxTokens: d.ChatMaxTokens,
	}

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(newIPRateLimiter(d.RateLimitPerMinute).middleware)
		r.Get("/db-ping", s.handleDBPing)
		r.Get("/menu", s.handleMenu)
		r.Post("/assistant", s.handleAssistant)
		r.Post("/haiku", s.handleHaiku)
	})

	return r
}
