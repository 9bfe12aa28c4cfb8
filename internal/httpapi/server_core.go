package httpapi

import (
	"context"
	"net/http"
	"time"

	"restoassist/internal/db"
	"restoassist/internal/gateway"
	"restoassist/internal/resource"
	"restoassist/internal/store"
)

const serviceName = "restaurant_assistant"

func (s server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   serviceName,
		"version":   s.version,
		"endpoints": map[string]string{
			"GET /health":     "service status and dependency states",
			"GET /healthz":    "liveness probe",
			"GET /db-ping":    "database round trip",
			"GET /menu":       "active menu items",
			"GET /metrics":    "prometheus metrics",
			"POST /assistant": "chat with the restaurant assistant",
			"POST /haiku":     "short poem on a topic",
		},
	})
}

type healthResponse struct {
	OK          bool                     `json:"ok"`
	Service     string                   `json:"service"`
	Timestamp   string                   `json:"timestamp"`
	Version     string                   `json:"version"`
	HasOpenAI   bool                     `json:"has_openai"`
	HasDatabase bool                     `json:"has_database"`
	Degraded    bool                     `json:"degraded"`
	Database    gateway.DependencyHealth `json:"database"`
	AI          gateway.DependencyHealth `json:"ai"`
}

// handleHealth always answers 200: a degraded dependency is reported, not
// treated as a failure of the service itself.
func (s server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.gw.Health()
	writeJSON(w, http.StatusOK, healthResponse{
		OK:          true,
		Service:     serviceName,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     s.version,
		HasOpenAI:   s.hasOpenAI,
		HasDatabase: s.hasDatabase,
		Degraded:    h.Degraded(),
		Database:    h.Database,
		AI:          h.AI,
	})
}

func (s server) handleDBPing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var version string
	var serverTime time.Time
	err := s.gw.WithConnection(ctx, func(ctx context.Context, q db.Querier) error {
		return q.QueryRow(ctx, `select version(), current_timestamp`).Scan(&version, &serverTime)
	})
	if err != nil {
		s.writeDependencyError(w, r, "db ping failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"database_version": version,
		"server_time":      serverTime.UTC().Format(time.RFC3339Nano),
	})
}

// handleMenu falls back to the sample menu when the database is disabled or
// the query fails. An exhausted pool is reported as 503 so clients retry.
func (s server) handleMenu(w http.ResponseWriter, r *http.Request) {
	if !s.gw.DatabaseReady() {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":   true,
			"menu": store.SampleMenu(),
			"note": "database unavailable, showing sample menu",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var items []store.MenuItem
	err := s.gw.WithConnection(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		items, err = store.ListMenu(ctx, q)
		return err
	})
	if resource.KindOf(err) == resource.KindResourceExhausted {
		s.writeDependencyError(w, r, "list menu: pool exhausted", err)
		return
	}
	if err != nil {
		logWarn(r.Context(), s.log, "list menu failed, serving sample menu", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":   true,
			"menu": store.SampleMenu(),
			"note": "menu unavailable, showing sample menu",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "menu": items})
}
