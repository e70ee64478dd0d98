package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tracker-grid/internal/auth"
	"github.com/nerrad567/tracker-grid/internal/panel"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}

	// Browser view of the grid (embedded via go:embed)
	if s.cfg.Panel.Enabled {
		r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.Panel.Dir)))
		r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket authenticates with a ticket, not a bearer token
		r.Get(wsPath, s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermGridRead))
				r.Post("/auth/ws-ticket", s.handleWSTicket)
				r.Get("/grid", s.handleGetGrid)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermGridControl))
				r.Put("/grid/filter", s.handleSetFilter)
				r.Delete("/grid/filter", s.handleClearFilter)
				r.Put("/grid/sort", s.handleSetSort)
				r.Post("/grid/sort/{column}", s.handleToggleSort)
			})

			r.With(s.requirePermission(auth.PermDeviceReconnect)).
				Post("/devices/{id}/reconnect", s.handleReconnect)

			r.With(s.requirePermission(auth.PermHistoryRead)).
				Get("/reconnects", s.handleListReconnects)
		})
	})

	return r
}

// componentHealth is one entry of the health response.
type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth returns the server health status.
// Components that fail their probe make the overall status "degraded";
// the endpoint still answers 200 so it can serve as a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]componentHealth, len(s.checks))

	for name, check := range s.checks {
		if check == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()

		if err != nil {
			status = "degraded"
			components[name] = componentHealth{Status: "error", Error: err.Error()}
			continue
		}
		components[name] = componentHealth{Status: "ok"}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.version,
		"devices":    len(s.engine.Snapshot().Records),
		"ws_clients": s.hub.ClientCount(),
		"components": components,
	})
}
