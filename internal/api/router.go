package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nerrad567/rustfs-launcher/internal/panel"
)

// healthCheckTimeout bounds each component check in the health endpoint.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		// Process commands
		r.Post("/launch", s.handleLaunch)
		r.Post("/validate", s.handleValidate)
		r.Post("/diagnose", s.handleDiagnose)
		r.Post("/terminate", s.handleTerminate)

		// Log snapshots
		r.Route("/logs", func(r chi.Router) {
			r.Get("/app", s.handleAppLogs)
			r.Get("/process", s.handleProcessLogs)
		})

		// Run history
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	// Log viewer UI (embedded via go:embed)
	r.Handle("/*", panel.Handler(s.cfg.PanelDir))

	return r
}

// wsPath returns the WebSocket route under /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return "/" + strings.TrimPrefix(s.wsCfg.Path, "/")
}

// handleHealth returns the server health status.
// Each configured infrastructure component is checked; any failure
// reports the server as degraded but still answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.health))

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	resp := map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"ws_clients":     s.hub.ClientCount(),
	}
	if len(components) > 0 {
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}
