package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database probe inside /health.
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
		// Health check
		r.Get("/health", s.handleHealth)

		// Telemetry endpoints
		r.Route("/telemetry", func(r chi.Router) {
			r.Post("/", s.handleSubmitReading)
			r.Get("/", s.handleQueryReadings)
		})

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{external_id}", s.handleGetDevice)
		})

		// Shipment endpoints
		r.Route("/shipments", func(r chi.Router) {
			r.Get("/", s.handleListShipments)
			r.Post("/", s.handleUpsertShipment)

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", s.handleGetShipment)
				r.Get("/alerts", s.handleListShipmentAlerts)
			})
		})

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
//
// The database probe is advisory: a failing store degrades the status
// but the endpoint itself still answers 200 so load balancers can tell
// "unhealthy" from "gone".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check database probe failed", "error", err)
			status = "degraded"
		}
	}

	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"devices": s.registry.GetDeviceCount(),
		"clients": clients,
	})
}
