package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petalworks/coldchain-core/internal/device"
)

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by external ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "external_id")

	dev, err := s.registry.GetDevice(r.Context(), externalID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}
