package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petalworks/coldchain-core/internal/shipment"
)

// defaultAlertPageSize caps the alert listing when no limit is given.
const defaultAlertPageSize = 50

// handleListShipments returns all shipments ordered by code.
func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	shipments, err := s.shipments.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list shipments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": shipments, "count": len(shipments)})
}

// handleGetShipment returns a single shipment by code.
func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	shp, err := s.shipments.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, shipment.ErrShipmentNotFound) {
			writeNotFound(w, "shipment not found")
			return
		}
		writeInternalError(w, "failed to get shipment")
		return
	}

	writeJSON(w, http.StatusOK, shp)
}

// handleUpsertShipment creates or updates a shipment and its safety envelope.
//
// Used by upstream order management to seed consignments before the
// first reading arrives.
func (s *Server) handleUpsertShipment(w http.ResponseWriter, r *http.Request) {
	var shp shipment.Shipment
	if err := json.NewDecoder(r.Body).Decode(&shp); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if shp.Code == "" {
		writeValidationError(w, "code is required")
		return
	}
	if shp.MinTemp > shp.MaxTemp {
		writeValidationError(w, "min_temp must not exceed max_temp")
		return
	}
	if shp.MinHumidity > shp.MaxHumidity {
		writeValidationError(w, "min_humidity must not exceed max_humidity")
		return
	}

	if shp.ID == "" {
		shp.ID = uuid.New().String()
	}

	if err := s.shipments.Upsert(r.Context(), &shp); err != nil {
		writeInternalError(w, "failed to save shipment")
		return
	}

	// Read back the surviving row: an upsert against an existing code
	// keeps the original ID and created_at.
	saved, err := s.shipments.GetByCode(r.Context(), shp.Code)
	if err != nil {
		writeInternalError(w, "failed to save shipment")
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

// handleListShipmentAlerts returns recent alerts for a shipment, newest first.
func (s *Server) handleListShipmentAlerts(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	shp, err := s.shipments.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, shipment.ErrShipmentNotFound) {
			writeNotFound(w, "shipment not found")
			return
		}
		writeInternalError(w, "failed to get shipment")
		return
	}

	limit := defaultAlertPageSize
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	alerts, err := s.alerts.ListByShipment(r.Context(), shp.ID, limit)
	if err != nil {
		writeInternalError(w, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}
