package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/petalworks/coldchain-core/internal/device"
	"github.com/petalworks/coldchain-core/internal/telemetry"
)

// submitRequest is the POST /telemetry body. It matches the MQTT
// submission document so gateways can reuse one encoder for both paths.
type submitRequest struct {
	DeviceID   string                 `json:"device_id"`
	ShipmentID string                 `json:"shipment_id,omitempty"`
	Readings   telemetry.Measurements `json:"readings"`
	Timestamp  string                 `json:"timestamp"`
}

// submitResponse acknowledges one accepted reading.
type submitResponse struct {
	ReadingID      string `json:"reading_id"`
	AlertTriggered bool   `json:"alert_triggered"`
	Status         string `json:"status"`
}

// handleSubmitReading accepts one telemetry submission from a field device.
func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var recordedAt time.Time
	if req.Timestamp != "" {
		var err error
		recordedAt, err = time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeValidationError(w, "timestamp must be ISO-8601")
			return
		}
	}

	result, err := s.pipeline.Ingest(r.Context(), telemetry.SubmitPayload{
		DeviceExternalID: req.DeviceID,
		ShipmentCode:     req.ShipmentID,
		Measurements:     req.Readings,
		RecordedAt:       recordedAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, telemetry.ErrInvalidPayload):
			writeValidationError(w, err.Error())
		case errors.Is(err, device.ErrRegistration), errors.Is(err, telemetry.ErrStorage):
			writeInternalError(w, "failed to store reading; retry later")
		default:
			writeInternalError(w, "failed to store reading")
		}
		return
	}

	status := "stored"
	if result.AlertTriggered {
		status = "alert_raised"
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		ReadingID:      result.ReadingID,
		AlertTriggered: result.AlertTriggered,
		Status:         status,
	})
}

// handleQueryReadings returns recent readings with page statistics.
//
// Query parameters:
//   - shipment_id: filter by shipment code
//   - device_id: filter by device external ID
//   - limit: page size (default 100, capped at 500)
func (s *Server) handleQueryReadings(w http.ResponseWriter, r *http.Request) {
	filter := telemetry.Filter{
		ShipmentCode:     r.URL.Query().Get("shipment_id"),
		DeviceExternalID: r.URL.Query().Get("device_id"),
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	// Query never fails: store outages produce a demo-flagged response.
	result := s.query.Query(r.Context(), filter)
	writeJSON(w, http.StatusOK, result)
}
