package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/petalworks/coldchain-core/internal/device"
	"github.com/petalworks/coldchain-core/internal/infrastructure/config"
	"github.com/petalworks/coldchain-core/internal/infrastructure/logging"
	"github.com/petalworks/coldchain-core/internal/shipment"
	"github.com/petalworks/coldchain-core/internal/telemetry"
)

// testServer creates a Server wired to real repositories backed by
// in-memory SQLite.
func testServer(t *testing.T) *Server {
	t.Helper()
	return testServerOnPort(t, 0)
}

func testServerOnPort(t *testing.T, port int) *Server {
	t.Helper()

	db := setupTestDB(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	shipments := shipment.NewSQLiteRepository(db)
	readings := telemetry.NewSQLiteReadingRepository(db)
	alerts := telemetry.NewSQLiteAlertRepository(db)
	emitter := telemetry.NewEmitter(alerts)
	pipeline := telemetry.NewPipeline(registry, shipments, readings, emitter, 5*time.Second)
	query := telemetry.NewQueryService(readings, 5*time.Second)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: port,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:    log,
		Registry:  registry,
		Shipments: shipments,
		Alerts:    alerts,
		Pipeline:  pipeline,
		Query:     query,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv
}

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL DEFAULT 'temperature_humidity',
			display_name TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			last_seen_at TEXT,
			battery_level REAL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE shipments (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'in_transit',
			min_temp REAL NOT NULL,
			max_temp REAL NOT NULL,
			min_humidity REAL NOT NULL,
			max_humidity REAL NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE readings (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL REFERENCES devices(id),
			shipment_id TEXT REFERENCES shipments(id),
			temperature REAL,
			humidity REAL,
			latitude REAL,
			longitude REAL,
			altitude REAL,
			battery_level REAL,
			signal_strength REAL,
			is_alert INTEGER NOT NULL DEFAULT 0,
			alert_type TEXT,
			recorded_at TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE alerts (
			id TEXT PRIMARY KEY,
			shipment_id TEXT NOT NULL REFERENCES shipments(id),
			reading_id TEXT NOT NULL REFERENCES readings(id),
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			actual_value REAL NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// seedShipment upserts a shipment through the server's repository.
func seedShipment(t *testing.T, srv *Server, code string) *shipment.Shipment {
	t.Helper()

	shp := &shipment.Shipment{
		ID:          uuid.New().String(),
		Code:        code,
		Status:      shipment.StatusInTransit,
		MinTemp:     2.0,
		MaxTemp:     7.0,
		MinHumidity: 60.0,
		MaxHumidity: 90.0,
	}
	if err := srv.shipments.Upsert(context.Background(), shp); err != nil {
		t.Fatalf("seeding shipment %s: %v", code, err)
	}
	return shp
}

// submitBody builds a POST /telemetry body with one temperature reading.
func submitBody(deviceID, shipmentCode string, temp float64) string {
	return fmt.Sprintf(`{
		"device_id": %q,
		"shipment_id": %q,
		"readings": {"temperature": %g},
		"timestamp": "2026-03-01T12:00:00Z"
	}`, deviceID, shipmentCode, temp)
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Telemetry Submission Tests ────────────────────────────────────

func TestSubmitReading_Stored(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	seedShipment(t, srv, "SHP-1042")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(submitBody("TRUCK-7-FRONT", "SHP-1042", 4.5)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.ReadingID == "" {
		t.Error("expected reading_id to be set")
	}
	if resp.AlertTriggered {
		t.Error("in-range reading should not trigger an alert")
	}
	if resp.Status != "stored" {
		t.Errorf("status = %q, want stored", resp.Status)
	}
}

func TestSubmitReading_AlertRaised(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	seedShipment(t, srv, "SHP-1042")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(submitBody("TRUCK-7-FRONT", "SHP-1042", 8.5)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !resp.AlertTriggered {
		t.Error("out-of-range reading should trigger an alert")
	}
	if resp.Status != "alert_raised" {
		t.Errorf("status = %q, want alert_raised", resp.Status)
	}
}

func TestSubmitReading_AutoRegistersDevice(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(submitBody("TRUCK-9-REAR", "", 4.0)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	// Device should now be resolvable via the registry endpoint
	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/TRUCK-9-REAR", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("get device status = %d, want %d", w.Code, http.StatusOK)
	}

	var dev device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &dev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dev.ExternalID != "TRUCK-9-REAR" {
		t.Errorf("external_id = %q, want TRUCK-9-REAR", dev.ExternalID)
	}
}

func TestSubmitReading_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSubmitReading_Validation(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing device_id",
			body: `{"readings": {"temperature": 4.0}, "timestamp": "2026-03-01T12:00:00Z"}`,
		},
		{
			name: "empty readings",
			body: `{"device_id": "TRUCK-7", "readings": {}, "timestamp": "2026-03-01T12:00:00Z"}`,
		},
		{
			name: "missing timestamp",
			body: `{"device_id": "TRUCK-7", "readings": {"temperature": 4.0}}`,
		},
		{
			name: "malformed timestamp",
			body: `{"device_id": "TRUCK-7", "readings": {"temperature": 4.0}, "timestamp": "yesterday"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}

			var errResp Error
			if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if errResp.Code != ErrCodeValidation {
				t.Errorf("code = %q, want %q", errResp.Code, ErrCodeValidation)
			}
		})
	}
}

func TestSubmitReading_UnknownShipmentStillStored(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(submitBody("TRUCK-7", "SHP-GHOST", 30.0)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.AlertTriggered {
		t.Error("reading without a known shipment must not alert")
	}
}

// ─── Telemetry Query Tests ─────────────────────────────────────────

func TestQueryReadings(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	seedShipment(t, srv, "SHP-1042")

	for _, temp := range []float64{3.5, 4.5, 8.5} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(submitBody("TRUCK-7", "SHP-1042", temp)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("submit status = %d; body: %s", w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry?shipment_id=SHP-1042", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d, want %d", w.Code, http.StatusOK)
	}

	var result telemetry.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result.IsDemo {
		t.Error("live store should not produce a demo response")
	}
	if len(result.Readings) != 3 {
		t.Fatalf("readings = %d, want 3", len(result.Readings))
	}
	if result.Stats.Count != 3 || result.Stats.AlertCount != 1 {
		t.Errorf("stats = %+v, want count 3 alert_count 1", result.Stats)
	}
}

func TestQueryReadings_FilterByDevice(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	for _, dev := range []string{"TRUCK-1", "TRUCK-2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(submitBody(dev, "", 4.0)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("submit status = %d", w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry?device_id=TRUCK-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var result telemetry.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(result.Readings) != 1 {
		t.Fatalf("readings = %d, want 1", len(result.Readings))
	}
	if result.Readings[0].DeviceExternalID != "TRUCK-1" {
		t.Errorf("device = %q, want TRUCK-1", result.Readings[0].DeviceExternalID)
	}
}

func TestQueryReadings_InvalidLimit(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	for _, limit := range []string{"abc", "0", "-5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry?limit="+limit, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want %d", limit, w.Code, http.StatusBadRequest)
		}
	}
}

// ─── Device Endpoint Tests ─────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/GHOST-SENSOR", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Shipment Endpoint Tests ───────────────────────────────────────

func TestUpsertAndGetShipment(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	body := `{
		"code": "SHP-2001",
		"status": "in_transit",
		"min_temp": 2.0,
		"max_temp": 7.0,
		"min_humidity": 60.0,
		"max_humidity": 90.0
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("upsert status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created shipment.Shipment
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if created.ID == "" {
		t.Error("expected shipment ID to be auto-generated")
	}

	// Get by code
	req = httptest.NewRequest(http.MethodGet, "/api/v1/shipments/SHP-2001", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	var got shipment.Shipment
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	if got.MaxTemp != 7.0 {
		t.Errorf("max_temp = %v, want 7.0", got.MaxTemp)
	}
}

func TestUpsertShipment_KeepsOriginalID(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	original := seedShipment(t, srv, "SHP-2002")

	body := `{"code": "SHP-2002", "min_temp": 0.0, "max_temp": 5.0, "min_humidity": 50.0, "max_humidity": 95.0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipments", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	var saved shipment.Shipment
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if saved.ID != original.ID {
		t.Errorf("ID = %q, want original %q", saved.ID, original.ID)
	}
	if saved.MaxTemp != 5.0 {
		t.Errorf("max_temp = %v, want updated 5.0", saved.MaxTemp)
	}
}

func TestUpsertShipment_Validation(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing code", `{"min_temp": 2.0, "max_temp": 7.0}`},
		{"inverted temperature bounds", `{"code": "SHP-X", "min_temp": 7.0, "max_temp": 2.0}`},
		{"inverted humidity bounds", `{"code": "SHP-X", "min_temp": 2.0, "max_temp": 7.0, "min_humidity": 90.0, "max_humidity": 60.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/shipments", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestGetShipment_NotFound(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shipments/SHP-GHOST", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListShipmentAlerts(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	seedShipment(t, srv, "SHP-1042")

	// Trigger one alert
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry", strings.NewReader(submitBody("TRUCK-7", "SHP-1042", 8.5)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d; body: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/shipments/SHP-1042/alerts", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("alerts status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Alerts []telemetry.Alert `json:"alerts"`
		Count  int               `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Alerts[0].AlertType != telemetry.AlertTemperatureHigh {
		t.Errorf("alert_type = %q, want temperature_high", resp.Alerts[0].AlertType)
	}
	if resp.Alerts[0].Severity != telemetry.SeverityCritical {
		t.Errorf("severity = %q, want critical", resp.Alerts[0].Severity)
	}
}

func TestListShipmentAlerts_UnknownShipment(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shipments/SHP-GHOST/alerts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{telemetry.EventAlertRaised: {}},
	}
	hub.Register(client)

	hub.Broadcast(telemetry.EventAlertRaised, map[string]any{"shipment_id": "shp-1"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != telemetry.EventAlertRaised {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, telemetry.EventAlertRaised)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Client subscribed to alerts only
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{telemetry.EventAlertRaised: {}},
	}
	hub.Register(client)

	hub.Broadcast(telemetry.EventReadingStored, map[string]any{"id": "r-1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
		// OK — no message received
	}
}

func TestHub_ClientCount(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

// ─── Server Lifecycle Tests ────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	port := 19090
	srv := testServerOnPort(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	_, err = http.Get("http://" + addr + "/api/v1/health")
	if err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	port := 19091
	srv := testServerOnPort(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t.Cleanup(func() { srv.Close() })

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	wsURL := fmt.Sprintf("ws://127.0.0.1:%d/api/v1/ws", port)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	// Subscribe to alert events
	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{telemetry.EventAlertRaised}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Errorf("subscribe response = %+v", resp)
	}

	// Broadcast through the hub the pipeline would use
	srv.hub.Broadcast(telemetry.EventAlertRaised, map[string]string{"shipment_id": "shp-1"})

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.Type != WSTypeEvent || resp.EventType != telemetry.EventAlertRaised {
		t.Errorf("broadcast = %+v, want alert event", resp)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	port := 19092
	srv := testServerOnPort(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t.Cleanup(func() { srv.Close() })

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	wsURL := fmt.Sprintf("ws://127.0.0.1:%d/api/v1/ws", port)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong {
		t.Errorf("response type = %s, want pong", resp.Type)
	}
	if resp.ID != "ping-1" {
		t.Errorf("response ID = %s, want ping-1", resp.ID)
	}
}
