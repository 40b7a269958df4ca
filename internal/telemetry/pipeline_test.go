package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petalworks/coldchain-core/internal/device"
	"github.com/petalworks/coldchain-core/internal/shipment"
)

type pipelineFixture struct {
	db       *sql.DB
	pipeline *Pipeline
	readings *SQLiteReadingRepository
	alerts   *SQLiteAlertRepository
	registry *device.Registry
}

func setupPipeline(t *testing.T) *pipelineFixture {
	t.Helper()

	db := setupTestDB(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	readings := NewSQLiteReadingRepository(db)
	alerts := NewSQLiteAlertRepository(db)
	emitter := NewEmitter(alerts)

	pipeline := NewPipeline(registry, shipment.NewSQLiteRepository(db), readings, emitter, 5*time.Second)

	return &pipelineFixture{
		db:       db,
		pipeline: pipeline,
		readings: readings,
		alerts:   alerts,
		registry: registry,
	}
}

func submitWithTemp(deviceID, shipmentCode string, temp float64) SubmitPayload {
	return SubmitPayload{
		DeviceExternalID: deviceID,
		ShipmentCode:     shipmentCode,
		Measurements:     Measurements{Temperature: &temp},
		RecordedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPipeline_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("breach with shipment raises critical alert", func(t *testing.T) {
		f := setupPipeline(t)
		shp := seedShipment(t, f.db, "SHP-1")

		result, err := f.pipeline.Ingest(ctx, submitWithTemp("S1", "SHP-1", 8.5))
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if !result.AlertTriggered {
			t.Error("AlertTriggered = false, want true")
		}
		if result.ReadingID == "" {
			t.Error("ReadingID is empty")
		}

		alerts, err := f.alerts.ListByShipment(ctx, shp.ID, 10)
		if err != nil {
			t.Fatalf("ListByShipment() error = %v", err)
		}
		if len(alerts) != 1 {
			t.Fatalf("alert count = %d, want 1", len(alerts))
		}
		if alerts[0].AlertType != AlertTemperatureHigh {
			t.Errorf("AlertType = %q, want temperature_high", alerts[0].AlertType)
		}
		if alerts[0].Severity != SeverityCritical {
			t.Errorf("Severity = %q, want critical", alerts[0].Severity)
		}
		if alerts[0].ReadingID != result.ReadingID {
			t.Errorf("ReadingID = %q, want %q", alerts[0].ReadingID, result.ReadingID)
		}
	})

	t.Run("same breach without shipment stores normally", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Ingest(ctx, submitWithTemp("S1", "", 8.5))
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if result.AlertTriggered {
			t.Error("AlertTriggered = true, want false")
		}

		stored, err := f.readings.Query(ctx, Filter{Limit: 10})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(stored) != 1 {
			t.Fatalf("reading count = %d, want 1", len(stored))
		}
		if stored[0].IsAlert {
			t.Error("IsAlert = true, want false for shipment-less reading")
		}
	})

	t.Run("unknown shipment code is not an error", func(t *testing.T) {
		f := setupPipeline(t)

		result, err := f.pipeline.Ingest(ctx, submitWithTemp("S1", "SHP-GHOST", 8.5))
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if result.AlertTriggered {
			t.Error("AlertTriggered = true, want false with unresolvable shipment")
		}
	})

	t.Run("auto-registers unknown device", func(t *testing.T) {
		f := setupPipeline(t)

		if _, err := f.pipeline.Ingest(ctx, submitWithTemp("S-NEW", "", 4.0)); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		dev, err := f.registry.GetDevice(ctx, "S-NEW")
		if err != nil {
			t.Fatalf("GetDevice() error = %v", err)
		}
		if dev.DisplayName != "Auto-registered: S-NEW" {
			t.Errorf("DisplayName = %q", dev.DisplayName)
		}
		if dev.LastSeenAt == nil {
			t.Error("LastSeenAt not updated by heartbeat")
		}
	})

	t.Run("heartbeat carries battery level", func(t *testing.T) {
		f := setupPipeline(t)
		battery := 42.0

		payload := submitWithTemp("S-BAT", "", 4.0)
		payload.Measurements.BatteryLevel = &battery
		if _, err := f.pipeline.Ingest(ctx, payload); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		dev, err := f.registry.GetDevice(ctx, "S-BAT")
		if err != nil {
			t.Fatalf("GetDevice() error = %v", err)
		}
		if dev.BatteryLevel == nil || *dev.BatteryLevel != 42.0 {
			t.Errorf("BatteryLevel = %v, want 42.0", dev.BatteryLevel)
		}
	})

	t.Run("duplicate submissions append two readings", func(t *testing.T) {
		f := setupPipeline(t)

		payload := submitWithTemp("S-DUP", "", 4.0)
		for i := 0; i < 2; i++ {
			if _, err := f.pipeline.Ingest(ctx, payload); err != nil {
				t.Fatalf("Ingest() #%d error = %v", i+1, err)
			}
		}

		stored, err := f.readings.Query(ctx, Filter{DeviceExternalID: "S-DUP", Limit: 10})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(stored) != 2 {
			t.Errorf("reading count = %d, want 2 (duplicates tolerated)", len(stored))
		}
	})
}

func TestPipeline_IngestValidation(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	temp := 4.0

	tests := []struct {
		name    string
		payload SubmitPayload
	}{
		{
			name: "missing device id",
			payload: SubmitPayload{
				Measurements: Measurements{Temperature: &temp},
				RecordedAt:   time.Now(),
			},
		},
		{
			name: "no measurements",
			payload: SubmitPayload{
				DeviceExternalID: "S1",
				RecordedAt:       time.Now(),
			},
		},
		{
			name: "missing timestamp",
			payload: SubmitPayload{
				DeviceExternalID: "S1",
				Measurements:     Measurements{Temperature: &temp},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Ingest(ctx, tt.payload)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error = %v, want ErrInvalidPayload", err)
			}
		})
	}

	// Nothing may be written for rejected payloads.
	stored, err := f.readings.Query(ctx, Filter{Limit: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("reading count = %d, want 0 after rejections", len(stored))
	}
}

func TestPipeline_IngestStorageFailure(t *testing.T) {
	db := setupTestDB(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	emitter := NewEmitter(NewSQLiteAlertRepository(db))

	pipeline := NewPipeline(registry, shipment.NewSQLiteRepository(db), failingReadingRepo{}, emitter, time.Second)

	_, err := pipeline.Ingest(context.Background(), submitWithTemp("S1", "", 4.0))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}

	// The device record is allowed to survive a failed reading write.
	if _, err := registry.GetDevice(context.Background(), "S1"); err != nil {
		t.Errorf("device should exist after failed reading write: %v", err)
	}
}

func TestPipeline_AlertFailureDoesNotFailIngest(t *testing.T) {
	db := setupTestDB(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	readings := NewSQLiteReadingRepository(db)
	emitter := NewEmitter(failingAlertRepo{})
	seedShipment(t, db, "SHP-1")

	pipeline := NewPipeline(registry, shipment.NewSQLiteRepository(db), readings, emitter, time.Second)

	result, err := pipeline.Ingest(context.Background(), submitWithTemp("S1", "SHP-1", 8.5))
	if err != nil {
		t.Fatalf("Ingest() error = %v, want success despite alert failure", err)
	}
	if result.AlertTriggered {
		t.Error("AlertTriggered = true, want false when emission failed")
	}

	// The reading persists with its alert flag regardless.
	stored, err := readings.Query(context.Background(), Filter{Limit: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(stored) != 1 || !stored[0].IsAlert {
		t.Errorf("stored = %+v, want one reading flagged as alert", stored)
	}
}

func TestPipeline_ConcurrentFirstSightings(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	const workers = 12
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.pipeline.Ingest(ctx, submitWithTemp("S-RACE", "", 4.0))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d error = %v", i, err)
		}
	}

	devices, err := f.registry.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("device count = %d, want exactly 1", len(devices))
	}

	stored, err := f.readings.Query(ctx, Filter{Limit: 50})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(stored) != workers {
		t.Errorf("reading count = %d, want %d", len(stored), workers)
	}
}

func TestPipeline_EventSink(t *testing.T) {
	f := setupPipeline(t)
	seedShipment(t, f.db, "SHP-1")

	sink := &recordingSink{}
	f.pipeline.SetEventSink(sink)

	if _, err := f.pipeline.Ingest(context.Background(), submitWithTemp("S1", "SHP-1", 8.5)); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if !sink.has(EventAlertRaised) {
		t.Error("missing alert.raised event")
	}
	if !sink.has(EventReadingStored) {
		t.Error("missing reading.stored event")
	}
}

// failingReadingRepo simulates a broken reading store.
type failingReadingRepo struct{}

func (failingReadingRepo) Insert(context.Context, *Reading) error {
	return errors.New("database is locked")
}

func (failingReadingRepo) Query(context.Context, Filter) ([]EnrichedReading, error) {
	return nil, errors.New("database is locked")
}

func (failingReadingRepo) Prune(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is locked")
}

// recordingSink captures broadcast events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Broadcast(eventType string, _ any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
}

func (s *recordingSink) has(eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == eventType {
			return true
		}
	}
	return false
}
