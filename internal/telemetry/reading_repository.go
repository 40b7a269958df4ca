package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/petalworks/coldchain-core/internal/shipment"
)

// ReadingRepository defines persistence for the append-only reading log.
type ReadingRepository interface {
	// Insert appends one reading. Readings are never updated or deleted
	// by the ingestion path; duplicates are tolerated.
	Insert(ctx context.Context, reading *Reading) error

	// Query returns the most recent readings matching the filter, newest
	// first, joined with device and shipment descriptive fields.
	Query(ctx context.Context, filter Filter) ([]EnrichedReading, error)

	// Prune deletes readings recorded before the cutoff. Maintenance
	// operation, never invoked by the ingestion path.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteReadingRepository implements ReadingRepository using SQLite.
type SQLiteReadingRepository struct {
	db *sql.DB
}

// NewSQLiteReadingRepository creates a new SQLite-backed reading repository.
func NewSQLiteReadingRepository(db *sql.DB) *SQLiteReadingRepository {
	return &SQLiteReadingRepository{db: db}
}

// Insert appends one reading to the log.
func (r *SQLiteReadingRepository) Insert(ctx context.Context, reading *Reading) error {
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO readings (
			id, device_id, shipment_id,
			temperature, humidity, latitude, longitude, altitude,
			battery_level, signal_strength,
			is_alert, alert_type, recorded_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		reading.ID,
		reading.DeviceID,
		nullableString(reading.ShipmentID),
		nullableFloat(reading.Measurements.Temperature),
		nullableFloat(reading.Measurements.Humidity),
		nullableFloat(reading.Measurements.Latitude),
		nullableFloat(reading.Measurements.Longitude),
		nullableFloat(reading.Measurements.Altitude),
		nullableFloat(reading.Measurements.BatteryLevel),
		nullableFloat(reading.Measurements.SignalStrength),
		boolToInt(reading.IsAlert),
		nullableAlertType(reading.AlertType),
		reading.RecordedAt.UTC().Format(time.RFC3339),
		reading.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// Query returns the most recent readings matching the filter, newest first.
func (r *SQLiteReadingRepository) Query(ctx context.Context, filter Filter) ([]EnrichedReading, error) {
	query := `
		SELECT
			r.id, r.device_id, r.shipment_id,
			r.temperature, r.humidity, r.latitude, r.longitude, r.altitude,
			r.battery_level, r.signal_strength,
			r.is_alert, r.alert_type, r.recorded_at, r.created_at,
			d.external_id, d.display_name, d.type,
			s.code, s.status, s.min_temp, s.max_temp, s.min_humidity, s.max_humidity
		FROM readings r
		JOIN devices d ON d.id = r.device_id
		LEFT JOIN shipments s ON s.id = r.shipment_id
		WHERE 1=1`

	args := []any{}
	if filter.ShipmentCode != "" {
		query += ` AND s.code = ?`
		args = append(args, filter.ShipmentCode)
	}
	if filter.DeviceExternalID != "" {
		query += ` AND d.external_id = ?`
		args = append(args, filter.DeviceExternalID)
	}

	query += ` ORDER BY r.recorded_at DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []EnrichedReading
	for rows.Next() {
		reading, err := scanEnrichedReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return readings, nil
}

// Prune deletes readings recorded before the cutoff.
func (r *SQLiteReadingRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM readings WHERE recorded_at < ?`,
		before.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return deleted, nil
}

func scanEnrichedReading(rows *sql.Rows) (*EnrichedReading, error) {
	var er EnrichedReading
	var shipmentID, alertType sql.NullString
	var temperature, humidity, latitude, longitude, altitude sql.NullFloat64
	var batteryLevel, signalStrength sql.NullFloat64
	var isAlert int
	var recordedAt, createdAt string
	var shipCode, shipStatus sql.NullString
	var minTemp, maxTemp, minHumidity, maxHumidity sql.NullFloat64

	err := rows.Scan(
		&er.ID,
		&er.DeviceID,
		&shipmentID,
		&temperature,
		&humidity,
		&latitude,
		&longitude,
		&altitude,
		&batteryLevel,
		&signalStrength,
		&isAlert,
		&alertType,
		&recordedAt,
		&createdAt,
		&er.DeviceExternalID,
		&er.DeviceName,
		&er.DeviceType,
		&shipCode,
		&shipStatus,
		&minTemp,
		&maxTemp,
		&minHumidity,
		&maxHumidity,
	)
	if err != nil {
		return nil, err
	}

	if shipmentID.Valid {
		id := shipmentID.String
		er.ShipmentID = &id
	}
	er.Measurements = Measurements{
		Temperature:    floatPtr(temperature),
		Humidity:       floatPtr(humidity),
		Latitude:       floatPtr(latitude),
		Longitude:      floatPtr(longitude),
		Altitude:       floatPtr(altitude),
		BatteryLevel:   floatPtr(batteryLevel),
		SignalStrength: floatPtr(signalStrength),
	}
	er.IsAlert = isAlert != 0
	if alertType.Valid {
		er.AlertType = AlertType(alertType.String)
	}

	var parseErr error
	er.RecordedAt, parseErr = time.Parse(time.RFC3339, recordedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing recorded_at: %w", parseErr)
	}
	er.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}

	if shipCode.Valid {
		er.ShipmentCode = shipCode.String
		er.ShipmentStatus = shipStatus.String
		er.ShipmentBounds = &shipment.Shipment{
			ID:          shipmentID.String,
			Code:        shipCode.String,
			Status:      shipment.Status(shipStatus.String),
			MinTemp:     minTemp.Float64,
			MaxTemp:     maxTemp.Float64,
			MinHumidity: minHumidity.Float64,
			MaxHumidity: maxHumidity.Float64,
		}
	}

	return &er, nil
}

// floatPtr converts a sql.NullFloat64 to an optional float pointer.
func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableAlertType stores an empty alert type as NULL.
func nullableAlertType(a AlertType) sql.NullString {
	if a == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(a), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
