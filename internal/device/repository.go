package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByExternalID retrieves a device by its stable hardware identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByExternalID(ctx context.Context, externalID string) (*Device, error)

	// InsertIfAbsent atomically inserts the device unless a row with the
	// same external ID already exists, then returns the surviving row.
	// This is the registration primitive: concurrent first-sightings of
	// the same external ID must resolve to a single device record.
	InsertIfAbsent(ctx context.Context, device *Device) (*Device, error)

	// UpdateHeartbeat updates the last-seen timestamp and battery level.
	// A nil battery level leaves the stored value untouched.
	UpdateHeartbeat(ctx context.Context, externalID string, hb Heartbeat) error

	// List retrieves all devices ordered by display name.
	List(ctx context.Context) ([]Device, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, external_id, type, display_name, active, last_seen_at, battery_level, created_at, updated_at`

// GetByExternalID retrieves a device by its stable hardware identifier.
func (r *SQLiteRepository) GetByExternalID(ctx context.Context, externalID string) (*Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE external_id = ?`

	row := r.db.QueryRowContext(ctx, query, externalID)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by external id: %w", err)
	}
	return device, nil
}

// InsertIfAbsent atomically inserts the device unless the external ID is
// already taken, then reads back whichever row won.
//
// The uniqueness constraint on external_id plus ON CONFLICT DO NOTHING
// makes this safe under concurrent registration races - there is no
// check-then-insert window.
func (r *SQLiteRepository) InsertIfAbsent(ctx context.Context, device *Device) (*Device, error) {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, external_id, type, display_name, active,
			last_seen_at, battery_level, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		device.ExternalID,
		string(device.Type),
		device.DisplayName,
		boolToInt(device.Active),
		nullableTime(device.LastSeenAt),
		nullableFloat(device.BatteryLevel),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting device: %w", err)
	}

	// Read back the surviving row: either the one just inserted or the
	// one a concurrent caller inserted first.
	winner, err := r.GetByExternalID(ctx, device.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("reading device after upsert: %w", err)
	}
	return winner, nil
}

// UpdateHeartbeat updates the last-seen timestamp and battery level.
func (r *SQLiteRepository) UpdateHeartbeat(ctx context.Context, externalID string, hb Heartbeat) error {
	now := time.Now().UTC()
	query := `
		UPDATE devices
		SET last_seen_at = ?,
		    battery_level = COALESCE(?, battery_level),
		    updated_at = ?
		WHERE external_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		hb.LastSeenAt.UTC().Format(time.RFC3339),
		nullableFloat(hb.BatteryLevel),
		now.Format(time.RFC3339),
		externalID,
	)
	if err != nil {
		return fmt.Errorf("updating device heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// List retrieves all devices ordered by display name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		ORDER BY display_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType string
	var active int
	var lastSeenAt sql.NullString
	var batteryLevel sql.NullFloat64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.ExternalID,
		&deviceType,
		&d.DisplayName,
		&active,
		&lastSeenAt,
		&batteryLevel,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.Active = active != 0

	if lastSeenAt.Valid {
		t, err := time.Parse(time.RFC3339, lastSeenAt.String)
		if err == nil {
			d.LastSeenAt = &t
		}
	}
	if batteryLevel.Valid {
		b := batteryLevel.Float64
		d.BatteryLevel = &b
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
