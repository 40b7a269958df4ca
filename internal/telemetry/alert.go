package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petalworks/coldchain-core/internal/shipment"
)

// AlertRepository defines persistence for alert records.
type AlertRepository interface {
	// Insert writes one alert record.
	Insert(ctx context.Context, alert *Alert) error

	// ListByShipment returns alerts for a shipment, newest first.
	ListByShipment(ctx context.Context, shipmentID string, limit int) ([]Alert, error)
}

// SQLiteAlertRepository implements AlertRepository using SQLite.
type SQLiteAlertRepository struct {
	db *sql.DB
}

// NewSQLiteAlertRepository creates a new SQLite-backed alert repository.
func NewSQLiteAlertRepository(db *sql.DB) *SQLiteAlertRepository {
	return &SQLiteAlertRepository{db: db}
}

// Insert writes one alert record.
func (r *SQLiteAlertRepository) Insert(ctx context.Context, alert *Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (
			id, shipment_id, reading_id, alert_type,
			severity, message, actual_value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.ShipmentID,
		alert.ReadingID,
		string(alert.AlertType),
		string(alert.Severity),
		alert.Message,
		alert.ActualValue,
		alert.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}

	return nil
}

// ListByShipment returns alerts for a shipment, newest first.
func (r *SQLiteAlertRepository) ListByShipment(ctx context.Context, shipmentID string, limit int) ([]Alert, error) {
	query := `
		SELECT id, shipment_id, reading_id, alert_type,
		       severity, message, actual_value, created_at
		FROM alerts
		WHERE shipment_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, shipmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var alertType, severity, createdAt string

		err := rows.Scan(
			&a.ID,
			&a.ShipmentID,
			&a.ReadingID,
			&alertType,
			&severity,
			&a.Message,
			&a.ActualValue,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}

		a.AlertType = AlertType(alertType)
		a.Severity = Severity(severity)
		a.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return alerts, nil
}

// Emitter turns threshold violations into persisted alert records.
//
// Emission is attempted at most once per violating reading and is
// best-effort: a write failure never rolls back the already-persisted
// reading. A missed alert plus a recorded reading is the accepted
// degraded outcome, preferable to losing the reading.
type Emitter struct {
	alerts AlertRepository
	logger Logger
}

// NewEmitter creates a new alert emitter.
func NewEmitter(alerts AlertRepository) *Emitter {
	return &Emitter{
		alerts: alerts,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the emitter.
func (e *Emitter) SetLogger(logger Logger) {
	e.logger = logger
}

// Emit writes exactly one alert record for the violating reading.
func (e *Emitter) Emit(ctx context.Context, reading *Reading, shp *shipment.Shipment, v *Violation) (*Alert, error) {
	alert := &Alert{
		ID:          uuid.New().String(),
		ShipmentID:  shp.ID,
		ReadingID:   reading.ID,
		AlertType:   v.Type,
		Severity:    v.Severity,
		Message:     alertMessage(shp, v),
		ActualValue: v.ActualValue,
	}

	if err := e.alerts.Insert(ctx, alert); err != nil {
		return nil, fmt.Errorf("%w: emitting alert: %w", ErrStorage, err)
	}

	e.logger.Warn("threshold alert raised",
		"shipment_code", shp.Code,
		"reading_id", reading.ID,
		"alert_type", string(v.Type),
		"severity", string(v.Severity),
		"actual_value", v.ActualValue,
	)

	return alert, nil
}

// alertMessage builds the human-readable alert text.
func alertMessage(shp *shipment.Shipment, v *Violation) string {
	switch v.Type {
	case AlertTemperatureLow:
		return fmt.Sprintf("Temperature %.1f°C below minimum %.1f°C for shipment %s", v.ActualValue, shp.MinTemp, shp.Code)
	case AlertTemperatureHigh:
		return fmt.Sprintf("Temperature %.1f°C above maximum %.1f°C for shipment %s", v.ActualValue, shp.MaxTemp, shp.Code)
	case AlertHumidityLow:
		return fmt.Sprintf("Humidity %.1f%% below minimum %.1f%% for shipment %s", v.ActualValue, shp.MinHumidity, shp.Code)
	case AlertHumidityHigh:
		return fmt.Sprintf("Humidity %.1f%% above maximum %.1f%% for shipment %s", v.ActualValue, shp.MaxHumidity, shp.Code)
	default:
		return fmt.Sprintf("Threshold violation (%s): %.1f for shipment %s", v.Type, v.ActualValue, shp.Code)
	}
}
