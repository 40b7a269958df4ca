package shipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for shipment persistence operations.
//
// The telemetry engine treats shipments as a read-mostly threshold store:
// lookups happen on every shipment-scoped reading, writes only when
// upstream order management seeds or updates a consignment.
type Repository interface {
	// GetByCode retrieves a shipment by its human-assigned code.
	// Returns ErrShipmentNotFound if the code does not exist.
	GetByCode(ctx context.Context, code string) (*Shipment, error)

	// Upsert inserts the shipment or updates the existing row with the
	// same code. Used by upstream seeding, not by the ingestion path.
	Upsert(ctx context.Context, shipment *Shipment) error

	// List retrieves all shipments ordered by code.
	List(ctx context.Context) ([]Shipment, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const shipmentColumns = `id, code, status, min_temp, max_temp, min_humidity, max_humidity, created_at, updated_at`

// GetByCode retrieves a shipment by its human-assigned code.
func (r *SQLiteRepository) GetByCode(ctx context.Context, code string) (*Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE code = ?`

	row := r.db.QueryRowContext(ctx, query, code)
	shipment, err := scanShipmentRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("querying shipment by code: %w", err)
	}
	return shipment, nil
}

// Upsert inserts the shipment or updates the row with the same code.
func (r *SQLiteRepository) Upsert(ctx context.Context, shipment *Shipment) error {
	now := time.Now().UTC()
	if shipment.CreatedAt.IsZero() {
		shipment.CreatedAt = now
	}
	shipment.UpdatedAt = now
	if shipment.Status == "" {
		shipment.Status = StatusInTransit
	}

	query := `
		INSERT INTO shipments (
			id, code, status, min_temp, max_temp,
			min_humidity, max_humidity, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			status = excluded.status,
			min_temp = excluded.min_temp,
			max_temp = excluded.max_temp,
			min_humidity = excluded.min_humidity,
			max_humidity = excluded.max_humidity,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		shipment.ID,
		shipment.Code,
		string(shipment.Status),
		shipment.MinTemp,
		shipment.MaxTemp,
		shipment.MinHumidity,
		shipment.MaxHumidity,
		shipment.CreatedAt.Format(time.RFC3339),
		shipment.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting shipment: %w", err)
	}

	return nil
}

// List retrieves all shipments ordered by code.
func (r *SQLiteRepository) List(ctx context.Context) ([]Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments
		ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying shipments: %w", err)
	}
	defer rows.Close()

	var shipments []Shipment
	for rows.Next() {
		shipment, err := scanShipmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning shipment: %w", err)
		}
		shipments = append(shipments, *shipment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shipments: %w", err)
	}

	return shipments, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanShipmentRow scans a row or rows result into a Shipment.
func scanShipmentRow(scanner rowScanner) (*Shipment, error) {
	var s Shipment
	var status string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Code,
		&status,
		&s.MinTemp,
		&s.MaxTemp,
		&s.MinHumidity,
		&s.MaxHumidity,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = Status(status)

	var parseErr error
	s.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	s.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &s, nil
}
