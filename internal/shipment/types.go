package shipment

import "time"

// Status represents the lifecycle state of a shipment.
type Status string

// Shipment statuses.
const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Shipment is a refrigerated consignment with its safety envelope.
//
// The bounds define the acceptable environmental window for the cargo:
// readings outside [MinTemp, MaxTemp] or [MinHumidity, MaxHumidity]
// constitute a violation. Bounds are configured when the shipment is
// created upstream; the telemetry engine only reads them.
type Shipment struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Status      Status    `json:"status"`
	MinTemp     float64   `json:"min_temp"`
	MaxTemp     float64   `json:"max_temp"`
	MinHumidity float64   `json:"min_humidity"`
	MaxHumidity float64   `json:"max_humidity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a copy of the shipment.
func (s *Shipment) Clone() *Shipment {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
