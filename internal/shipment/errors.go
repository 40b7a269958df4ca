package shipment

import "errors"

// Domain errors for the shipment package.
var (
	// ErrShipmentNotFound is returned when a shipment code does not exist.
	// Absence is a normal outcome for ingestion: not every reading is
	// shipment-scoped, so callers typically branch on this rather than fail.
	ErrShipmentNotFound = errors.New("shipment: not found")
)
