package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when an external ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidExternalID is returned when an external ID is empty or too long.
	ErrInvalidExternalID = errors.New("device: invalid external id")

	// ErrRegistration is returned when the atomic insert-if-absent
	// operation fails. Safe to retry: registration is idempotent.
	ErrRegistration = errors.New("device: registration failed")
)
