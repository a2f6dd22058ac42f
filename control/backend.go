// Package control implements the two ControlBackend variants the printer
// facade sends vendor commands through: a D4-framed backend and a
// lighter-weight proprietary END4 backend. Grounded on
// original_source/ez_reset/control.py.
package control

// Backend sends opaque command payloads to the printer and returns the
// response payload. Exactly one of D4Backend or END4Backend is used per
// device, selected by what framing the device speaks.
type Backend interface {
	// Send writes command and returns the response payload.
	Send(command []byte) ([]byte, error)

	// Identify returns the device's IEEE 1284 ID string.
	Identify() (string, error)

	// Close releases any channel/engine state opened by the backend.
	Close() error
}
