package wbimport

import "errors"

// Sentinel errors for the import module.
var (
	// ErrMalformedMeta is returned when a control's meta payload is not
	// the expected JSON object.
	ErrMalformedMeta = errors.New("malformed control metadata")

	// ErrStopped is returned by requests made after Stop.
	ErrStopped = errors.New("import module stopped")

	// ErrNotStarted is returned by requests made before Start.
	ErrNotStarted = errors.New("import module not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("import module already started")

	// ErrUnknownDevice is returned for ids the module has never discovered.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnsupportedType is returned when enabling a device whose control
	// type has no device kind.
	ErrUnsupportedType = errors.New("unsupported control type")

	// ErrCreateFailed is returned when enabling a device whose registry
	// entry cannot be created.
	ErrCreateFailed = errors.New("device could not be created")
)
