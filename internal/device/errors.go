package device

import "errors"

// Registry errors, matched with errors.Is. The API maps them onto HTTP
// status codes.
var (
	ErrDeviceNotFound = errors.New("device: not found")
	ErrDeviceExists   = errors.New("device: already exists")

	// ErrInvalidDevice wraps the first descriptor field that failed validation.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidCommand covers unknown command names and out of range levels.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrCommandNotSupported is returned for sensor kinds, which take no
	// commands.
	ErrCommandNotSupported = errors.New("device: command not supported")

	// ErrNoHandler means the device owner has no registered command handler.
	ErrNoHandler = errors.New("device: no command handler")
)
