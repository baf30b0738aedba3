package contracts

import "errors"

// Misuse errors: the caller passed something the operation cannot accept.
var (
	ErrInputPortSupplied       = errors.New("input port supplied where output expected")
	ErrOutputPortSupplied      = errors.New("output port supplied where input expected")
	ErrInvalidPortRef          = errors.New("port descriptor has no driver reference")
	ErrConnectionAlreadyClosed = errors.New("connection already closed")
	ErrAlreadySubscribed       = errors.New("port already subscribed")
	ErrNotSubscribed           = errors.New("port not subscribed")
)

// ErrMIDIUnavailable is returned when the OS MIDI subsystem cannot be
// initialised or queried. No port operation can proceed after it.
var ErrMIDIUnavailable = errors.New("MIDI subsystem unavailable")

// ErrPortNotFound is returned when a listed port is no longer present.
var ErrPortNotFound = errors.New("MIDI port no longer present")

// ErrConnectionClosed is returned by sends on a closed output connection.
// Reconnect and retry.
var ErrConnectionClosed = errors.New("no output connection available, connection may have been closed")

// ErrUnsupportedPlatform is returned for virtual ports or device
// notifications on an OS that does not provide them.
var ErrUnsupportedPlatform = errors.New("not supported on this platform")

// ErrClientStopped is returned by operations on a stopped client.
var ErrClientStopped = errors.New("MIDI client stopped")
