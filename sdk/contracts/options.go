package contracts

import (
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// DefaultSysExBufferSize is the largest SysEx message an input connection
// accepts when SysEx reception is on and no size was given. The driver's
// message reader panics on anything longer than its buffer.
const DefaultSysExBufferSize = 64 * 1024

// ClientOptions defines the configuration options for the MIDI client.
type ClientOptions struct {
	Logger          Logger                // Logger for logging events and errors.
	LogLevel        LogLevel              // Level of logging to use.
	LogFilePath     string                // File path for logging if file logging is enabled.
	ClientName      string                // Name the client registers with the OS MIDI subsystem.
	Driver          Driver                // MIDI backend; the platform default when nil.
	DeliveryBuffer  int                   // Capacity of the queue between driver callbacks and the consumer.
	HotplugInterval time.Duration         // How often endpoints are re-read for device notifications.
	ListenConfig    *drivers.ListenConfig // What input connections receive.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the MIDI client.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the MIDI client.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFilePath sends log output to the given file instead of the console.
func WithLogFilePath(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithClientName sets the name the client registers with the OS.
func WithClientName(name string) Option {
	return func(opts *ClientOptions) {
		opts.ClientName = name
	}
}

// WithDriver replaces the platform MIDI driver.
func WithDriver(d Driver) Option {
	return func(opts *ClientOptions) {
		opts.Driver = d
	}
}

// WithDeliveryBuffer sets how many received messages may wait for the
// consumer before new ones are dropped.
func WithDeliveryBuffer(size int) Option {
	return func(opts *ClientOptions) {
		opts.DeliveryBuffer = size
	}
}

// WithHotplugInterval sets the endpoint re-read interval for notifications.
func WithHotplugInterval(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.HotplugInterval = d
	}
}

// WithListenConfig sets what input connections receive. A config enabling
// SysEx without SysExBufferSize gets DefaultSysExBufferSize.
func WithListenConfig(config drivers.ListenConfig) Option {
	return func(opts *ClientOptions) {
		opts.ListenConfig = &config
	}
}
