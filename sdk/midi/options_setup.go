package midi

import (
	"time"

	"github.com/leandrodaf/midiex/internal/logger"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	defaultClientName      = "MIDIex"
	defaultDeliveryBuffer  = 1024
	defaultHotplugInterval = time.Second
)

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: An error if there was an issue applying the options.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.ClientName == "" {
		options.ClientName = defaultClientName
	}
	if options.DeliveryBuffer <= 0 {
		options.DeliveryBuffer = defaultDeliveryBuffer
	}
	if options.HotplugInterval <= 0 {
		options.HotplugInterval = defaultHotplugInterval
	}
	if options.ListenConfig == nil {
		// Receive everything, including SysEx, clock and active sensing.
		options.ListenConfig = &drivers.ListenConfig{
			TimeCode:        true,
			ActiveSense:     true,
			SysEx:           true,
			SysExBufferSize: contracts.DefaultSysExBufferSize,
		}
	}
	if options.ListenConfig.SysEx && options.ListenConfig.SysExBufferSize == 0 {
		options.ListenConfig.SysExBufferSize = contracts.DefaultSysExBufferSize
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}
