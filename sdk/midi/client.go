package midi

import (
	"github.com/leandrodaf/midiex/sdk/contracts"
)

// NewMIDIClient returns a client for listing MIDI ports, opening output
// connections and subscribing to inputs. Options are applied over the
// defaults; without contracts.WithDriver the platform driver is opened, and
// a driver that cannot be opened yields contracts.ErrMIDIUnavailable.
//
// The client owns the driver: call Stop to close every connection and
// release it.
func NewMIDIClient(opts ...contracts.Option) (contracts.ClientMIDI, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(&options)
	if err != nil {
		return nil, err
	}

	options.Logger.Debug("MIDI client ready",
		options.Logger.Field().String("name", options.ClientName),
		options.Logger.Field().Int("deliveryBuffer", options.DeliveryBuffer))
	return client, nil
}
