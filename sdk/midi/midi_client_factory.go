package midi

import (
	"fmt"
	"runtime"

	"github.com/leandrodaf/midiex/internal/midi/client"
	"github.com/leandrodaf/midiex/internal/midi/hotplug"
	"github.com/leandrodaf/midiex/internal/midi/mididarwin"
	"github.com/leandrodaf/midiex/internal/midi/midiwindows"
	"github.com/leandrodaf/midiex/internal/midi/virtual"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ErrUnsupportedOS is returned when device notifications are requested on an
// operating system without a notification source.
var ErrUnsupportedOS = contracts.ErrUnsupportedPlatform

// snapshotterInitializers maps OS names to the endpoint sources backing device notifications.
var snapshotterInitializers = map[string]func(*contracts.ClientOptions) (hotplug.Snapshotter, error){
	"darwin":  mididarwin.NewSnapshotter,  // macOS (CoreMIDI) endpoint source.
	"windows": midiwindows.NewSnapshotter, // Windows (winmm) endpoint source.
}

// newDriver opens the platform MIDI driver. It is a variable so tests can
// avoid touching the OS.
var newDriver = func(opts *contracts.ClientOptions) (contracts.Driver, error) {
	return rtmididrv.New()
}

// NewClient builds a MIDI client from finalized options. A driver that
// cannot be opened yields ErrMIDIUnavailable: nothing else can work without it.
//
// opts *contracts.ClientOptions: Configuration options for the MIDI client.
//
// Returns:
//   - contracts.ClientMIDI: An instance of the MIDI client.
//   - error: An error if the MIDI subsystem could not be initialized.
func NewClient(opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	return newClientFor(runtime.GOOS, opts)
}

func newClientFor(goos string, opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	driver := opts.Driver
	if driver == nil {
		d, err := newDriver(opts)
		if err != nil {
			opts.Logger.Error("Failed to initialize MIDI driver", opts.Logger.Field().Error("error", err))
			return nil, fmt.Errorf("%w: %v", contracts.ErrMIDIUnavailable, err)
		}
		driver = d
	}

	return client.New(client.Config{
		Logger:          opts.Logger,
		Driver:          driver,
		Virtual:         virtual.NewFactoryFor(goos),
		DeliveryBuffer:  opts.DeliveryBuffer,
		Listen:          *opts.ListenConfig,
		HotplugInterval: opts.HotplugInterval,
		Snapshotter:     snapshotterFor(goos, opts),
	}), nil
}

// snapshotterFor picks the notification source for goos. Platforms without
// one report ErrUnsupportedOS when notifications are requested.
func snapshotterFor(goos string, opts *contracts.ClientOptions) client.SnapshotterFunc {
	initializer, exists := snapshotterInitializers[goos]
	if !exists {
		return func() (hotplug.Snapshotter, error) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
		}
	}
	return func() (hotplug.Snapshotter, error) {
		return initializer(opts)
	}
}
