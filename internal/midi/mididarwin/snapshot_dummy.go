//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/midiex/internal/midi/hotplug"
	"github.com/leandrodaf/midiex/sdk/contracts"
)

// NewSnapshotter reports that CoreMIDI notifications are unavailable.
func NewSnapshotter(options *contracts.ClientOptions) (hotplug.Snapshotter, error) {
	options.Logger.Debug("CoreMIDI notifications requested on non-macOS system")
	return nil, fmt.Errorf("%w: CoreMIDI notifications", contracts.ErrUnsupportedPlatform)
}
