//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/midiex/internal/midi/hotplug"
	"github.com/leandrodaf/midiex/sdk/contracts"
)

// NewSnapshotter reports that winmm notifications are unavailable.
func NewSnapshotter(options *contracts.ClientOptions) (hotplug.Snapshotter, error) {
	options.Logger.Debug("winmm notifications requested on non-Windows system")
	return nil, fmt.Errorf("%w: winmm notifications", contracts.ErrUnsupportedPlatform)
}
