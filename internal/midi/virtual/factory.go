// Package virtual allocates identities for ports this process creates.
package virtual

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/leandrodaf/midiex/sdk/contracts"
)

// Process-wide counters, shared by every Factory so indexes never repeat
// within a process.
var (
	inputCounter  atomic.Int64
	outputCounter atomic.Int64
)

// Factory hands out virtual port identities on platforms that support them.
type Factory struct {
	supported bool
}

// NewFactory returns a factory for the running OS.
func NewFactory() *Factory {
	return &Factory{supported: Supported(runtime.GOOS)}
}

// NewFactoryFor returns a factory that behaves as if running on goos.
func NewFactoryFor(goos string) *Factory {
	return &Factory{supported: Supported(goos)}
}

// Supported reports whether goos can create virtual MIDI endpoints.
// Windows MIDI has no virtual ports.
func Supported(goos string) bool {
	return goos != "windows"
}

// Supported reports whether this factory can create virtual ports.
func (f *Factory) Supported() bool {
	return f.supported
}

// NewInput allocates a virtual input descriptor. The OS learns nothing about
// it until the port is subscribed.
func (f *Factory) NewInput(name string) (contracts.VirtualPortDescriptor, error) {
	if !f.supported {
		return contracts.VirtualPortDescriptor{}, fmt.Errorf("%w: virtual inputs", contracts.ErrUnsupportedPlatform)
	}
	return contracts.VirtualPortDescriptor{
		Direction: contracts.Input,
		Name:      name,
		Index:     int(inputCounter.Add(1)),
	}, nil
}

// NextOutputNum returns the identifier for a new virtual output connection.
func (f *Factory) NextOutputNum() (int, error) {
	if !f.supported {
		return 0, fmt.Errorf("%w: virtual outputs", contracts.ErrUnsupportedPlatform)
	}
	return int(outputCounter.Add(1)), nil
}
