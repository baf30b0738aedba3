//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/leandrodaf/midiex/internal/midi/hotplug"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for CoreMIDI endpoint queries.
var (
	ErrListSources      = errors.New("error listing MIDI sources")
	ErrListDestinations = errors.New("error listing MIDI destinations")
)

// Snapshotter reads CoreMIDI sources and destinations. It holds a CoreMIDI
// client for its whole life, which keeps the process registered for device
// changes so every snapshot sees the current setup.
type Snapshotter struct {
	logger contracts.Logger
	client coremidi.Client
}

// NewSnapshotter creates a CoreMIDI client named after the configured client.
func NewSnapshotter(options *contracts.ClientOptions) (hotplug.Snapshotter, error) {
	client, err := coremidi.NewClient(options.ClientName + " notifications client")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrMIDIUnavailable, err)
	}
	options.Logger.Info("CoreMIDI notification client created")
	return &Snapshotter{logger: options.Logger, client: client}, nil
}

// Snapshot lists every source as an input and every destination as an output.
func (s *Snapshotter) Snapshot() ([]hotplug.Endpoint, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListSources, err)
	}
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListDestinations, err)
	}

	endpoints := make([]hotplug.Endpoint, 0, len(sources)+len(destinations))
	for _, source := range sources {
		entity := source.Entity()
		endpoints = append(endpoints, endpoint(entity.Name(), entity.Manufacturer(), source.Name(), contracts.ObjectInput))
	}
	for _, destination := range destinations {
		entity := destination.Entity()
		endpoints = append(endpoints, endpoint(entity.Name(), entity.Manufacturer(), destination.Name(), contracts.ObjectOutput))
	}
	return endpoints, nil
}

// Close releases nothing; CoreMIDI clients live until the process exits.
func (s *Snapshotter) Close() error {
	return nil
}

func endpoint(entityName, manufacturer, name string, direction contracts.ObjectType) hotplug.Endpoint {
	parentID := objectID(manufacturer, entityName)
	return hotplug.Endpoint{
		ParentName: entityName,
		ParentID:   parentID,
		ParentType: contracts.ObjectEntity,
		Name:       name,
		NativeID:   objectID(fmt.Sprint(parentID), direction.String(), name),
		Direction:  direction,
	}
}

// objectID derives a stable identifier from names, since the endpoint
// wrappers do not expose CoreMIDI unique IDs.
func objectID(parts ...string) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum32()
}
