// Package catalog enumerates the MIDI ports the OS currently exposes.
package catalog

import (
	"fmt"

	"github.com/leandrodaf/midiex/sdk/contracts"
)

// Catalog lists input and output ports through a MIDI driver. It holds no
// state of its own; every call queries the driver again.
type Catalog struct {
	driver contracts.Driver
	logger contracts.Logger
}

// New creates a Catalog on top of driver.
func New(driver contracts.Driver, logger contracts.Logger) *Catalog {
	return &Catalog{driver: driver, logger: logger}
}

// List returns every input followed by every output. Indexes restart at zero
// for each direction.
func (c *Catalog) List() ([]contracts.PortDescriptor, error) {
	ins, err := c.driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: listing inputs: %v", contracts.ErrMIDIUnavailable, err)
	}
	outs, err := c.driver.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: listing outputs: %v", contracts.ErrMIDIUnavailable, err)
	}

	ports := make([]contracts.PortDescriptor, 0, len(ins)+len(outs))
	for i, in := range ins {
		ports = append(ports, contracts.PortDescriptor{
			Direction: contracts.Input,
			Name:      portName(in.String()),
			Index:     i,
			Ref:       contracts.InputRef(in),
		})
	}
	for i, out := range outs {
		ports = append(ports, contracts.PortDescriptor{
			Direction: contracts.Output,
			Name:      portName(out.String()),
			Index:     i,
			Ref:       contracts.OutputRef(out),
		})
	}

	c.logger.Debug("MIDI ports listed",
		c.logger.Field().Int("inputs", len(ins)),
		c.logger.Field().Int("outputs", len(outs)))
	return ports, nil
}

// Count returns the number of ports per direction.
func (c *Catalog) Count() (contracts.PortCount, error) {
	ins, err := c.driver.Ins()
	if err != nil {
		return contracts.PortCount{}, fmt.Errorf("%w: counting inputs: %v", contracts.ErrMIDIUnavailable, err)
	}
	outs, err := c.driver.Outs()
	if err != nil {
		return contracts.PortCount{}, fmt.Errorf("%w: counting outputs: %v", contracts.ErrMIDIUnavailable, err)
	}
	return contracts.PortCount{Input: len(ins), Output: len(outs)}, nil
}

// portName substitutes a placeholder for drivers that report no name.
func portName(name string) string {
	if name == "" {
		return "No device name given"
	}
	return name
}
