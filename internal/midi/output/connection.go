// Package output manages send-capable connections to MIDI output ports.
package output

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midiex/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Connection wraps an open driver output. The port sits in a mutex-guarded
// slot; Close empties the slot, which is the only closed state.
type Connection struct {
	name    string
	portNum int
	virtual bool
	logger  contracts.Logger

	mu  sync.Mutex
	out drivers.Out
}

var _ contracts.OutputConnection = (*Connection)(nil)

// Connect opens an independent connection to the output port behind port.
// Driver port handles open once, so the port is looked up again through
// driver and the fresh handle is opened; closing one connection never
// affects another on the same port.
func Connect(driver contracts.Driver, port contracts.PortDescriptor, logger contracts.Logger) (*Connection, error) {
	if port.Direction == contracts.Input {
		return nil, fmt.Errorf("%w: %s", contracts.ErrInputPortSupplied, port)
	}
	ref, ok := port.Ref.Output()
	if !ok {
		if _, isIn := port.Ref.Input(); isIn {
			return nil, fmt.Errorf("%w: %s", contracts.ErrInputPortSupplied, port)
		}
		return nil, fmt.Errorf("%w: %s", contracts.ErrInvalidPortRef, port)
	}

	out, err := resolve(driver, ref)
	if err != nil {
		return nil, err
	}
	if err := out.Open(); err != nil {
		logger.Error("Failed to open MIDI output",
			logger.Field().String("port", port.Name),
			logger.Field().Error("error", err))
		return nil, fmt.Errorf("opening output %s: %w", port, err)
	}

	logger.Info("MIDI output connected",
		logger.Field().String("port", port.Name),
		logger.Field().Int("index", port.Index))
	return &Connection{name: port.Name, portNum: port.Index, out: out, logger: logger}, nil
}

// resolve finds the output currently enumerated at ref's number under ref's name.
func resolve(driver contracts.Driver, ref drivers.Out) (drivers.Out, error) {
	outs, err := driver.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: listing outputs: %v", contracts.ErrMIDIUnavailable, err)
	}
	for _, out := range outs {
		if out.Number() == ref.Number() && out.String() == ref.String() {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", contracts.ErrPortNotFound, ref.String())
}

// NewVirtual creates a virtual output endpoint named name. portNum is the
// identifier reported by PortNum.
func NewVirtual(driver contracts.Driver, name string, portNum int, logger contracts.Logger) (*Connection, error) {
	out, err := driver.OpenVirtualOut(name)
	if err != nil {
		logger.Error("Failed to create virtual MIDI output",
			logger.Field().String("name", name),
			logger.Field().Error("error", err))
		return nil, fmt.Errorf("creating virtual output %q: %w", name, err)
	}

	logger.Info("Virtual MIDI output created",
		logger.Field().String("name", name),
		logger.Field().Int("portNum", portNum))
	return &Connection{name: name, portNum: portNum, virtual: true, out: out, logger: logger}, nil
}

func (c *Connection) Name() string  { return c.name }
func (c *Connection) PortNum() int  { return c.portNum }
func (c *Connection) Virtual() bool { return c.virtual }

// Send forwards data to the driver unchanged. Concurrent sends are
// serialized by the slot lock and never interleave.
func (c *Connection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out == nil {
		return fmt.Errorf("%w: %q", contracts.ErrConnectionClosed, c.name)
	}
	if err := c.out.Send(data); err != nil {
		return fmt.Errorf("sending to %q: %w", c.name, err)
	}
	return nil
}

// Close takes the port out of the slot and closes it. A second Close finds
// the slot empty and reports ErrConnectionAlreadyClosed, which always means
// the caller lost track of the connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.out
	if out == nil {
		c.logger.Error("MIDI output closed twice", c.logger.Field().String("port", c.name))
		return fmt.Errorf("%w: %q", contracts.ErrConnectionAlreadyClosed, c.name)
	}
	c.out = nil

	if err := out.Close(); err != nil {
		c.logger.Error("Failed to close MIDI output",
			c.logger.Field().String("port", c.name),
			c.logger.Field().Error("error", err))
		return fmt.Errorf("closing output %q: %w", c.name, err)
	}
	c.logger.Info("MIDI output closed", c.logger.Field().String("port", c.name))
	return nil
}

// IsClosed reports whether Close has been called.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out == nil
}
