// Package miditest provides an in-memory MIDI driver for tests.
//
// Hardware ports are declared up front or added later. Inputs hand incoming
// bytes to listeners through drivers.Reader, the same parser rtmididrv uses.
// Outputs behave like rtmididrv: every enumeration returns fresh handles, each
// with its own open state. Virtual outputs are pre-wired to listening virtual
// inputs of the same name, standing in for a user patching the two endpoints
// together; real systems do not connect them on their own.
package miditest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortNotOpen is returned when listening or sending on a closed port.
var ErrPortNotOpen = errors.New("port not open")

// Driver is an in-memory contracts.Driver.
type Driver struct {
	mu     sync.Mutex
	ins    []*In
	outs   []*Out
	closed bool

	// InsErr and OutsErr make enumeration fail when set.
	InsErr  error
	OutsErr error
	// VirtualErr makes virtual endpoint creation fail when set.
	VirtualErr error
}

// New creates a driver exposing the given hardware inputs and outputs.
func New(inNames, outNames []string) *Driver {
	d := &Driver{}
	for _, name := range inNames {
		d.AddIn(name)
	}
	for _, name := range outNames {
		d.AddOut(name)
	}
	return d
}

// AddIn plugs in a hardware input.
func (d *Driver) AddIn(name string) *In {
	d.mu.Lock()
	defer d.mu.Unlock()
	in := &In{driver: d, name: name, number: len(d.ins)}
	d.ins = append(d.ins, in)
	return in
}

// AddOut plugs in a hardware output.
func (d *Driver) AddOut(name string) *Out {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := &Out{driver: d, name: name, number: len(d.outs)}
	d.outs = append(d.outs, out)
	return out
}

// RemoveIn unplugs the first hardware input with the given name.
func (d *Driver) RemoveIn(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, in := range d.ins {
		if in.name == name && !in.virtual {
			d.ins = append(d.ins[:i], d.ins[i+1:]...)
			return
		}
	}
}

// RemoveOut unplugs the first hardware output with the given name.
func (d *Driver) RemoveOut(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, out := range d.outs {
		if out.name == name && !out.virtual {
			d.outs = append(d.outs[:i], d.outs[i+1:]...)
			return
		}
	}
}

// In returns the i-th enumerated input, including virtual ones.
func (d *Driver) In(i int) *In {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ins[i]
}

// Out returns the i-th output device, including virtual ones. Its counters
// cover every handle opened on it.
func (d *Driver) Out(i int) *Out {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outs[i]
}

// VirtualIns returns the virtual inputs created so far.
func (d *Driver) VirtualIns() []*In {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res []*In
	for _, in := range d.ins {
		if in.virtual {
			res = append(res, in)
		}
	}
	return res
}

// Ins lists the inputs. A virtual output shows up here, as it does on a real
// system, since other applications read from it.
func (d *Driver) Ins() ([]drivers.In, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.InsErr != nil {
		return nil, d.InsErr
	}
	res := make([]drivers.In, 0, len(d.ins))
	for _, in := range d.ins {
		if !in.virtual {
			res = append(res, in)
		}
	}
	for _, out := range d.outs {
		if out.virtual {
			res = append(res, &In{driver: d, name: out.name, number: len(res)})
		}
	}
	return res, nil
}

// Outs lists the hardware outputs as new, closed handles.
func (d *Driver) Outs() ([]drivers.Out, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OutsErr != nil {
		return nil, d.OutsErr
	}
	res := make([]drivers.Out, 0, len(d.outs))
	for _, out := range d.outs {
		if !out.virtual {
			res = append(res, &outPort{dev: out, number: len(res)})
		}
	}
	return res, nil
}

// OpenVirtualIn creates an open virtual input.
func (d *Driver) OpenVirtualIn(name string) (drivers.In, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.VirtualErr != nil {
		return nil, d.VirtualErr
	}
	in := &In{driver: d, name: name, number: len(d.ins), virtual: true, open: true, opens: 1}
	d.ins = append(d.ins, in)
	return in, nil
}

// OpenVirtualOut creates an open virtual output.
func (d *Driver) OpenVirtualOut(name string) (drivers.Out, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.VirtualErr != nil {
		return nil, d.VirtualErr
	}
	out := &Out{driver: d, name: name, number: len(d.outs), virtual: true, opens: 1}
	d.outs = append(d.outs, out)
	return &outPort{dev: out, number: out.number, open: true}, nil
}

func (d *Driver) String() string { return "miditest" }

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// loopback hands data sent on a virtual output to the listening virtual
// inputs of the same name.
func (d *Driver) loopback(name string, data []byte) {
	d.mu.Lock()
	var targets []*In
	for _, in := range d.ins {
		if in.virtual && in.name == name {
			targets = append(targets, in)
		}
	}
	d.mu.Unlock()

	for _, in := range targets {
		in.Emit(data)
	}
}

// In is an in-memory input port.
type In struct {
	driver  *Driver
	name    string
	number  int
	virtual bool

	mu      sync.Mutex
	open    bool
	opens   int
	closes  int
	reader  *drivers.Reader
	started time.Time
	emitMu  sync.Mutex // Serializes readers, which keep parse state.

	// OpenErr and ListenErr make Open and Listen fail when set.
	OpenErr   error
	ListenErr error
	// CloseHook runs at the start of Close.
	CloseHook func()
}

func (i *In) Open() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.OpenErr != nil {
		return i.OpenErr
	}
	if !i.open {
		i.open = true
		i.opens++
	}
	return nil
}

func (i *In) Close() error {
	if i.CloseHook != nil {
		i.CloseHook()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.open {
		return nil
	}
	i.open = false
	i.closes++
	i.reader = nil
	return nil
}

func (i *In) IsOpen() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.open
}

func (i *In) Number() int             { return i.number }
func (i *In) String() string          { return i.name }
func (i *In) Underlying() interface{} { return i }

// Listen installs the callback behind a drivers.Reader configured with
// config, as rtmididrv does. Only one listener is active at a time.
func (i *In) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (func(), error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ListenErr != nil {
		return nil, i.ListenErr
	}
	if !i.open {
		return nil, fmt.Errorf("%w: %s", ErrPortNotOpen, i.name)
	}
	i.reader = drivers.NewReader(config, onMsg)
	i.started = time.Now()
	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.reader = nil
	}, nil
}

// Emit feeds data to the listener as the driver thread would. It reports
// whether anyone was listening.
func (i *In) Emit(data []byte) bool {
	i.mu.Lock()
	reader := i.reader
	delta := int32(time.Since(i.started).Milliseconds())
	i.mu.Unlock()

	if reader == nil {
		return false
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	i.emitMu.Lock()
	defer i.emitMu.Unlock()
	reader.EachMessage(buf, delta)
	return true
}

// Listening reports whether a callback is installed.
func (i *In) Listening() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reader != nil
}

// Opens returns how many times the port went from closed to open.
func (i *In) Opens() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.opens
}

// Closes returns how many times the port went from open to closed.
func (i *In) Closes() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closes
}

// Out is an in-memory output device. Handles returned by Outs and
// OpenVirtualOut share its send log and counters.
type Out struct {
	driver  *Driver
	name    string
	number  int
	virtual bool

	mu     sync.Mutex
	opens  int
	closes int
	sent   [][]byte

	// OpenErr and SendErr make Open and Send fail when set.
	OpenErr error
	SendErr error
	// SendHook runs inside Send, before the data is recorded.
	SendHook func()
}

func (o *Out) Number() int    { return o.number }
func (o *Out) String() string { return o.name }

// IsOpen reports whether any handle on the device is open.
func (o *Out) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens > o.closes
}

func (o *Out) send(p *outPort, data []byte) error {
	if o.SendHook != nil {
		o.SendHook()
	}

	o.mu.Lock()
	if o.SendErr != nil {
		o.mu.Unlock()
		return o.SendErr
	}
	if !p.open {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPortNotOpen, o.name)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	o.sent = append(o.sent, buf)
	virtual := o.virtual
	o.mu.Unlock()

	if virtual {
		o.driver.loopback(o.name, buf)
	}
	return nil
}

// outPort is one handle on an output device. Its open state is guarded by
// the device lock.
type outPort struct {
	dev    *Out
	number int
	open   bool
}

func (p *outPort) Open() error {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	if p.dev.OpenErr != nil {
		return p.dev.OpenErr
	}
	if !p.open {
		p.open = true
		p.dev.opens++
	}
	return nil
}

func (p *outPort) Close() error {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	if !p.open {
		return nil
	}
	p.open = false
	p.dev.closes++
	return nil
}

func (p *outPort) IsOpen() bool {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	return p.open
}

func (p *outPort) Number() int             { return p.number }
func (p *outPort) String() string          { return p.dev.name }
func (p *outPort) Underlying() interface{} { return p.dev }
func (p *outPort) Send(data []byte) error  { return p.dev.send(p, data) }

// Sent returns every message sent so far.
func (o *Out) Sent() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	res := make([][]byte, len(o.sent))
	copy(res, o.sent)
	return res
}

// Opens returns how many handles went from closed to open.
func (o *Out) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Closes returns how many handles went from open to closed.
func (o *Out) Closes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closes
}
