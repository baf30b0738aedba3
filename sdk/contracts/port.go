package contracts

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// Direction tells whether a port receives (Input) or sends (Output) MIDI.
type Direction int

const (
	// Input is a port messages are read from.
	Input Direction = iota
	// Output is a port messages are written to.
	Output
)

// String returns "input" or "output".
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// PortKey is the identity used to compare descriptors: name, direction and
// enumeration index. The driver handle is not part of it.
type PortKey struct {
	Name      string
	Direction Direction
	Index     int
}

// PortRef is the opaque driver handle a descriptor was enumerated from.
// Exactly one of the input or output sides is set. Copying a PortRef copies
// the reference, not the underlying driver port.
type PortRef struct {
	in  drivers.In
	out drivers.Out
}

// InputRef wraps a driver input port.
func InputRef(in drivers.In) PortRef { return PortRef{in: in} }

// OutputRef wraps a driver output port.
func OutputRef(out drivers.Out) PortRef { return PortRef{out: out} }

// Input returns the driver input port, if this is an input reference.
func (r PortRef) Input() (drivers.In, bool) { return r.in, r.in != nil }

// Output returns the driver output port, if this is an output reference.
func (r PortRef) Output() (drivers.Out, bool) { return r.out, r.out != nil }

// IsZero reports whether the reference holds no driver port at all.
func (r PortRef) IsZero() bool { return r.in == nil && r.out == nil }

// PortDescriptor identifies a MIDI endpoint found by enumeration.
//
// Index is the position within its own direction at enumeration time and is
// not stable across re-enumeration. Two descriptors from different
// enumerations can be Equal while pointing at different hardware if the OS
// topology changed in between.
type PortDescriptor struct {
	Direction Direction // Input or Output.
	Name      string    // Port name as reported by the driver, not unique.
	Index     int       // Zero-based position within Direction.
	Ref       PortRef   // Driver handle used to open connections.
}

// Key returns the comparison identity of the descriptor.
func (p PortDescriptor) Key() PortKey {
	return PortKey{Name: p.Name, Direction: p.Direction, Index: p.Index}
}

// Equal compares name, direction and index, ignoring the driver handle.
func (p PortDescriptor) Equal(other PortDescriptor) bool {
	return p.Key() == other.Key()
}

func (p PortDescriptor) String() string {
	return fmt.Sprintf("%s #%d %q", p.Direction, p.Index, p.Name)
}

// VirtualPortDescriptor identifies a software endpoint this process creates.
// Index comes from a process-wide counter, never from enumeration.
type VirtualPortDescriptor struct {
	Direction Direction
	Name      string
	Index     int
}

// Key returns the comparison identity of the descriptor.
func (v VirtualPortDescriptor) Key() PortKey {
	return PortKey{Name: v.Name, Direction: v.Direction, Index: v.Index}
}

// Equal compares name, direction and index.
func (v VirtualPortDescriptor) Equal(other VirtualPortDescriptor) bool {
	return v.Key() == other.Key()
}

// Descriptor returns the virtual port as a PortDescriptor without a driver
// handle, which is how it is reported on delivered messages.
func (v VirtualPortDescriptor) Descriptor() PortDescriptor {
	return PortDescriptor{Direction: v.Direction, Name: v.Name, Index: v.Index}
}

func (v VirtualPortDescriptor) String() string {
	return fmt.Sprintf("virtual %s #%d %q", v.Direction, v.Index, v.Name)
}

// PortCount holds the number of ports visible per direction.
type PortCount struct {
	Input  int
	Output int
}
