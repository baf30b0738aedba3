package contracts

import "gitlab.com/gomidi/midi/v2/drivers"

// Driver is the OS MIDI backend the client runs on. The rtmidi driver from
// gomidi satisfies it; tests plug in an in-memory one.
type Driver interface {
	Ins() ([]drivers.In, error)
	Outs() ([]drivers.Out, error)
	OpenVirtualIn(name string) (drivers.In, error)
	OpenVirtualOut(name string) (drivers.Out, error)
	String() string
	Close() error
}
