package client

import (
	"sync"

	"github.com/leandrodaf/midiex/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// lockedDriver serializes everything that touches shared driver state:
// enumeration, virtual endpoint creation, port Open and Close, and the final
// driver Close. rtmididrv keeps the list of opened ports unguarded.
// Send and Listen pass straight through.
type lockedDriver struct {
	mu     sync.Mutex
	driver contracts.Driver
}

var _ contracts.Driver = (*lockedDriver)(nil)

func newLockedDriver(d contracts.Driver) *lockedDriver {
	if l, ok := d.(*lockedDriver); ok {
		return l
	}
	return &lockedDriver{driver: d}
}

func (l *lockedDriver) Ins() ([]drivers.In, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ins, err := l.driver.Ins()
	if err != nil {
		return nil, err
	}
	for i, in := range ins {
		ins[i] = &lockedIn{In: in, mu: &l.mu}
	}
	return ins, nil
}

func (l *lockedDriver) Outs() ([]drivers.Out, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	outs, err := l.driver.Outs()
	if err != nil {
		return nil, err
	}
	for i, out := range outs {
		outs[i] = &lockedOut{Out: out, mu: &l.mu}
	}
	return outs, nil
}

func (l *lockedDriver) OpenVirtualIn(name string) (drivers.In, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	in, err := l.driver.OpenVirtualIn(name)
	if err != nil {
		return nil, err
	}
	return &lockedIn{In: in, mu: &l.mu}, nil
}

func (l *lockedDriver) OpenVirtualOut(name string) (drivers.Out, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out, err := l.driver.OpenVirtualOut(name)
	if err != nil {
		return nil, err
	}
	return &lockedOut{Out: out, mu: &l.mu}, nil
}

func (l *lockedDriver) String() string {
	return l.driver.String()
}

func (l *lockedDriver) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.driver.Close()
}

type lockedIn struct {
	drivers.In
	mu *sync.Mutex
}

func (p *lockedIn) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.In.Open()
}

func (p *lockedIn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.In.Close()
}

type lockedOut struct {
	drivers.Out
	mu *sync.Mutex
}

func (p *lockedOut) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Out.Open()
}

func (p *lockedOut) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Out.Close()
}
