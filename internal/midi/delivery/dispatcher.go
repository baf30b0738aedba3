// Package delivery moves messages from driver callbacks to the consumer.
//
// Driver callbacks only enqueue into the Dispatcher; a single goroutine
// dequeues and forwards to whatever channel the consumer registered. Delivery
// is best effort: a full queue or a missing consumer drops the message.
package delivery

import (
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midiex/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// Dispatcher forwards queued messages to the consumer channel in order.
type Dispatcher struct {
	logger contracts.Logger
	inbox  chan contracts.Message
	sink   atomic.Value // chan contracts.Message
	quit   chan struct{}
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	dropped   atomic.Uint64
}

// NewDispatcher creates a dispatcher whose queue holds size messages.
func NewDispatcher(logger contracts.Logger, size int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		logger: logger,
		inbox:  make(chan contracts.Message, size),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the forwarding goroutine. Calling it again is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// SetSink sets the consumer channel. A nil channel makes every message drop.
func (d *Dispatcher) SetSink(ch chan contracts.Message) {
	d.sink.Store(ch)
}

// Enqueue queues msg without blocking. It reports false when the message was
// dropped because the queue is full or the dispatcher stopped.
func (d *Dispatcher) Enqueue(msg contracts.Message) bool {
	select {
	case <-d.quit:
		return false
	default:
	}

	select {
	case d.inbox <- msg:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("MIDI delivery queue full; dropping message",
			d.logger.Field().String("port", msg.Port.Name))
		return false
	}
}

// Dropped returns how many messages were discarded so far.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Stop ends forwarding. Queued messages that were not forwarded are dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
		d.startOnce.Do(func() { close(d.done) })
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case msg := <-d.inbox:
			d.forward(msg)
		}
	}
}

func (d *Dispatcher) forward(msg contracts.Message) {
	sink, _ := d.sink.Load().(chan contracts.Message)
	if sink == nil {
		d.dropped.Add(1)
		d.logger.Debug("No MIDI consumer registered; dropping message",
			d.logger.Field().String("port", msg.Port.Name))
		return
	}

	d.logger.Debug("MIDI message",
		d.logger.Field().String("port", msg.Port.Name),
		d.logger.Field().Stringer("message", midi.Message(msg.Data)))

	select {
	case sink <- msg:
	case <-d.quit:
	}
}
