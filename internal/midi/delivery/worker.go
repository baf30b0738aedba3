package delivery

import (
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midiex/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Worker owns one input connection for the lifetime of a subscription. It
// keeps the connection open until cancel is closed, then stops listening and
// closes the connection exactly once.
type Worker struct {
	port    contracts.PortDescriptor
	virtual bool
	in      drivers.In
	stop    func()
	onClose func(error)
	logger  contracts.Logger

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Config describes a worker to start.
type Config struct {
	Port    contracts.PortDescriptor // Reported on every delivered message.
	Virtual bool                     // Port is a virtual input.
	In      drivers.In               // Connection to listen on; opened if needed.
	Listen  drivers.ListenConfig     // What the connection receives; SysEx gets a buffer of at least DefaultSysExBufferSize when unset.
	Enqueue func(contracts.Message) bool
	OnClose func(error) // Called once the connection is closed, with the close error.
	Logger  contracts.Logger
}

// Start opens the connection, installs the driver callback and launches the
// worker goroutine. Nothing is left running when it returns an error.
func Start(cfg Config, cancel <-chan struct{}) (*Worker, error) {
	log := cfg.Logger
	if !cfg.In.IsOpen() {
		if err := cfg.In.Open(); err != nil {
			log.Error("Failed to open MIDI input",
				log.Field().String("port", cfg.Port.Name),
				log.Field().Error("error", err))
			return nil, fmt.Errorf("opening input %s: %w", cfg.Port, err)
		}
	}

	listen := cfg.Listen
	if listen.SysEx && listen.SysExBufferSize == 0 {
		listen.SysExBufferSize = contracts.DefaultSysExBufferSize
	}

	port, virtual, enqueue := cfg.Port, cfg.Virtual, cfg.Enqueue
	stop, err := cfg.In.Listen(func(data []byte, millis int32) {
		msg := contracts.Message{
			Port:        port,
			Virtual:     virtual,
			Data:        append([]byte(nil), data...),
			Timestamp:   uint64(time.Now().UTC().UnixNano()),
			DeltaMillis: millis,
		}
		enqueue(msg)
	}, listen)
	if err != nil {
		_ = cfg.In.Close()
		log.Error("Failed to listen on MIDI input",
			log.Field().String("port", cfg.Port.Name),
			log.Field().Error("error", err))
		return nil, fmt.Errorf("listening on %s: %w", cfg.Port, err)
	}

	w := &Worker{
		port:    cfg.Port,
		virtual: cfg.Virtual,
		in:      cfg.In,
		stop:    stop,
		onClose: cfg.OnClose,
		logger:  log,
		done:    make(chan struct{}),
	}
	go w.run(cancel)

	log.Info("MIDI input subscribed",
		log.Field().String("port", cfg.Port.Name),
		log.Field().Int("index", cfg.Port.Index),
		log.Field().Bool("virtual", cfg.Virtual))
	return w, nil
}

// Done is closed once the worker closed its connection.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the error from closing the connection, valid after Done.
func (w *Worker) Err() error {
	<-w.done
	return w.closeErr
}

func (w *Worker) run(cancel <-chan struct{}) {
	defer close(w.done)
	<-cancel
	w.close()
	if w.onClose != nil {
		w.onClose(w.closeErr)
	}
}

func (w *Worker) close() {
	w.closeOnce.Do(func() {
		if w.stop != nil {
			w.stop()
		}
		if err := w.in.Close(); err != nil {
			w.closeErr = err
			w.logger.Error("Failed to close MIDI input",
				w.logger.Field().String("port", w.port.Name),
				w.logger.Field().Error("error", err))
			return
		}
		w.logger.Info("MIDI input unsubscribed",
			w.logger.Field().String("port", w.port.Name),
			w.logger.Field().Bool("virtual", w.virtual))
	})
}
