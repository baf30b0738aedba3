// Package client implements contracts.ClientMIDI on top of a MIDI driver.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midiex/internal/midi/catalog"
	"github.com/leandrodaf/midiex/internal/midi/delivery"
	"github.com/leandrodaf/midiex/internal/midi/hotplug"
	"github.com/leandrodaf/midiex/internal/midi/output"
	"github.com/leandrodaf/midiex/internal/midi/subscription"
	"github.com/leandrodaf/midiex/internal/midi/virtual"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/multierr"
)

// SnapshotterFunc opens the OS endpoint source used for notifications.
type SnapshotterFunc func() (hotplug.Snapshotter, error)

// Config holds everything a ClientMid is built from.
type Config struct {
	Logger          contracts.Logger
	Driver          contracts.Driver
	Virtual         *virtual.Factory
	DeliveryBuffer  int
	Listen          drivers.ListenConfig
	HotplugInterval time.Duration
	Snapshotter     SnapshotterFunc
}

// ClientMid manages MIDI ports, output connections and input subscriptions.
// The two registries are the only shared mutable state; each output
// connection guards its own driver port.
type ClientMid struct {
	logger          contracts.Logger
	driver          contracts.Driver
	catalog         *catalog.Catalog
	virtual         *virtual.Factory
	dispatcher      *delivery.Dispatcher
	inputs          *subscription.Registry[contracts.PortDescriptor]
	virtualInputs   *subscription.Registry[contracts.VirtualPortDescriptor]
	listen          drivers.ListenConfig
	hotplugInterval time.Duration
	snapshotter     SnapshotterFunc

	ctx      context.Context // Cancelled by Stop; parents every watcher.
	cancel   context.CancelFunc
	workers  sync.WaitGroup // Delivery workers still holding a connection.
	watchers sync.WaitGroup // Notification and hotplug goroutines.

	errMu     sync.Mutex
	closeErrs error // Input close failures collected for Stop.

	liveMu sync.Mutex
	live   map[workerKey]*delivery.Worker // Latest worker per port, until it closes.

	sourceMu sync.Mutex
	source   hotplug.Snapshotter // Opened on first use, shared by every watcher.

	life     sync.RWMutex // Held for reading while starting workers or watchers.
	stopped  atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

var _ contracts.ClientMIDI = (*ClientMid)(nil)

// New creates a client and starts its message dispatcher. Driver access is
// serialized by the client, so cfg.Driver need not be safe for concurrent use.
func New(cfg Config) *ClientMid {
	driver := newLockedDriver(cfg.Driver)
	if cfg.Virtual == nil {
		cfg.Virtual = virtual.NewFactory()
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &ClientMid{
		logger:          cfg.Logger,
		driver:          driver,
		catalog:         catalog.New(driver, cfg.Logger),
		virtual:         cfg.Virtual,
		dispatcher:      delivery.NewDispatcher(cfg.Logger, cfg.DeliveryBuffer),
		inputs:          subscription.NewRegistry[contracts.PortDescriptor](),
		virtualInputs:   subscription.NewRegistry[contracts.VirtualPortDescriptor](),
		listen:          cfg.Listen,
		hotplugInterval: cfg.HotplugInterval,
		snapshotter:     cfg.Snapshotter,
		ctx:             ctx,
		cancel:          cancel,
		live:            make(map[workerKey]*delivery.Worker),
	}
	c.dispatcher.Start()
	c.logger.Info("MIDI client created", c.logger.Field().String("driver", cfg.Driver.String()))
	return c
}

// ListPorts returns every input followed by every output.
func (c *ClientMid) ListPorts() ([]contracts.PortDescriptor, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	return c.catalog.List()
}

// CountPorts returns the number of inputs and outputs.
func (c *ClientMid) CountPorts() (contracts.PortCount, error) {
	if err := c.checkRunning(); err != nil {
		return contracts.PortCount{}, err
	}
	return c.catalog.Count()
}

// Connect opens an output connection. port must be an output.
func (c *ClientMid) Connect(port contracts.PortDescriptor) (contracts.OutputConnection, error) {
	c.life.RLock()
	defer c.life.RUnlock()
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	conn, err := output.Connect(c.driver, port, c.logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// CloseOutput closes conn. Closing twice returns ErrConnectionAlreadyClosed.
func (c *ClientMid) CloseOutput(conn contracts.OutputConnection) error {
	if conn == nil {
		return fmt.Errorf("%w: nil output connection", contracts.ErrConnectionAlreadyClosed)
	}
	return conn.Close()
}

// Send writes data to conn and hands conn back for chaining.
func (c *ClientMid) Send(conn contracts.OutputConnection, data []byte) (contracts.OutputConnection, error) {
	if conn == nil {
		return nil, contracts.ErrConnectionClosed
	}
	if err := conn.Send(data); err != nil {
		return nil, err
	}
	return conn, nil
}

// CreateVirtualOutput creates an output endpoint other applications can
// read from. Its PortNum comes from a process-wide counter.
func (c *ClientMid) CreateVirtualOutput(name string) (contracts.OutputConnection, error) {
	c.life.RLock()
	defer c.life.RUnlock()
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	num, err := c.virtual.NextOutputNum()
	if err != nil {
		return nil, err
	}
	conn, err := output.NewVirtual(c.driver, name, num, c.logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Subscribe opens port and delivers its messages until it is unsubscribed.
// An equal port that is already subscribed yields ErrAlreadySubscribed.
func (c *ClientMid) Subscribe(port contracts.PortDescriptor) error {
	c.life.RLock()
	defer c.life.RUnlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if port.Direction != contracts.Input {
		return fmt.Errorf("%w: %s", contracts.ErrOutputPortSupplied, port)
	}
	in, ok := port.Ref.Input()
	if !ok {
		if _, isOut := port.Ref.Output(); isOut {
			return fmt.Errorf("%w: %s", contracts.ErrOutputPortSupplied, port)
		}
		return fmt.Errorf("%w: %s", contracts.ErrInvalidPortRef, port)
	}

	c.awaitUnsubscribed(workerKey{port: port.Key()}, func() bool { return c.inputs.Contains(port) })
	return c.inputs.Add(port, func(cancel <-chan struct{}) error {
		return c.startWorker(port, false, in, cancel)
	})
}

// Unsubscribe stops delivery from port and returns the ports still subscribed.
func (c *ClientMid) Unsubscribe(port contracts.PortDescriptor) ([]contracts.PortDescriptor, error) {
	return c.inputs.Remove(port)
}

// UnsubscribeByIndex stops delivery from the subscribed port with index.
func (c *ClientMid) UnsubscribeByIndex(index int) ([]contracts.PortDescriptor, error) {
	return c.inputs.RemoveByIndex(index)
}

// UnsubscribeAll stops every hardware subscription.
func (c *ClientMid) UnsubscribeAll() ([]contracts.PortDescriptor, error) {
	removed := c.inputs.Clear()
	if len(removed) > 0 {
		c.logger.Info("All MIDI inputs unsubscribed", c.logger.Field().Int("count", len(removed)))
	}
	return []contracts.PortDescriptor{}, nil
}

// GetSubscribed returns the subscribed hardware ports.
func (c *ClientMid) GetSubscribed() []contracts.PortDescriptor {
	return c.inputs.Snapshot()
}

// CreateVirtualInput allocates a virtual input. Nothing is visible to other
// applications until it is subscribed.
func (c *ClientMid) CreateVirtualInput(name string) (contracts.VirtualPortDescriptor, error) {
	return c.virtual.NewInput(name)
}

// SubscribeVirtual creates the virtual endpoint for port and delivers what
// other applications send to it.
func (c *ClientMid) SubscribeVirtual(port contracts.VirtualPortDescriptor) error {
	c.life.RLock()
	defer c.life.RUnlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if !c.virtual.Supported() {
		return fmt.Errorf("%w: virtual inputs", contracts.ErrUnsupportedPlatform)
	}
	if port.Direction != contracts.Input {
		return fmt.Errorf("%w: %s", contracts.ErrOutputPortSupplied, port)
	}

	c.awaitUnsubscribed(workerKey{virtual: true, port: port.Descriptor().Key()}, func() bool { return c.virtualInputs.Contains(port) })
	return c.virtualInputs.Add(port, func(cancel <-chan struct{}) error {
		in, err := c.driver.OpenVirtualIn(port.Name)
		if err != nil {
			c.logger.Error("Failed to create virtual MIDI input",
				c.logger.Field().String("name", port.Name),
				c.logger.Field().Error("error", err))
			return fmt.Errorf("creating virtual input %q: %w", port.Name, err)
		}
		return c.startWorker(port.Descriptor(), true, in, cancel)
	})
}

// UnsubscribeVirtual removes the virtual input and returns the rest.
func (c *ClientMid) UnsubscribeVirtual(port contracts.VirtualPortDescriptor) ([]contracts.VirtualPortDescriptor, error) {
	if !c.virtual.Supported() {
		return []contracts.VirtualPortDescriptor{}, fmt.Errorf("%w: virtual inputs", contracts.ErrUnsupportedPlatform)
	}
	return c.virtualInputs.Remove(port)
}

// UnsubscribeAllVirtual removes every virtual input.
func (c *ClientMid) UnsubscribeAllVirtual() ([]contracts.VirtualPortDescriptor, error) {
	if !c.virtual.Supported() {
		return []contracts.VirtualPortDescriptor{}, fmt.Errorf("%w: virtual inputs", contracts.ErrUnsupportedPlatform)
	}
	removed := c.virtualInputs.Clear()
	if len(removed) > 0 {
		c.logger.Info("All virtual MIDI inputs unsubscribed", c.logger.Field().Int("count", len(removed)))
	}
	return []contracts.VirtualPortDescriptor{}, nil
}

// GetSubscribedVirtual returns the subscribed virtual inputs.
func (c *ClientMid) GetSubscribedVirtual() []contracts.VirtualPortDescriptor {
	return c.virtualInputs.Snapshot()
}

// StartCapture sets the channel received messages are forwarded to.
// Messages arriving while no channel is set are dropped.
func (c *ClientMid) StartCapture(eventChannel chan contracts.Message) {
	if eventChannel == nil {
		c.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	c.dispatcher.SetSink(eventChannel)
	c.logger.Info("Starting MIDI event capture")
}

// Notifications reports endpoints being added and removed until ctx is done
// or the client stops, then closes the returned channel.
func (c *ClientMid) Notifications(ctx context.Context) (<-chan contracts.Notification, error) {
	events := make(chan contracts.Notification, 16)
	if err := c.watch(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// Hotplug keeps the OS device view current until ctx is done, without
// reporting anything.
func (c *ClientMid) Hotplug(ctx context.Context) error {
	return c.watch(ctx, nil)
}

// Stop unsubscribes everything, waits for every worker to close its
// connection and releases the driver. Only the first call does anything.
func (c *ClientMid) Stop() error {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping MIDI client")
		c.life.Lock()
		c.stopped.Store(true)
		c.cancel()
		c.inputs.Clear()
		c.virtualInputs.Clear()
		c.life.Unlock()

		c.workers.Wait()
		c.watchers.Wait()
		c.dispatcher.Stop()

		c.errMu.Lock()
		err := c.closeErrs
		c.errMu.Unlock()
		c.sourceMu.Lock()
		if c.source != nil {
			if cerr := c.source.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("closing endpoint source: %w", cerr))
			}
		}
		c.sourceMu.Unlock()
		if cerr := c.driver.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("closing driver: %w", cerr))
		}
		c.stopErr = err

		if err != nil {
			c.logger.Error("MIDI client stopped with errors", c.logger.Field().Error("error", err))
			return
		}
		c.logger.Info("MIDI client stopped")
	})
	return c.stopErr
}

type workerKey struct {
	virtual bool
	port    contracts.PortKey
}

// awaitUnsubscribed waits, outside any registry lock, for the worker of an
// earlier subscription of key to finish closing its port. The worker is read
// before the membership check: a registered port keeps its worker running,
// while one that is no longer registered has already been told to stop.
func (c *ClientMid) awaitUnsubscribed(key workerKey, registered func() bool) {
	c.liveMu.Lock()
	prev := c.live[key]
	c.liveMu.Unlock()
	if prev != nil && !registered() {
		<-prev.Done()
	}
}

// startWorker runs inside the registry lock. Callers wait for the previous
// worker of the port first; if another unsubscribe slipped in since, the
// wait here holds the registry for the length of one port close.
func (c *ClientMid) startWorker(port contracts.PortDescriptor, isVirtual bool, in drivers.In, cancel <-chan struct{}) error {
	key := workerKey{virtual: isVirtual, port: port.Key()}
	c.liveMu.Lock()
	prev := c.live[key]
	c.liveMu.Unlock()
	if prev != nil {
		<-prev.Done()
	}

	c.workers.Add(1)
	var w *delivery.Worker
	w, err := delivery.Start(delivery.Config{
		Port:    port,
		Virtual: isVirtual,
		In:      in,
		Listen:  c.listen,
		Enqueue: c.dispatcher.Enqueue,
		OnClose: func(err error) { c.workerClosed(key, w, err) },
		Logger:  c.logger,
	}, cancel)
	if err != nil {
		c.workers.Done()
		return err
	}

	c.liveMu.Lock()
	c.live[key] = w
	c.liveMu.Unlock()
	return nil
}

// workerClosed runs on the worker goroutine. cancel cannot fire before
// startWorker returns, so w is always set by then.
func (c *ClientMid) workerClosed(key workerKey, w *delivery.Worker, err error) {
	c.liveMu.Lock()
	if c.live[key] == w {
		delete(c.live, key)
	}
	c.liveMu.Unlock()

	if err != nil {
		c.errMu.Lock()
		c.closeErrs = multierr.Append(c.closeErrs, err)
		c.errMu.Unlock()
	}
	c.workers.Done()
}

func (c *ClientMid) watch(ctx context.Context, events chan contracts.Notification) error {
	c.life.RLock()
	defer c.life.RUnlock()
	if err := c.checkRunning(); err != nil {
		return err
	}
	if c.snapshotter == nil {
		return fmt.Errorf("%w: device notifications", contracts.ErrUnsupportedPlatform)
	}
	source, err := c.endpointSource()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	w := hotplug.NewWatcher(source, c.hotplugInterval, c.logger)

	c.watchers.Add(1)
	go func() {
		defer c.watchers.Done()
		defer stop()
		defer cancel()
		if events != nil {
			defer close(events)
		}
		if err := w.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("MIDI device watcher stopped", c.logger.Field().Error("error", err))
		}
	}()
	return nil
}

// endpointSource opens the OS endpoint source once. Watchers get a view whose
// Close does nothing; Stop closes the source itself.
func (c *ClientMid) endpointSource() (hotplug.Snapshotter, error) {
	c.sourceMu.Lock()
	defer c.sourceMu.Unlock()
	if c.source == nil {
		source, err := c.snapshotter()
		if err != nil {
			return nil, err
		}
		c.source = source
	}
	return sharedSource{c.source}, nil
}

type sharedSource struct {
	hotplug.Snapshotter
}

func (sharedSource) Close() error { return nil }

func (c *ClientMid) checkRunning() error {
	if c.stopped.Load() {
		return contracts.ErrClientStopped
	}
	return nil
}
