package contracts

import "context"

// Message is a raw MIDI message received on a subscribed input port.
type Message struct {
	Port        PortDescriptor // Port the message arrived on.
	Virtual     bool           // Port is a virtual input created by this process.
	Data        []byte         // Raw bytes as delivered by the driver.
	Timestamp   uint64         // Receive time, UTC nanoseconds.
	DeltaMillis int32          // Driver time since listening started, in milliseconds.
}

// OutputConnection is an open, send-capable connection to one output port.
type OutputConnection interface {
	Name() string           // Name of the port the connection was opened against.
	PortNum() int           // Index of that port (a counter value for virtual outputs).
	Virtual() bool          // Connection is a virtual output created by this process.
	Send(data []byte) error // Sends data verbatim; ErrConnectionClosed after Close.
	Close() error           // Closes the driver connection; ErrConnectionAlreadyClosed the second time.
	IsClosed() bool         // Reports whether Close has been called.
}

// ClientMIDI defines the port/connection lifecycle operations.
type ClientMIDI interface {
	ListPorts() ([]PortDescriptor, error) // Inputs first, then outputs, indexed per direction.
	CountPorts() (PortCount, error)       // Port counts without building descriptors.

	Connect(port PortDescriptor) (OutputConnection, error)             // Opens an output connection.
	CloseOutput(conn OutputConnection) error                           // Closes an output connection.
	Send(conn OutputConnection, data []byte) (OutputConnection, error) // Sends raw bytes on a connection.
	CreateVirtualOutput(name string) (OutputConnection, error)         // Creates a virtual output endpoint.

	Subscribe(port PortDescriptor) error                       // Starts delivering messages from an input port.
	Unsubscribe(port PortDescriptor) ([]PortDescriptor, error) // Stops one subscription, returns the rest.
	UnsubscribeByIndex(index int) ([]PortDescriptor, error)    // Same, matching on index only.
	UnsubscribeAll() ([]PortDescriptor, error)                 // Stops every hardware subscription.
	GetSubscribed() []PortDescriptor                           // Snapshot of hardware subscriptions.

	CreateVirtualInput(name string) (VirtualPortDescriptor, error)                  // Allocates a virtual input descriptor.
	SubscribeVirtual(port VirtualPortDescriptor) error                              // Creates the endpoint and starts delivery.
	UnsubscribeVirtual(port VirtualPortDescriptor) ([]VirtualPortDescriptor, error) // Removes a virtual input.
	UnsubscribeAllVirtual() ([]VirtualPortDescriptor, error)                        // Removes every virtual input.
	GetSubscribedVirtual() []VirtualPortDescriptor                                  // Snapshot of virtual subscriptions.

	StartCapture(eventChannel chan Message)                         // Sets the channel messages are forwarded to.
	Notifications(ctx context.Context) (<-chan Notification, error) // Device added/removed events until ctx ends.
	Hotplug(ctx context.Context) error                              // Keeps the device view live without events.
	Stop() error                                                    // Tears everything down and releases the driver.
}
