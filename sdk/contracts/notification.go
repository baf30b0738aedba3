package contracts

// NotificationType is the kind of device change reported.
type NotificationType int

const (
	// Added means an endpoint appeared.
	Added NotificationType = iota
	// Removed means an endpoint disappeared.
	Removed
)

func (t NotificationType) String() string {
	if t == Added {
		return "added"
	}
	return "removed"
}

// ObjectType classifies the objects a device notification refers to.
type ObjectType int

const (
	ObjectOther ObjectType = iota
	ObjectDevice
	ObjectEntity
	ObjectInput
	ObjectOutput
)

func (o ObjectType) String() string {
	switch o {
	case ObjectDevice:
		return "device"
	case ObjectEntity:
		return "entity"
	case ObjectInput:
		return "input"
	case ObjectOutput:
		return "output"
	default:
		return "other"
	}
}

// Notification reports an endpoint being added to or removed from the system.
type Notification struct {
	Type       NotificationType
	ParentName string     // Owning device or entity, empty when unknown.
	ParentID   uint32     // Identifier of the parent, 0 when unknown.
	ParentType ObjectType // Kind of the parent object.
	Name       string     // Endpoint name.
	NativeID   uint32     // Identifier of the endpoint, 0 when unknown.
	Direction  ObjectType // ObjectInput or ObjectOutput for endpoints.
}
