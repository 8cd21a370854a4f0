package bus

// PortEventKind says what changed in the port population.
type PortEventKind int

const (
	PortAttached PortEventKind = iota
	PortDetached
)

func (k PortEventKind) String() string {
	if k == PortDetached {
		return "detached"
	}
	return "attached"
}

// PortEvent is one hot-plug notification. Bus is the array index of
// the affected port when known, NoBus otherwise; Client and Port are
// the subsystem identity that triggered the change.
type PortEvent struct {
	Kind   PortEventKind
	Client int
	Port   int
	Bus    int
	Input  bool
	Name   string
}
