package bus

// Backend is the per-port contract a concrete MIDI subsystem adapter
// implements. The Port wrapping it decides which calls reach the
// backend; only the half matching the port's direction is ever used.
//
// InitIn, InitOut, Play, SendClock, SendStart, SendStop and
// SendContinueFrom must be supplied by every backend. The rest have
// no-op defaults in NopBackend for subsystems without the capability;
// callers cannot tell "unsupported" from "nothing pending".
type Backend interface {
	InitIn() error
	InitOut() error
	Play(ev *Event, channel uint8) error
	SendClock(tick Pulse) error
	SendStart() error
	SendStop() error
	SendContinueFrom(tick, beats Pulse) error

	InitInSub() error
	InitOutSub() error
	DeinitIn() error
	DeinitOut() error
	Sysex(ev *Event) error
	Flush() error
	SetPPQN(ppqn int)
	SetBPM(bpm float64)
	PollForMidi() int
	GetMidiEvent(ev *Event) bool
	PortLocked() bool
}

// NopBackend supplies defaults for the optional half of Backend.
// Concrete backends embed it and implement the required methods.
type NopBackend struct{}

// InitInSub reports virtual-port subscription as unsupported.
func (NopBackend) InitInSub() error { return nil }

// InitOutSub reports virtual-port subscription as unsupported.
func (NopBackend) InitOutSub() error { return nil }

func (NopBackend) DeinitIn() error  { return nil }
func (NopBackend) DeinitOut() error { return nil }

// Sysex drops the event; the subsystem has no SysEx streaming.
func (NopBackend) Sysex(*Event) error { return nil }

func (NopBackend) Flush() error     { return nil }
func (NopBackend) SetPPQN(int)      {}
func (NopBackend) SetBPM(float64)   {}

// PollForMidi reports no events pending.
func (NopBackend) PollForMidi() int { return 0 }

// GetMidiEvent reports no event available.
func (NopBackend) GetMidiEvent(*Event) bool { return false }

func (NopBackend) PortLocked() bool { return false }
