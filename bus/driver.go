package bus

// Driver ties a Master to one MIDI subsystem: it enumerates the ports
// and carries the hooks that are subsystem-wide rather than per-port.
type Driver interface {
	// Scan enumerates the subsystem and builds one unopened Port per
	// device, inputs and outputs separately. A driver in manual mode
	// returns its virtual ports instead.
	Scan(ppqn int, bpm float64) (ins, outs []*Port, err error)

	// ClientID is the subsystem client number, -1 when unknown.
	ClientID() int

	// Flush pushes subsystem-buffered output to the wire.
	Flush() error

	// Subsystem-global transport hooks, for backends with a native
	// queue. Per-port emission happens regardless.
	Start() error
	Stop() error
	ContinueFrom(tick Pulse) error
	InitClock(tick Pulse) error

	SetPPQN(ppqn int) error
	SetBPM(bpm float64) error

	// Close releases the subsystem connection. Input callbacks stop
	// before any port backend is torn down.
	Close() error
}

// NopDriver supplies defaults for everything but Scan. Embed it and
// provide the enumeration.
type NopDriver struct{}

func (NopDriver) ClientID() int            { return -1 }
func (NopDriver) Flush() error             { return nil }
func (NopDriver) Start() error             { return nil }
func (NopDriver) Stop() error              { return nil }
func (NopDriver) ContinueFrom(Pulse) error { return nil }
func (NopDriver) InitClock(Pulse) error    { return nil }
func (NopDriver) SetPPQN(int) error        { return nil }
func (NopDriver) SetBPM(float64) error     { return nil }
func (NopDriver) Close() error             { return nil }
