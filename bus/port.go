package bus

import (
	"fmt"
	"sync"
)

// IOKind fixes which half of the backend contract a port uses.
type IOKind int8

const (
	IOIndeterminate IOKind = iota
	IOInput
	IOOutput
)

func (k IOKind) String() string {
	switch k {
	case IOInput:
		return "input"
	case IOOutput:
		return "output"
	}
	return "indeterminate"
}

// PortKind distinguishes how a port came to exist.
type PortKind int8

const (
	// PortNormal is a real subsystem port; it auto-connects.
	PortNormal PortKind = iota
	// PortManual is a user-created virtual port.
	PortManual
	// PortSystem is a subsystem bookkeeping port (timer, announce);
	// never auto-connected, never user-facing I/O.
	PortSystem
)

func (k PortKind) String() string {
	switch k {
	case PortManual:
		return "virtual"
	case PortSystem:
		return "system"
	}
	return "normal"
}

// PortDesc carries everything needed to construct a Port. Drivers fill
// one per enumerated subsystem port.
type PortDesc struct {
	App      string // client/application name, used in display names
	BusName  string
	PortName string
	Alias    string
	Index    int // position in the owning array
	ClientID int
	BusID    int
	PortID   int
	PPQN     int
	BPM      float64
	IO       IOKind
	Kind     PortKind
	Backend  Backend
}

// Port is one logical MIDI port: its identity, its enable/clock state
// and its clock-phase bookkeeping, over a pluggable Backend.
//
// Play, Sysex, Flush, Clock and the identity accessors lock the
// port's own mutex; the transport-phase methods (Start, Stop,
// ContinueFrom, InitClock) are serialized by the owning multiplexer.
type Port struct {
	mu sync.Mutex

	busIndex int
	clientID int
	busID    int
	portID   int

	displayName string
	busName     string
	portName    string
	alias       string

	io   IOKind
	kind PortKind

	clock       ClockMode
	active      bool // user-enabled for this session
	unavailable bool // sticky; the backend could not open the port

	ppqn     int
	bpm      float64
	clockMod Pulse // start modulo in 1/16th notes
	lastTick Pulse

	backend Backend
}

// NewPort builds a port from its description. Non-virtual ports with
// both name parts get their display name assembled immediately;
// virtual ports are named by the driver once the subsystem assigns
// their identity.
func NewPort(d PortDesc) *Port {
	busID := d.BusID
	if busID == -1 {
		busID = 0
	}
	bpm := d.BPM
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	p := &Port{
		busIndex: d.Index,
		clientID: d.ClientID,
		busID:    busID,
		portID:   d.PortID,
		busName:  d.BusName,
		portName: d.PortName,
		alias:    d.Alias,
		io:       d.IO,
		kind:     d.Kind,
		clock:    ClockOff,
		ppqn:     normalizePPQN(d.PPQN),
		bpm:      bpm,
		clockMod: DefaultClockMod,
		backend:  d.Backend,
	}
	if p.kind != PortManual && d.BusName != "" && d.PortName != "" {
		p.SetName(d.App, d.BusName, d.PortName)
	}
	return p
}

// SetName assembles the display name from the client and port name
// parts. Virtual ports show the owning application as the bus part.
func (p *Port) SetName(appName, busName, portName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.kind == PortManual {
		p.busName = appName
		p.portName = portName
		p.displayName = fmt.Sprintf(
			"[%d] %d:%d %s:%s",
			p.busIndex, p.busID, p.portID, appName, portName,
		)
		return
	}
	alias := portName
	if busName != "" {
		alias = busName + ":" + portName
	}
	p.busName = busName
	p.portName = portName
	p.displayName = fmt.Sprintf(
		"[%d] %d:%d %s", p.busIndex, p.busID, p.portID, alias,
	)
}

// SetAltName renames the port around its combined connect name,
// used when the subsystem rewrites identity after enumeration.
func (p *Port) SetAltName(appName, busName string) {
	portName := p.ConnectName()
	if p.kind == PortManual {
		p.SetName(appName, busName, portName)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busName = busName
	p.portName = portName
	p.displayName = fmt.Sprintf(
		"[%d] %d:%d %s", p.busIndex, p.busID, p.portID, portName,
	)
}

// ConnectName is the "bus:port" pair used for subsystem lookup.
func (p *Port) ConnectName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busName == "" || p.portName == "" {
		return p.busName + p.portName
	}
	return p.busName + ":" + p.portName
}

// Initialize opens the port at the backend. A port that is neither
// enabled nor asked for via initDisabled is skipped and reported as
// success. The caller marks the port unavailable on failure.
func (p *Port) Initialize(initDisabled bool) error {
	if !p.PortEnabled() && !initDisabled {
		return nil
	}
	if p.IsInputPort() {
		if p.IsVirtualPort() {
			return p.backend.InitInSub()
		}
		return p.backend.InitIn()
	}
	if p.IsVirtualPort() {
		return p.backend.InitOutSub()
	}
	return p.backend.InitOut()
}

// Deinit closes the backend half matching the port's direction.
func (p *Port) Deinit() error {
	if p.IsInputPort() {
		return p.backend.DeinitIn()
	}
	return p.backend.DeinitOut()
}

// Play forwards one event to the backend on the given channel. The
// enable flag does not gate direct addressed sends; only an
// unavailable port swallows them.
func (p *Port) Play(ev *Event, channel uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return nil
	}
	return p.backend.Play(ev, channel)
}

// Sysex forwards a system-exclusive event to the backend.
func (p *Port) Sysex(ev *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return nil
	}
	return p.backend.Sysex(ev)
}

// Flush pushes any buffered backend output to the wire.
func (p *Port) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backend.Flush()
}

// Start rewinds the clock phase and emits MIDI Start when this port
// emits clock.
func (p *Port) Start() error {
	p.lastTick = -1
	if p.clock.Enabled() {
		return p.backend.SendStart()
	}
	return nil
}

// Stop rewinds the clock phase and emits MIDI Stop when this port
// emits clock.
func (p *Port) Stop() error {
	p.lastTick = -1
	if p.clock.Enabled() {
		return p.backend.SendStop()
	}
	return nil
}

// Clock advances the pulse bookkeeping to tick, emitting one MIDI
// clock per PPQN/24 pulses crossed, then flushes. Re-sending an
// already-reached tick emits nothing.
func (p *Port) Clock(tick Pulse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable || !p.clock.Enabled() {
		return nil
	}
	ct := clockTicks(p.ppqn)
	if ct <= 0 {
		return nil
	}
	var err error
	for p.lastTick < tick {
		p.lastTick++
		if p.lastTick%ct == 0 {
			if e := p.backend.SendClock(tick); e != nil {
				err = e
			}
		}
	}
	if e := p.backend.Flush(); e != nil && err == nil {
		err = e
	}
	return err
}

// ContinueFrom re-synchronizes the clock phase to tick and, when this
// port emits clock, sends Continue with the 1/16th-note song position.
func (p *Port) ContinueFrom(tick Pulse) error {
	pp16th := Pulse(p.ppqn / 4)
	if pp16th <= 0 {
		return nil
	}
	leftover := tick % pp16th
	beats := tick / pp16th
	starting := tick - leftover
	if leftover > 0 {
		starting += pp16th
	}
	p.lastTick = starting - 1
	if p.clock.Enabled() {
		return p.backend.SendContinueFrom(tick, beats)
	}
	return nil
}

// InitClock primes the clock phase for playback starting at tick.
// Clock-with-position ports resume via ContinueFrom; modulo ports (and
// any start from zero) send Start and hold emission until the next
// clock-mod boundary.
func (p *Port) InitClock(tick Pulse) error {
	if !p.PortEnabled() || p.ppqn <= 0 {
		return nil
	}
	if p.clock == ClockPos && tick != 0 {
		return p.ContinueFrom(tick)
	}
	if p.clock == ClockMod || tick == 0 {
		err := p.Start()
		clockModTicks := Pulse(p.ppqn/4) * p.clockMod
		if clockModTicks > 0 {
			leftover := tick % clockModTicks
			starting := tick - leftover
			if leftover > 0 {
				starting += clockModTicks
			}
			p.lastTick = starting - 1
		}
		return err
	}
	return nil
}

// PollForMidi reports pending input events, 0 for a disabled port.
func (p *Port) PollForMidi() int {
	if !p.PortEnabled() {
		return 0
	}
	return p.backend.PollForMidi()
}

// GetMidiEvent pops one pending input event into ev.
func (p *Port) GetMidiEvent(ev *Event) bool {
	return p.backend.GetMidiEvent(ev)
}

// SetClock changes the clock mode, rejecting the change once the port
// is unavailable. Any mode other than disabled enables the port.
func (p *Port) SetClock(c ClockMode) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return false
	}
	p.clock = c
	p.active = c != ClockDisabled
	return true
}

// SetInput flips the enable flag of an input port. System ports stay
// enabled and re-open their backend half instead.
func (p *Port) SetInput(inputing bool) error {
	if p.IsSystemPort() {
		p.SetActive(true)
		return p.backend.InitIn()
	}
	p.SetActive(inputing)
	return nil
}

// SetActive sets the session enable flag directly. It cannot revive
// an unavailable port.
func (p *Port) SetActive(flag bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return
	}
	p.active = flag
}

// SetPortUnavailable marks the port permanently unusable. One-way.
func (p *Port) SetPortUnavailable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = true
	p.active = false
}

// SetClockMod changes the clock start modulo; zero is ignored.
func (p *Port) SetClockMod(mod int) {
	if mod != 0 {
		p.clockMod = Pulse(mod)
	}
}

// SetPPQN updates the resolution and tells the backend.
func (p *Port) SetPPQN(ppqn int) {
	p.mu.Lock()
	p.ppqn = normalizePPQN(ppqn)
	p.mu.Unlock()
	p.backend.SetPPQN(ppqn)
}

// SetBPM updates the tempo and tells the backend.
func (p *Port) SetBPM(bpm float64) {
	p.mu.Lock()
	p.bpm = bpm
	p.mu.Unlock()
	p.backend.SetBPM(bpm)
}

// Match reports whether the subsystem (bus, port) pair is this port,
// independent of its array index.
func (p *Port) Match(bus, port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busID == bus && p.portID == port
}

// Connectable reports whether the subsystem should auto-connect this
// port. Virtual ports wait to be connected to.
func (p *Port) Connectable(initDisabled bool) bool {
	if p.IsVirtualPort() {
		return false
	}
	return p.PortEnabled() || initDisabled
}

// Identity rewrite hooks, used while the subsystem assigns real ids
// during enumeration.

func (p *Port) SetBusID(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busID = id
}

func (p *Port) SetPortID(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.portID = id
}

func (p *Port) SetClientID(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = id
}

func (p *Port) GetClock() ClockMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock
}

// ClockEnabled reports whether the current mode emits clock pulses.
func (p *Port) ClockEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Enabled()
}

// PortEnabled reports the session enable flag.
func (p *Port) PortEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// PortUnavailable reports the sticky could-not-open flag.
func (p *Port) PortUnavailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unavailable
}

// PortLocked reports whether another process holds the port.
func (p *Port) PortLocked() bool { return p.backend.PortLocked() }

func (p *Port) BusIndex() int  { return p.busIndex }
func (p *Port) ClientID() int  { p.mu.Lock(); defer p.mu.Unlock(); return p.clientID }
func (p *Port) BusID() int     { p.mu.Lock(); defer p.mu.Unlock(); return p.busID }
func (p *Port) PortID() int    { p.mu.Lock(); defer p.mu.Unlock(); return p.portID }
func (p *Port) PPQN() int      { p.mu.Lock(); defer p.mu.Unlock(); return p.ppqn }
func (p *Port) BPM() float64   { p.mu.Lock(); defer p.mu.Unlock(); return p.bpm }
func (p *Port) IO() IOKind     { return p.io }
func (p *Port) Kind() PortKind { return p.kind }

func (p *Port) BusName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busName
}

func (p *Port) PortName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.portName
}

func (p *Port) Alias() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alias
}

func (p *Port) DisplayName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayName
}

func (p *Port) IsVirtualPort() bool { return p.kind == PortManual }
func (p *Port) IsSystemPort() bool  { return p.kind == PortSystem }
func (p *Port) IsInputPort() bool   { return p.io == IOInput }
func (p *Port) IsOutputPort() bool  { return p.io == IOOutput }
