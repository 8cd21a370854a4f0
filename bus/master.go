package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
)

// ErrNoSuchBus reports a bus index outside the live arrays.
var ErrNoSuchBus = errors.New("no such bus")

const notifyDepth = 16

// Master multiplexes every MIDI port the application owns: two port
// arrays (input and output), the persisted per-port settings, the
// process-wide timing values and the input-recording routes.
//
// Every public method locks the master mutex once and delegates to a
// lock-free internal; internals never call public methods. The one
// exception is PollForMidi, which runs lock-free on the hot path.
type Master struct {
	mu     sync.Mutex
	driver Driver
	inbus  busArray
	outbus busArray

	clocks ClocksList
	inputs InputsList
	naming PortNaming

	appName      string
	manual       bool
	initDisabled bool
	clientID     int

	ppqn     int
	bpm      float64
	clockMod int

	dumping         bool
	target          Sequencer
	registry        []Sequencer
	recordByBuss    bool
	recordByChannel bool

	notify chan PortEvent
	log    *log.Logger
}

// NewMaster wires a Master over one subsystem driver, seeded with the
// saved configuration. Call Init to scan and open the ports.
func NewMaster(d Driver, cfg Config, logger *log.Logger) *Master {
	if logger == nil {
		logger = log.Default()
	}
	cfg.sanitize()
	return &Master{
		driver:          d,
		clocks:          cfg.Clocks,
		inputs:          cfg.Inputs,
		naming:          cfg.Naming(),
		appName:         cfg.Client,
		manual:          cfg.Manual,
		initDisabled:    cfg.InitDisabled,
		clientID:        -1,
		ppqn:            cfg.PPQN,
		bpm:             cfg.BPM,
		clockMod:        cfg.ClockMod,
		recordByBuss:    cfg.RecordByBuss,
		recordByChannel: cfg.RecordByChannel,
		notify:          make(chan PortEvent, notifyDepth),
		log:             logger,
	}
}

// Init scans the subsystem, applies the saved per-port settings by
// name, opens every port and rebuilds the persisted lists from what
// actually came up. A port that fails to open is marked unavailable
// and logged; only a failed scan aborts.
func (m *Master) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ins, outs, err := m.driver.Scan(m.ppqn, m.bpm)
	if err != nil {
		return fmt.Errorf("scan midi subsystem: %w", err)
	}
	for _, p := range ins {
		if err := m.inbus.addInput(p, m.savedInput(p)); err != nil {
			m.log.Warn("input setup", "port", p.DisplayName(), "err", err)
		}
	}
	for _, p := range outs {
		p.SetClockMod(m.clockMod)
		m.outbus.addClock(p, m.savedClock(p))
	}
	if err := errors.Join(
		m.inbus.initialize(m.initDisabled),
		m.outbus.initialize(m.initDisabled),
	); err != nil {
		m.log.Warn("some ports failed to open", "err", err)
	}
	m.inbus.setAllInputs()
	m.outbus.setAllClocks()
	m.clientID = m.driver.ClientID()
	m.copyIOBusses()
	m.log.Info("midi bus up",
		"ins", m.inbus.count(), "outs", m.outbus.count(),
		"client", m.clientID)
	return nil
}

// Close stops the transport, closes every port backend (input
// listeners stop before their ports are torn down) and releases the
// subsystem.
func (m *Master) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(
		m.outbus.stop(),
		m.inbus.deinit(),
		m.outbus.deinit(),
		m.driver.Close(),
	)
}

// savedClock is the clock mode stored for this port last session,
// matched by name so renumbered busses keep their setting. A port
// saved as unavailable starts over at off.
func (m *Master) savedClock(p *Port) ClockMode {
	name := p.DisplayName()
	st := m.clocks.Find(name, extractNickname(name), p.Alias())
	if st == nil || st.Clock == ClockUnavailable {
		return ClockOff
	}
	return st.Clock
}

func (m *Master) savedInput(p *Port) bool {
	name := p.DisplayName()
	st := m.inputs.Find(name, extractNickname(name), p.Alias())
	return st != nil && st.Enabled
}

// copyIOBusses rebuilds the persisted lists from the live arrays.
func (m *Master) copyIOBusses() {
	m.inputs.Clear()
	for bus := 0; bus < m.inbus.count(); bus++ {
		m.inputs.Add(bus,
			!m.inbus.isPortUnavailable(bus),
			m.inbus.getInput(bus),
			m.inbus.getMidiBusName(bus), "",
			m.inbus.getMidiAlias(bus))
	}
	m.clocks.Clear()
	for bus := 0; bus < m.outbus.count(); bus++ {
		m.clocks.Add(bus,
			!m.outbus.isPortUnavailable(bus),
			m.outbus.getClock(bus),
			m.outbus.getMidiBusName(bus), "",
			m.outbus.getMidiAlias(bus))
	}
}

// CopyIOBusses refreshes the persisted lists from the live state, for
// saving back to the config.
func (m *Master) CopyIOBusses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.copyIOBusses()
}

// PortStatuses snapshots the persisted lists.
func (m *Master) PortStatuses() (ClocksList, InputsList) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ClocksList{m.clocks.clone()}, InputsList{m.inputs.clone()}
}

// Start starts the subsystem queue, then rewinds every output's clock
// phase, emitting MIDI Start on the clock-enabled ones.
func (m *Master) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.driver.Start(), m.outbus.start())
}

// Stop stops the outputs first, then the subsystem queue.
func (m *Master) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.outbus.stop(), m.driver.Stop())
}

// ContinueFrom re-synchronizes the subsystem queue and every output
// to tick, emitting MIDI Continue with the song position.
func (m *Master) ContinueFrom(tick Pulse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(
		m.driver.ContinueFrom(tick),
		m.outbus.continueFrom(tick),
	)
}

// InitClock primes every output's clock phase for playback from tick.
func (m *Master) InitClock(tick Pulse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(
		m.driver.InitClock(tick),
		m.outbus.initClock(tick),
	)
}

// EmitClock advances every output's clock to tick.
func (m *Master) EmitClock(tick Pulse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outbus.clock(tick)
}

// Flush pushes subsystem-buffered output to the wire.
func (m *Master) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driver.Flush()
}

// SetPPQN changes the resolution everywhere: the subsystem queue and
// every owned port observe the new value.
func (m *Master) SetPPQN(ppqn int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ppqn = normalizePPQN(ppqn)
	m.driver.SetPPQN(m.ppqn)
	m.inbus.setPPQN(m.ppqn)
	m.outbus.setPPQN(m.ppqn)
}

// SetBPM changes the tempo everywhere.
func (m *Master) SetBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bpm = bpm
	m.driver.SetBPM(bpm)
	m.inbus.setBPM(bpm)
	m.outbus.setBPM(bpm)
}

// SetClockMod changes the clock start modulo; zero is ignored.
func (m *Master) SetClockMod(mod int) {
	if mod == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clockMod = mod
	m.outbus.setClockMod(mod)
}

func (m *Master) PPQN() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ppqn
}

func (m *Master) BPM() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bpm
}

func (m *Master) ClockMod() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clockMod
}

func (m *Master) ClientID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientID
}

// Panic sweeps note-off over every note of every channel on every
// output bus, skipping the given display buss, then flushes. Pass a
// negative displayBuss to sweep everything.
func (m *Master) Panic(displayBuss int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for bus := 0; bus < m.outbus.count(); bus++ {
		if bus == displayBuss {
			continue
		}
		for channel := uint8(0); channel < 16; channel++ {
			for note := uint8(0); note < 128; note++ {
				ev := Event{Msg: midi.NoteOff(channel, note)}
				m.outbus.play(bus, &ev, channel)
			}
		}
	}
	return m.driver.Flush()
}

// Play sends one event to the addressed output bus. An event for a
// missing or never-initialized bus is dropped silently; speed over
// scolding on this path.
func (m *Master) Play(bus int, ev *Event, channel uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outbus.play(bus, ev, channel)
}

// PlayAndFlush sends one event and drains the subsystem queue.
func (m *Master) PlayAndFlush(bus int, ev *Event, channel uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(
		m.outbus.play(bus, ev, channel),
		m.driver.Flush(),
	)
}

// Sysex sends a system-exclusive event to the addressed output bus.
func (m *Master) Sysex(bus int, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outbus.sysex(bus, ev)
}

// SetClock sets one output's clock mode and persists it. The live set
// is refused for an unavailable port or a missing bus; a live set
// whose bus is absent from the saved list appends an inert
// placeholder entry and reports false.
func (m *Master) SetClock(bus int, c ClockMode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.outbus.setClock(bus, c)
	if ok {
		m.driver.Flush()
		ok = m.saveClock(bus, c)
	}
	return ok
}

func (m *Master) saveClock(bus int, c ClockMode) bool {
	if m.clocks.Set(bus, c) {
		return true
	}
	m.log.Warn("saving clock for unlisted bus", "bus", bus)
	m.clocks.Add(bus, false, c, "Null clock", "", "")
	return false
}

// GetClock reads one output's live clock mode, off for a bad index.
func (m *Master) GetClock(bus int) ClockMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outbus.getClock(bus)
}

// SetInput flips one input bus and persists the flag, with the same
// refusal and placeholder behavior as SetClock.
func (m *Master) SetInput(bus int, inputing bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.inbus.setInput(bus, inputing)
	if ok {
		m.driver.Flush()
		ok = m.saveInput(bus, inputing)
	}
	return ok
}

func (m *Master) saveInput(bus int, inputing bool) bool {
	if m.inputs.Set(bus, inputing) {
		return true
	}
	m.log.Warn("saving input for unlisted bus", "bus", bus)
	m.inputs.Add(bus, false, inputing, "Null input", "", "")
	return false
}

// GetInput reports whether one input bus feeds the input stream.
func (m *Master) GetInput(bus int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inbus.getInput(bus)
}

func (m *Master) IsInputSystemPort(bus int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inbus.isSystemPort(bus)
}

// IsPortUnavailable reports the sticky could-not-open flag; a bus
// outside the array reads as unavailable.
func (m *Master) IsPortUnavailable(bus int, io IOKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if io == IOInput {
		return m.inbus.isPortUnavailable(bus)
	}
	return m.outbus.isPortUnavailable(bus)
}

// IsPortLocked reports whether another process holds the port.
func (m *Master) IsPortLocked(bus int, io IOKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if io == IOInput {
		return m.inbus.isPortLocked(bus)
	}
	return m.outbus.isPortLocked(bus)
}

func (m *Master) OutBusCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outbus.count()
}

func (m *Master) InBusCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inbus.count()
}

// OutBusName is the live array's full display name for an output bus.
func (m *Master) OutBusName(bus int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outbus.getMidiBusName(bus)
}

// InBusName is the live array's full display name for an input bus.
func (m *Master) InBusName(bus int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inbus.getMidiBusName(bus)
}

// DisplayName renders a bus from the persisted lists in the
// configured naming style.
func (m *Master) DisplayName(bus int, io IOKind) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if io == IOInput {
		return m.inputs.GetDisplayName(bus, m.naming)
	}
	return m.clocks.GetDisplayName(bus, m.naming)
}

// SetPortNaming switches the display style used by DisplayName.
func (m *Master) SetPortNaming(n PortNaming) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.naming = n
}

// SetMidiAlias stores a user alias for the bus in the persisted list,
// so the next reconciliation can match the device under its new name.
func (m *Master) SetMidiAlias(bus int, io IOKind, alias string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if io == IOInput {
		m.inputs.SetAlias(bus, alias)
		return
	}
	m.clocks.SetAlias(bus, alias)
}

// SetPortStatuses replaces the persisted lists wholesale, for
// configuration loaded after construction. Settings reconcile against
// the live ports at the next Init.
func (m *Master) SetPortStatuses(clocks ClocksList, inputs InputsList) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clocks = clocks
	m.inputs = inputs
}

// OutPort returns the live output port at bus.
func (m *Master) OutPort(bus int) (*Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.outbus.port(bus); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("output %d: %w", bus, ErrNoSuchBus)
}

// InPort returns the live input port at bus.
func (m *Master) InPort(bus int) (*Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.inbus.port(bus); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("input %d: %w", bus, ErrNoSuchBus)
}

// PollForMidi reports pending input events. It deliberately takes no
// master lock: the input array is immutable after Init, and the hot
// loop must never contend with configuration calls. It never sleeps;
// pacing belongs to the caller.
func (m *Master) PollForMidi() int {
	return m.inbus.pollForMidi()
}

// IsMoreInput is the locked variant of the pending-input check.
func (m *Master) IsMoreInput() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inbus.pollForMidi() > 0
}

// GetMidiEvent pops one pending input event, tagged with its source
// bus index.
func (m *Master) GetMidiEvent(ev *Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inbus.getMidiEvent(ev)
}

// PortStart records a subsystem announcement of a new port: a stale
// inactive entry with the same identity is pruned, and a notification
// posted so the owner can rescan.
func (m *Master) PortStart(client, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbus.replacementPort(client, port)
	m.postNotify(PortEvent{
		Kind:   PortAttached,
		Client: client,
		Port:   port,
		Bus:    NoBus,
	})
}

// PortExit deactivates every port matching the vanished identity and
// posts a notification.
func (m *Master) PortExit(client, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbus.portExit(client, port)
	m.inbus.portExit(client, port)
	m.postNotify(PortEvent{
		Kind:   PortDetached,
		Client: client,
		Port:   port,
		Bus:    NoBus,
	})
}

// Notifications delivers hot-plug events. The channel is buffered and
// lossy; an undrained event is dropped, never blocked on.
func (m *Master) Notifications() <-chan PortEvent { return m.notify }

func (m *Master) postNotify(ev PortEvent) {
	select {
	case m.notify <- ev:
	default:
	}
}

// SetSequenceInput wires or unwires a recording target. In
// record-by-channel mode targets accumulate in a registry and
// recording runs while the registry is non-empty; a nil target with
// state false clears it. Otherwise a single target holds the input
// stream: a second, different target is refused until the first lets
// go.
func (m *Master) SetSequenceInput(state bool, s Sequencer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordByChannel {
		return m.setChannelInput(state, s)
	}
	return m.setSingleInput(state, s)
}

func (m *Master) setChannelInput(state bool, s Sequencer) bool {
	if s == nil {
		if !state {
			m.registry = nil
			m.dumping = false
		}
		return false
	}
	if state {
		for _, t := range m.registry {
			if t == s {
				m.dumping = true
				return true
			}
		}
		m.registry = append(m.registry, s)
	} else {
		for i, t := range m.registry {
			if t == s {
				m.registry = append(m.registry[:i], m.registry[i+1:]...)
				break
			}
		}
	}
	m.dumping = len(m.registry) > 0
	return true
}

func (m *Master) setSingleInput(state bool, s Sequencer) bool {
	if !state {
		m.dumping = false
		m.target = nil
		return s != nil
	}
	if m.target != nil {
		return m.target == s
	}
	if s == nil {
		return false
	}
	m.dumping = true
	m.target = s
	return true
}

// DumpMidiInput routes one captured input event to the recording
// machinery. In record-by-channel mode the first registered target
// claiming the event's channel takes it; otherwise the single dumping
// target gets it. With record-by-buss set, a target tied to a
// different source bus is skipped.
func (m *Master) DumpMidiInput(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dumpMidiInput(&ev)
}

func (m *Master) dumpMidiInput(ev *Event) bool {
	if m.recordByChannel {
		for _, s := range m.registry {
			if m.recordByBuss && !busMatches(s, ev) {
				continue
			}
			if s.ChannelsMatch(ev) {
				s.StreamEvent(ev)
				return true
			}
		}
		return false
	}
	if !m.dumping || m.target == nil {
		return false
	}
	if m.recordByBuss && !busMatches(m.target, ev) {
		return false
	}
	return m.target.StreamEvent(ev)
}

func busMatches(s Sequencer, ev *Event) bool {
	b := s.InputBus()
	return b == NoBus || b == ev.Bus
}

func (m *Master) IsDumping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dumping
}

// RecordTarget is the single recording target, nil in
// record-by-channel mode or when nothing records.
func (m *Master) RecordTarget() Sequencer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

func (m *Master) RecordByBuss() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordByBuss
}

func (m *Master) SetRecordByBuss(flag bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordByBuss = flag
}

func (m *Master) RecordByChannel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordByChannel
}

func (m *Master) SetRecordByChannel(flag bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordByChannel = flag
}

// ClientName is the application name the ports present to the
// subsystem.
func (m *Master) ClientName() string { return m.appName }

// IsManual reports whether the driver was asked for virtual ports
// instead of connecting to real ones.
func (m *Master) IsManual() bool { return m.manual }
