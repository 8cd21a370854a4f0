package bus

import (
	"errors"
	"fmt"
	"strings"
)

// busInfo pairs a port with its array bookkeeping: whether it came up,
// and the configured clock/input setting applied to it on startup.
type busInfo struct {
	port        *Port
	active      bool
	initialized bool
	clock       ClockMode // configured clock, output arrays only
	input       bool      // configured input flag, input arrays only
}

func (bi *busInfo) activate() {
	bi.active = true
	bi.initialized = true
}

func (bi *busInfo) deactivate() {
	bi.active = false
	bi.initialized = false
}

// initialize opens the port. A skipped (disabled, not forced) port
// still activates so that addressed sends keep reaching it; a failed
// one is marked unavailable for good.
func (bi *busInfo) initialize(initDisabled bool) error {
	if err := bi.port.Initialize(initDisabled); err != nil {
		bi.deactivate()
		bi.port.SetPortUnavailable()
		return fmt.Errorf("init %q: %w", bi.port.DisplayName(), err)
	}
	bi.activate()
	return nil
}

// configClock records the configured clock mode and applies it to the
// port. False when the port refuses the change.
func (bi *busInfo) configClock(c ClockMode) bool {
	if !bi.port.SetClock(c) {
		return false
	}
	bi.clock = c
	return true
}

// configInput records the configured input flag and applies it.
func (bi *busInfo) configInput(flag bool) error {
	bi.input = flag
	return bi.port.SetInput(flag)
}

// busArray owns one direction's ports, indexed by their position in
// the array. Out-of-range indexes are tolerated everywhere; reads
// return zero values and writes do nothing.
type busArray struct {
	busses []*busInfo
	next   int // rotating scan start, keeps multiple inputs fed fairly
}

// addClock appends an output port with its configured clock mode.
func (a *busArray) addClock(p *Port, c ClockMode) {
	bi := &busInfo{port: p}
	bi.configClock(c)
	a.busses = append(a.busses, bi)
}

// addInput appends an input port with its configured input flag.
func (a *busArray) addInput(p *Port, inputing bool) error {
	bi := &busInfo{port: p}
	err := bi.configInput(inputing)
	a.busses = append(a.busses, bi)
	return err
}

func (a *busArray) count() int { return len(a.busses) }

func (a *busArray) info(b int) *busInfo {
	if b < 0 || b >= len(a.busses) {
		return nil
	}
	return a.busses[b]
}

// port returns the port at index b, nil when out of range.
func (a *busArray) port(b int) *Port {
	if bi := a.info(b); bi != nil {
		return bi.port
	}
	return nil
}

// initialize opens every port, continuing past failures so one dead
// device cannot take down the rest of the array.
func (a *busArray) initialize(initDisabled bool) error {
	var errs []error
	for _, bi := range a.busses {
		if err := bi.initialize(initDisabled); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// play sends one event to the addressed bus, dropping it when the
// index is bad or the bus never came up.
func (a *busArray) play(b int, ev *Event, channel uint8) error {
	bi := a.info(b)
	if bi == nil || !bi.active {
		return nil
	}
	return bi.port.Play(ev, channel)
}

func (a *busArray) sysex(b int, ev *Event) error {
	bi := a.info(b)
	if bi == nil || !bi.active {
		return nil
	}
	return bi.port.Sysex(ev)
}

func (a *busArray) initClock(tick Pulse) error {
	var errs []error
	for _, bi := range a.busses {
		if err := bi.port.InitClock(tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *busArray) clock(tick Pulse) error {
	var errs []error
	for _, bi := range a.busses {
		if err := bi.port.Clock(tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *busArray) start() error {
	var errs []error
	for _, bi := range a.busses {
		if err := bi.port.Start(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *busArray) stop() error {
	var errs []error
	for _, bi := range a.busses {
		if err := bi.port.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *busArray) continueFrom(tick Pulse) error {
	var errs []error
	for _, bi := range a.busses {
		if err := bi.port.ContinueFrom(tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// setClock changes one bus's clock mode. An inactive bus accepts the
// change only while it reads back as disabled, so a stored setting is
// not junked by a port that merely failed to appear this session.
func (a *busArray) setClock(b int, c ClockMode) bool {
	current := a.getClock(b)
	bi := a.info(b)
	if bi == nil {
		return false
	}
	if !bi.active && current != ClockDisabled {
		return false
	}
	return bi.configClock(c)
}

// getClock reads the clock mode; off for a bad index.
func (a *busArray) getClock(b int) ClockMode {
	if p := a.port(b); p != nil {
		return p.GetClock()
	}
	return ClockOff
}

// setAllClocks re-applies each bus's configured clock mode.
func (a *busArray) setAllClocks() {
	for _, bi := range a.busses {
		bi.port.SetClock(bi.clock)
	}
}

// setInput flips one input bus. An inactive bus accepts the change
// only while it reads back as off, again to protect stored settings.
func (a *busArray) setInput(b int, inputing bool) bool {
	current := a.getInput(b)
	bi := a.info(b)
	if bi == nil {
		return false
	}
	if !bi.active && current {
		return false
	}
	return bi.configInput(inputing) == nil
}

// getInput reports whether the bus feeds the input stream. System
// ports always do while active.
func (a *busArray) getInput(b int) bool {
	bi := a.info(b)
	if bi == nil || !bi.active {
		return false
	}
	if bi.port.IsSystemPort() {
		return true
	}
	return bi.port.PortEnabled()
}

// setAllInputs re-applies each bus's configured input flag.
func (a *busArray) setAllInputs() {
	for _, bi := range a.busses {
		bi.port.SetInput(bi.input)
	}
}

// getMidiBusName builds the display name for bus b. When the port
// name already carries the client prefix the combined form drops the
// duplicate; an inactive, non-disabled bus keeps its saved display
// name untouched.
func (a *busArray) getMidiBusName(b int) string {
	bi := a.info(b)
	if bi == nil {
		return ""
	}
	p := bi.port
	if bi.active || p.GetClock() == ClockDisabled {
		busName := p.BusName()
		portName := p.PortName()
		if strings.HasPrefix(portName, busName) {
			return fmt.Sprintf(
				"[%d] %d:%d %s", b, p.BusID(), p.PortID(), portName,
			)
		}
	}
	return p.DisplayName()
}

func (a *busArray) getMidiPortName(b int) string {
	if p := a.port(b); p != nil {
		return p.PortName()
	}
	return ""
}

func (a *busArray) getMidiAlias(b int) string {
	if p := a.port(b); p != nil {
		return p.Alias()
	}
	return ""
}

// portExit deactivates every bus whose subsystem identity matches the
// vanished (client, port) pair.
func (a *busArray) portExit(client, port int) {
	for _, bi := range a.busses {
		if bi.port.Match(client, port) {
			bi.deactivate()
		}
	}
}

func (a *busArray) isSystemPort(b int) bool {
	bi := a.info(b)
	if bi == nil || !bi.active {
		return false
	}
	return bi.port.IsSystemPort()
}

// isPortUnavailable treats a bad index as unavailable.
func (a *busArray) isPortUnavailable(b int) bool {
	if p := a.port(b); p != nil {
		return p.PortUnavailable()
	}
	return true
}

func (a *busArray) isPortLocked(b int) bool {
	if p := a.port(b); p != nil {
		return p.PortLocked()
	}
	return false
}

// pollForMidi reports the pending-event count of the first bus that
// has any, scanning from the rotating start index.
func (a *busArray) pollForMidi() int {
	n := len(a.busses)
	for i := 0; i < n; i++ {
		bi := a.busses[(a.next+i)%n]
		if c := bi.port.PollForMidi(); c > 0 {
			return c
		}
	}
	return 0
}

// getMidiEvent pops one event from the first bus that has any, tags
// it with that bus's index and advances the scan start past it, so no
// busy neighbor can starve the rest.
func (a *busArray) getMidiEvent(ev *Event) bool {
	n := len(a.busses)
	for i := 0; i < n; i++ {
		idx := (a.next + i) % n
		bi := a.busses[idx]
		if bi.port.GetMidiEvent(ev) {
			ev.Bus = bi.port.BusIndex()
			a.next = (idx + 1) % n
			return true
		}
	}
	return false
}

func (a *busArray) setPPQN(ppqn int) {
	for _, bi := range a.busses {
		bi.port.SetPPQN(ppqn)
	}
}

func (a *busArray) setBPM(bpm float64) {
	for _, bi := range a.busses {
		bi.port.SetBPM(bpm)
	}
}

func (a *busArray) setClockMod(mod int) {
	for _, bi := range a.busses {
		bi.port.SetClockMod(mod)
	}
}

// deinit closes every port backend that was opened, deactivating as
// it goes.
func (a *busArray) deinit() error {
	var errs []error
	for _, bi := range a.busses {
		if !bi.initialized {
			continue
		}
		if err := bi.port.Deinit(); err != nil {
			errs = append(errs, err)
		}
		bi.deactivate()
	}
	return errors.Join(errs...)
}

// replacementPort looks for an inactive bus matching the announced
// (bus, port) identity. A hit is removed from the array and its index
// returned for reuse; -1 means the port is brand new.
func (a *busArray) replacementPort(bus, port int) int {
	for i, bi := range a.busses {
		if bi.port.Match(bus, port) && !bi.active {
			a.busses = append(a.busses[:i], a.busses[i+1:]...)
			return i
		}
	}
	return -1
}
