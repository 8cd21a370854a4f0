package bus

import "errors"

// Test doubles shared by the port and master tests: a backend that
// records every call, and a driver handing back canned ports.

var errNotOpen = errors.New("port not open")

type stubBackend struct {
	NopBackend

	initErr error

	inits     int
	deinits   int
	plays     []Event
	channels  []uint8
	sysexes   int
	clocks    int
	starts    int
	stops     int
	contTicks []Pulse
	contBeats []Pulse
	flushes   int

	pending []Event // served by PollForMidi/GetMidiEvent
	endless bool    // an event source that never runs dry
}

func (s *stubBackend) InitIn() error {
	s.inits++
	return s.initErr
}

func (s *stubBackend) InitOut() error {
	s.inits++
	return s.initErr
}

func (s *stubBackend) DeinitIn() error  { s.deinits++; return nil }
func (s *stubBackend) DeinitOut() error { s.deinits++; return nil }

func (s *stubBackend) Play(ev *Event, channel uint8) error {
	s.plays = append(s.plays, *ev)
	s.channels = append(s.channels, channel)
	return nil
}

func (s *stubBackend) Sysex(*Event) error { s.sysexes++; return nil }

func (s *stubBackend) SendClock(Pulse) error { s.clocks++; return nil }
func (s *stubBackend) SendStart() error      { s.starts++; return nil }
func (s *stubBackend) SendStop() error       { s.stops++; return nil }

func (s *stubBackend) SendContinueFrom(tick, beats Pulse) error {
	s.contTicks = append(s.contTicks, tick)
	s.contBeats = append(s.contBeats, beats)
	return nil
}

func (s *stubBackend) Flush() error { s.flushes++; return nil }

func (s *stubBackend) PollForMidi() int {
	if s.endless {
		return 1
	}
	return len(s.pending)
}

func (s *stubBackend) GetMidiEvent(ev *Event) bool {
	if s.endless {
		*ev = Event{}
		return true
	}
	if len(s.pending) == 0 {
		return false
	}
	*ev = s.pending[0]
	s.pending = s.pending[1:]
	return true
}

type stubDriver struct {
	NopDriver
	ins  []*Port
	outs []*Port
}

func (d *stubDriver) Scan(ppqn int, bpm float64) ([]*Port, []*Port, error) {
	return d.ins, d.outs, nil
}

func outPort(idx int, b Backend) *Port {
	return NewPort(PortDesc{
		App:      "test",
		BusName:  "stub",
		PortName: "out",
		Index:    idx,
		BusID:    10,
		PortID:   idx,
		PPQN:     DefaultPPQN,
		BPM:      DefaultBPM,
		IO:       IOOutput,
		Kind:     PortNormal,
		Backend:  b,
	})
}

func inPort(idx int, b Backend) *Port {
	return NewPort(PortDesc{
		App:      "test",
		BusName:  "stub",
		PortName: "in",
		Index:    idx,
		BusID:    20,
		PortID:   idx,
		PPQN:     DefaultPPQN,
		BPM:      DefaultBPM,
		IO:       IOInput,
		Kind:     PortNormal,
		Backend:  b,
	})
}
