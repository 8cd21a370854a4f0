package bus

import (
	"io"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
)

func testLogger() *charmlog.Logger { return charmlog.New(io.Discard) }

func newTestMaster(t *testing.T, cfg Config, d *stubDriver) *Master {
	t.Helper()
	m := NewMaster(d, cfg, testLogger())
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func TestPlayRoutesToAddressedPort(t *testing.T) {
	b0, b1 := &stubBackend{}, &stubBackend{}
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		outs: []*Port{outPort(0, b0), outPort(1, b1)},
	})
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := Event{Msg: midi.NoteOn(0, 60, 100)}
	if err := m.Play(0, &ev, 0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(b0.plays) != 1 {
		t.Errorf("addressed port got %d plays, want 1", len(b0.plays))
	}
	if len(b1.plays) != 0 {
		t.Errorf("unaddressed port got %d plays, want 0", len(b1.plays))
	}
}

// Addressed sends bypass the enable flag; disabling gates polling and
// broadcasts only.
func TestPlayForwardsToDisabledPort(t *testing.T) {
	b := &stubBackend{}
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		outs: []*Port{outPort(0, b)},
	})
	if !m.SetClock(0, ClockDisabled) {
		t.Fatal("SetClock refused")
	}
	ev := Event{Msg: midi.NoteOn(0, 60, 100)}
	if err := m.Play(0, &ev, 0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(b.plays) != 1 {
		t.Errorf("disabled port got %d plays, want 1", len(b.plays))
	}
}

func TestPlayOutOfRangeDropped(t *testing.T) {
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		outs: []*Port{outPort(0, &stubBackend{})},
	})
	ev := Event{Msg: midi.NoteOn(0, 60, 100)}
	if err := m.Play(7, &ev, 0); err != nil {
		t.Errorf("out-of-range Play returned %v, want silent drop", err)
	}
}

func TestStartBroadcastsInOrder(t *testing.T) {
	b0, b1 := &stubBackend{}, &stubBackend{}
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		outs: []*Port{outPort(0, b0), outPort(1, b1)},
	})
	m.SetClock(0, ClockPos)
	m.SetClock(1, ClockPos)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if b0.starts != 1 || b1.starts != 1 {
		t.Errorf("starts = %d,%d, want 1,1", b0.starts, b1.starts)
	}
	if err := m.EmitClock(8); err != nil {
		t.Fatalf("EmitClock: %v", err)
	}
	if b0.clocks == 0 || b1.clocks == 0 {
		t.Errorf("clocks = %d,%d, want both > 0", b0.clocks, b1.clocks)
	}
}

func TestPanicSweepsAroundUnavailablePort(t *testing.T) {
	good := &stubBackend{}
	bad := &stubBackend{initErr: errNotOpen}
	cfg := DefaultConfig()
	cfg.InitDisabled = true
	m := newTestMaster(t, cfg, &stubDriver{
		outs: []*Port{outPort(0, good), outPort(1, bad)},
	})
	if !m.IsPortUnavailable(1, IOOutput) {
		t.Fatal("failed port not marked unavailable")
	}
	if err := m.Panic(-1); err != nil {
		t.Fatalf("Panic: %v", err)
	}
	if want := 16 * 128; len(good.plays) != want {
		t.Errorf("available port got %d note-offs, want %d", len(good.plays), want)
	}
	if len(bad.plays) != 0 {
		t.Errorf("unavailable port got %d note-offs, want 0", len(bad.plays))
	}
}

func TestGetMidiEventTagsSourceBus(t *testing.T) {
	b := &stubBackend{pending: []Event{{Msg: midi.NoteOn(0, 60, 100)}}}
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		ins: []*Port{inPort(0, &stubBackend{}), inPort(1, b)},
	})
	var ev Event
	if !m.GetMidiEvent(&ev) {
		t.Fatal("no event surfaced")
	}
	if ev.Bus != 1 {
		t.Errorf("source bus = %d, want 1", ev.Bus)
	}
}

// A permanently busy low-index port must not starve its neighbors: the
// scan resumes past the last serviced port.
func TestGetMidiEventNoStarvation(t *testing.T) {
	busy := &stubBackend{endless: true}
	late := &stubBackend{}
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		ins: []*Port{inPort(0, busy), inPort(1, late)},
	})
	var ev Event
	if !m.GetMidiEvent(&ev) || ev.Bus != 0 {
		t.Fatalf("first drain came from bus %d, want 0", ev.Bus)
	}
	late.pending = []Event{{Msg: midi.NoteOn(1, 61, 80)}}
	if !m.GetMidiEvent(&ev) {
		t.Fatal("second drain found nothing")
	}
	if ev.Bus != 1 {
		t.Errorf("late port never surfaced, event came from bus %d", ev.Bus)
	}
}

func TestPollForMidi(t *testing.T) {
	b := &stubBackend{pending: []Event{{}, {}}}
	cfg := DefaultConfig()
	cfg.InitDisabled = true
	m := newTestMaster(t, cfg, &stubDriver{ins: []*Port{inPort(0, b)}})
	if !m.SetInput(0, true) {
		t.Fatal("SetInput refused")
	}
	if got := m.PollForMidi(); got != 2 {
		t.Errorf("PollForMidi = %d, want 2", got)
	}
}

func TestSetClockPersists(t *testing.T) {
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		outs: []*Port{outPort(0, &stubBackend{})},
	})
	if !m.SetClock(0, ClockPos) {
		t.Fatal("SetClock refused")
	}
	if got := m.GetClock(0); got != ClockPos {
		t.Errorf("live clock = %v, want pos", got)
	}
	clocks, _ := m.PortStatuses()
	if got := clocks.Get(0); got != ClockPos {
		t.Errorf("persisted clock = %v, want pos", got)
	}
	if m.SetClock(9, ClockPos) {
		t.Error("SetClock accepted a missing bus")
	}
}

func TestSetClockRefusedWhenUnavailable(t *testing.T) {
	bad := &stubBackend{initErr: errNotOpen}
	cfg := DefaultConfig()
	cfg.InitDisabled = true
	m := newTestMaster(t, cfg, &stubDriver{
		outs: []*Port{outPort(0, bad)},
	})
	if m.SetClock(0, ClockPos) {
		t.Error("SetClock accepted an unavailable port")
	}
}

func TestSetSequenceInputSingleTarget(t *testing.T) {
	m := newTestMaster(t, DefaultConfig(), &stubDriver{})
	r1, r2 := NewRecorder(4), NewRecorder(4)
	if !m.SetSequenceInput(true, r1) {
		t.Fatal("first target refused")
	}
	if !m.IsDumping() {
		t.Error("not dumping after arm")
	}
	if m.SetSequenceInput(true, r2) {
		t.Error("second target accepted while the first holds the input")
	}
	if !m.SetSequenceInput(true, r1) {
		t.Error("re-arming the holder refused")
	}
	m.SetSequenceInput(false, r1)
	if m.IsDumping() {
		t.Error("still dumping after release")
	}
	if !m.SetSequenceInput(true, r2) {
		t.Error("target refused after release")
	}
}

func TestDumpMidiInputSingleTarget(t *testing.T) {
	m := newTestMaster(t, DefaultConfig(), &stubDriver{})
	rec := NewRecorder(8)
	m.SetSequenceInput(true, rec)
	if !m.DumpMidiInput(Event{Msg: midi.NoteOn(3, 64, 90)}) {
		t.Fatal("event not routed")
	}
	if rec.Len() != 1 {
		t.Errorf("recorder holds %d events, want 1", rec.Len())
	}
}

func TestDumpMidiInputByChannel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecordByChannel = true
	m := newTestMaster(t, cfg, &stubDriver{})
	rec0, rec1 := NewRecorder(8), NewRecorder(8)
	rec0.SetChannel(0)
	rec1.SetChannel(1)
	m.SetSequenceInput(true, rec0)
	m.SetSequenceInput(true, rec1)

	m.DumpMidiInput(Event{Msg: midi.NoteOn(0, 60, 100)})
	m.DumpMidiInput(Event{Msg: midi.NoteOn(1, 61, 100)})

	if rec0.Len() != 1 {
		t.Errorf("channel-0 recorder holds %d events, want 1", rec0.Len())
	}
	if rec1.Len() != 1 {
		t.Errorf("channel-1 recorder holds %d events, want 1", rec1.Len())
	}
	for _, ev := range rec0.Events() {
		if ch, _ := ev.Channel(); ch != 0 {
			t.Errorf("channel-0 recorder captured channel %d", ch)
		}
	}
	if m.DumpMidiInput(Event{Msg: midi.NoteOn(5, 62, 100)}) {
		t.Error("unclaimed channel was routed")
	}
}

func TestDumpMidiInputByBuss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecordByBuss = true
	m := newTestMaster(t, cfg, &stubDriver{})
	rec := NewRecorder(8)
	rec.SetInputBus(2)
	m.SetSequenceInput(true, rec)

	if m.DumpMidiInput(Event{Msg: midi.NoteOn(0, 60, 100), Bus: 1}) {
		t.Error("event from the wrong bus was recorded")
	}
	if !m.DumpMidiInput(Event{Msg: midi.NoteOn(0, 60, 100), Bus: 2}) {
		t.Error("event from the configured bus was refused")
	}
	if rec.Len() != 1 {
		t.Errorf("recorder holds %d events, want 1", rec.Len())
	}
}

func TestSetBPMPropagates(t *testing.T) {
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		outs: []*Port{outPort(0, &stubBackend{})},
	})
	m.SetBPM(98.5)
	if got := m.BPM(); got != 98.5 {
		t.Errorf("master bpm = %v, want 98.5", got)
	}
	p, err := m.OutPort(0)
	if err != nil {
		t.Fatalf("OutPort: %v", err)
	}
	if got := p.BPM(); got != 98.5 {
		t.Errorf("port bpm = %v, want 98.5", got)
	}
	m.SetBPM(-1)
	if got := m.BPM(); got != 98.5 {
		t.Errorf("negative tempo accepted, bpm = %v", got)
	}
}

func TestPortExitDeactivates(t *testing.T) {
	b := &stubBackend{pending: []Event{{}}}
	cfg := DefaultConfig()
	cfg.InitDisabled = true
	m := newTestMaster(t, cfg, &stubDriver{ins: []*Port{inPort(0, b)}})
	m.SetInput(0, true)
	if !m.GetInput(0) {
		t.Fatal("input not enabled")
	}
	m.PortExit(20, 0)
	if m.GetInput(0) {
		t.Error("vanished port still reads enabled")
	}
	select {
	case ev := <-m.Notifications():
		if ev.Kind != PortDetached {
			t.Errorf("notification kind = %v, want detached", ev.Kind)
		}
	default:
		t.Error("no detach notification posted")
	}
}

func TestSetMidiAlias(t *testing.T) {
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		outs: []*Port{outPort(0, &stubBackend{})},
	})
	m.SetMidiAlias(0, IOOutput, "deck-a")
	clocks, _ := m.PortStatuses()
	if got := clocks.GetAlias(0, NamingBrief); got != "deck-a" {
		t.Errorf("alias = %q, want deck-a", got)
	}
}

func TestCopyIOBusses(t *testing.T) {
	m := newTestMaster(t, DefaultConfig(), &stubDriver{
		ins:  []*Port{inPort(0, &stubBackend{})},
		outs: []*Port{outPort(0, &stubBackend{})},
	})
	m.CopyIOBusses()
	clocks, inputs := m.PortStatuses()
	if clocks.Count() != 1 || inputs.Count() != 1 {
		t.Fatalf("list sizes = %d,%d, want 1,1",
			clocks.Count(), inputs.Count())
	}
	if !clocks.IsAvailable(0) {
		t.Error("live output port persisted as unavailable")
	}
}
