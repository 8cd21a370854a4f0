package rtbus

import (
	"fmt"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/smf"

	"midibus/bus"
	"midibus/ring"
)

// inBackend captures one rtmidi input. The driver callback produces
// into the ring buffer and the poll loop consumes; the mutex supplies
// the memory ordering between the two threads.
type inBackend struct {
	bus.NopBackend

	in     drivers.In
	log    *charmlog.Logger
	opened bool
	locked bool
	stop   func()

	mu   sync.Mutex
	buf  *ring.Buffer[bus.Event]
	ppqn int
	bpm  float64
}

func newInBackend(in drivers.In, ppqn int, bpm float64, logger *charmlog.Logger) *inBackend {
	return &inBackend{
		in:   in,
		log:  logger,
		buf:  ring.New[bus.Event](inputBufferSize),
		ppqn: ppqn,
		bpm:  bpm,
	}
}

// InitIn opens the device and starts the listener.
func (b *inBackend) InitIn() error {
	if !b.opened {
		if err := b.in.Open(); err != nil {
			b.locked = true
			return fmt.Errorf("open input %q: %w", b.in.String(), err)
		}
		b.opened = true
	}
	return b.listen()
}

// InitInSub starts the listener of a virtual input; the rtmidi driver
// opened the port when it was created.
func (b *inBackend) InitInSub() error { return b.listen() }

func (b *inBackend) listen() error {
	if b.stop != nil {
		return nil
	}
	stop, err := b.in.Listen(b.onMessage, drivers.ListenConfig{
		SysEx: true,
		OnErr: func(err error) {
			b.log.Warn("input listener", "port", b.in.String(), "err", err)
		},
	})
	if err != nil {
		return fmt.Errorf("listen %q: %w", b.in.String(), err)
	}
	b.stop = stop
	return nil
}

// onMessage runs on the rtmidi callback thread. The byte slice belongs
// to the driver, so the message is copied before it is queued.
func (b *inBackend) onMessage(msg []byte, timestampms int32) {
	raw := make([]byte, len(msg))
	copy(raw, msg)
	b.mu.Lock()
	tick := pulseAt(b.ppqn, b.bpm, timestampms)
	b.buf.PushBack(bus.Event{
		Tick: tick,
		Msg:  midi.Message(raw),
		Bus:  bus.NoBus,
	})
	b.mu.Unlock()
}

// DeinitIn stops the listener before the port closes, so no callback
// can run against freed state.
func (b *inBackend) DeinitIn() error {
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	if b.opened {
		b.opened = false
		return b.in.Close()
	}
	return nil
}

func (b *inBackend) PollForMidi() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.ReadSpace()
}

func (b *inBackend) GetMidiEvent(ev *bus.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Empty() {
		return false
	}
	b.buf.Read(ev)
	return true
}

func (b *inBackend) SetPPQN(ppqn int) {
	b.mu.Lock()
	b.ppqn = ppqn
	b.mu.Unlock()
}

func (b *inBackend) SetBPM(bpm float64) {
	b.mu.Lock()
	b.bpm = bpm
	b.mu.Unlock()
}

func (b *inBackend) PortLocked() bool { return b.locked }

// Dropped reports how many arriving events the buffer overwrote.
func (b *inBackend) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Dropped()
}

// The output half is never dispatched to an input port.

func (b *inBackend) InitOut() error { return errWrongDirection }
func (b *inBackend) Play(*bus.Event, uint8) error {
	return errWrongDirection
}
func (b *inBackend) SendClock(bus.Pulse) error { return errWrongDirection }
func (b *inBackend) SendStart() error          { return errWrongDirection }
func (b *inBackend) SendStop() error           { return errWrongDirection }
func (b *inBackend) SendContinueFrom(tick, beats bus.Pulse) error {
	return errWrongDirection
}

var errWrongDirection = fmt.Errorf("wrong port direction")

// pulseAt converts a driver timestamp (milliseconds since listen
// start) to a pulse count at the current tempo.
func pulseAt(ppqn int, bpm float64, ms int32) bus.Pulse {
	if ms <= 0 {
		return 0
	}
	d := time.Duration(ms) * time.Millisecond
	return bus.Pulse(smf.MetricTicks(ppqn).Ticks(bpm, d))
}

// outBackend drives one rtmidi output.
type outBackend struct {
	bus.NopBackend

	out    drivers.Out
	log    *charmlog.Logger
	opened bool
	locked bool
}

func newOutBackend(out drivers.Out, logger *charmlog.Logger) *outBackend {
	return &outBackend{out: out, log: logger}
}

func (b *outBackend) InitOut() error {
	if b.opened {
		return nil
	}
	if err := b.out.Open(); err != nil {
		b.locked = true
		return fmt.Errorf("open output %q: %w", b.out.String(), err)
	}
	b.opened = true
	return nil
}

// InitOutSub reports the already-open virtual output as ready.
func (b *outBackend) InitOutSub() error { return nil }

func (b *outBackend) DeinitOut() error {
	if !b.opened {
		return nil
	}
	b.opened = false
	return b.out.Close()
}

func (b *outBackend) Play(ev *bus.Event, channel uint8) error {
	return b.out.Send(ev.OnChannel(channel))
}

func (b *outBackend) Sysex(ev *bus.Event) error {
	return b.out.Send(ev.Msg)
}

func (b *outBackend) SendClock(bus.Pulse) error {
	return b.out.Send([]byte{0xF8})
}

func (b *outBackend) SendStart() error { return b.out.Send([]byte{0xFA}) }
func (b *outBackend) SendStop() error  { return b.out.Send([]byte{0xFC}) }

// SendContinueFrom emits Song Position (14-bit, 1/16th-note beats)
// then Continue, per the MIDI realtime spec.
func (b *outBackend) SendContinueFrom(tick, beats bus.Pulse) error {
	lsb := byte(beats & 0x7F)
	msb := byte((beats >> 7) & 0x7F)
	if err := b.out.Send([]byte{0xF2, lsb, msb}); err != nil {
		return err
	}
	return b.out.Send([]byte{0xFB})
}

func (b *outBackend) PortLocked() bool { return b.locked }

// The input half is never dispatched to an output port.

func (b *outBackend) InitIn() error { return errWrongDirection }
