package serialbus

import (
	"fmt"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.bug.st/serial"

	"midibus/bus"
	"midibus/ring"
)

// DINBaudRate is the hardware MIDI wire speed.
const DINBaudRate = 31250

const inputBufferSize = 512

// ListPorts names the serial devices present on the machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Backend is one UART carrying DIN MIDI in both directions. The reader
// goroutine produces parsed events into the ring buffer; the poll loop
// consumes them. Both halves of the bus backend contract write to and
// read from the same device.
type Backend struct {
	bus.NopBackend

	device string
	baud   int
	log    *charmlog.Logger

	mu      sync.Mutex
	port    serial.Port
	buf     *ring.Buffer[bus.Event]
	started time.Time
	ppqn    int
	bpm     float64
	reading bool
	done    chan struct{}
}

// New prepares an unopened backend for the named device. A baud at or
// below zero picks the DIN rate.
func New(device string, baud int, ppqn int, bpm float64, logger *charmlog.Logger) *Backend {
	if baud <= 0 {
		baud = DINBaudRate
	}
	if logger == nil {
		logger = charmlog.Default()
	}
	return &Backend{
		device: device,
		baud:   baud,
		log:    logger,
		buf:    ring.New[bus.Event](inputBufferSize),
		ppqn:   ppqn,
		bpm:    bpm,
	}
}

// open opens the UART once; both directions share it.
func (b *Backend) open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port != nil {
		return nil
	}
	port, err := serial.Open(b.device, &serial.Mode{BaudRate: b.baud})
	if err != nil {
		return fmt.Errorf("open serial %q: %w", b.device, err)
	}
	port.ResetInputBuffer()
	b.port = port
	b.started = time.Now()
	b.log.Info("serial port opened", "device", b.device, "baud", b.baud)
	return nil
}

// InitIn opens the UART and starts the reader goroutine.
func (b *Backend) InitIn() error {
	if err := b.open(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reading {
		return nil
	}
	b.reading = true
	b.done = make(chan struct{})
	go b.readLoop(b.port, b.done)
	return nil
}

// InitOut opens the UART for writing.
func (b *Backend) InitOut() error { return b.open() }

// readLoop parses the byte stream into events until the port closes
// under it.
func (b *Backend) readLoop(port serial.Port, done chan struct{}) {
	defer close(done)
	var parser Parser
	raw := make([]byte, 64)
	for {
		n, err := port.Read(raw)
		if err != nil {
			b.log.Debug("serial reader stopped", "device", b.device, "err", err)
			return
		}
		if n == 0 {
			continue
		}
		now := time.Since(b.startTime())
		for _, by := range raw[:n] {
			msg, ok := parser.Feed(by)
			if !ok {
				continue
			}
			b.mu.Lock()
			b.buf.PushBack(bus.Event{
				Tick: bus.Pulse(smf.MetricTicks(b.ppqn).Ticks(b.bpm, now)),
				Msg:  msg,
				Bus:  bus.NoBus,
			})
			b.mu.Unlock()
		}
	}
}

func (b *Backend) startTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// DeinitIn stops the reader by closing the UART, then waits for it.
func (b *Backend) DeinitIn() error {
	b.mu.Lock()
	port := b.port
	done := b.done
	b.port = nil
	b.reading = false
	b.done = nil
	b.mu.Unlock()
	if port == nil {
		return nil
	}
	err := port.Close()
	if done != nil {
		<-done
	}
	return err
}

// DeinitOut closes the UART unless the reader still uses it.
func (b *Backend) DeinitOut() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reading || b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}

func (b *Backend) PollForMidi() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.ReadSpace()
}

func (b *Backend) GetMidiEvent(ev *bus.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Empty() {
		return false
	}
	b.buf.Read(ev)
	return true
}

// Dropped reports how many parsed events the buffer overwrote.
func (b *Backend) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Dropped()
}

func (b *Backend) write(data []byte) error {
	b.mu.Lock()
	port := b.port
	b.mu.Unlock()
	if port == nil {
		return nil
	}
	if _, err := port.Write(data); err != nil {
		return fmt.Errorf("serial write %q: %w", b.device, err)
	}
	return nil
}

func (b *Backend) Play(ev *bus.Event, channel uint8) error {
	return b.write(ev.OnChannel(channel))
}

func (b *Backend) Sysex(ev *bus.Event) error {
	return b.write(ev.Msg)
}

func (b *Backend) SendClock(bus.Pulse) error {
	return b.write([]byte{0xF8})
}

func (b *Backend) SendStart() error { return b.write([]byte{0xFA}) }
func (b *Backend) SendStop() error  { return b.write([]byte{0xFC}) }

func (b *Backend) SendContinueFrom(tick, beats bus.Pulse) error {
	lsb := byte(beats & 0x7F)
	msb := byte((beats >> 7) & 0x7F)
	if err := b.write([]byte{0xF2, lsb, msb}); err != nil {
		return err
	}
	return b.write([]byte{0xFB})
}

// Flush waits for the UART transmit buffer to drain, keeping clock
// emission honest about when bytes actually left.
func (b *Backend) Flush() error {
	b.mu.Lock()
	port := b.port
	b.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Drain()
}

func (b *Backend) SetPPQN(ppqn int) {
	b.mu.Lock()
	b.ppqn = ppqn
	b.mu.Unlock()
}

func (b *Backend) SetBPM(bpm float64) {
	b.mu.Lock()
	b.bpm = bpm
	b.mu.Unlock()
}

var _ bus.Backend = (*Backend)(nil)
