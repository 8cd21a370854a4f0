package bus

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// NoBus marks an event with no source bus assigned.
const NoBus = -1

// Event is one timestamped MIDI message moving through the bus.
type Event struct {
	Tick Pulse        // pulse timestamp
	Msg  midi.Message // raw message
	Bus  int          // source input bus, NoBus until a port sets it
}

// Channel extracts the channel of a channel-voice message.
func (e *Event) Channel() (uint8, bool) {
	var ch uint8
	if e.Msg.GetChannel(&ch) {
		return ch, true
	}
	return 0, false
}

// OnChannel returns the wire bytes of the message with the channel
// nibble of a channel-voice status rewritten. Other messages pass
// through untouched.
func (e *Event) OnChannel(channel uint8) []byte {
	b := []byte(e.Msg)
	if len(b) == 0 || b[0] < 0x80 || b[0] >= 0xF0 {
		return b
	}
	out := make([]byte, len(b))
	copy(out, b)
	out[0] = b[0]&0xF0 | channel&0x0F
	return out
}

func (e *Event) String() string {
	return fmt.Sprintf("[%d] %v @%d", e.Bus, e.Msg, e.Tick)
}

// Sequencer is a recording target the master bus routes live input
// into. Recorder is the in-repo implementation; richer pattern editors
// plug in the same way.
type Sequencer interface {
	// StreamEvent consumes one incoming event, reporting whether it
	// was recorded.
	StreamEvent(ev *Event) bool
	// ChannelsMatch reports whether the event's channel is one this
	// target claims.
	ChannelsMatch(ev *Event) bool
	// InputBus is the bus this target records from, or NoBus for any.
	InputBus() int
}
