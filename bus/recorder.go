package bus

import (
	"sync"

	"midibus/ring"
)

const recorderCapacity = 1024

// Recorder captures input events for later replay. It keeps the most
// recent events up to its buffer capacity; when full, the oldest fall
// off and are counted as dropped.
type Recorder struct {
	buf     *ring.Buffer[Event]
	bus     int
	channel int
	sync.Mutex
}

// NewRecorder sizes the capture buffer; capacity below one picks the
// default. A fresh recorder filters on nothing: any bus, any channel.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = recorderCapacity
	}
	return &Recorder{
		buf:     ring.New[Event](capacity),
		bus:     NoBus,
		channel: -1,
	}
}

// SetInputBus restricts capture to one source bus; NoBus accepts all.
func (r *Recorder) SetInputBus(bus int) {
	r.Lock()
	r.bus = bus
	r.Unlock()
}

func (r *Recorder) InputBus() int {
	r.Lock()
	defer r.Unlock()
	return r.bus
}

// SetChannel claims one MIDI channel for channel-routed recording.
// Anything outside 0..15 claims every channel.
func (r *Recorder) SetChannel(channel int) {
	if channel < 0 || channel > 15 {
		channel = -1
	}
	r.Lock()
	r.channel = channel
	r.Unlock()
}

// StreamEvent stores one event and claims it.
func (r *Recorder) StreamEvent(ev *Event) bool {
	r.Lock()
	r.buf.PushBack(*ev)
	r.Unlock()
	return true
}

// ChannelsMatch reports whether this recorder claims the event's
// channel. Events without a channel are never claimed.
func (r *Recorder) ChannelsMatch(ev *Event) bool {
	ch, ok := ev.Channel()
	if !ok {
		return false
	}
	r.Lock()
	defer r.Unlock()
	return r.channel < 0 || int(ch) == r.channel
}

// Next pops the oldest captured event into ev.
func (r *Recorder) Next(ev *Event) bool {
	r.Lock()
	defer r.Unlock()
	if r.buf.Empty() {
		return false
	}
	r.buf.Read(ev)
	return true
}

// Events drains everything captured so far, oldest first.
func (r *Recorder) Events() []Event {
	r.Lock()
	defer r.Unlock()
	out := make([]Event, 0, r.buf.ReadSpace())
	var ev Event
	for !r.buf.Empty() {
		r.buf.Read(&ev)
		out = append(out, ev)
	}
	return out
}

func (r *Recorder) Len() int {
	r.Lock()
	defer r.Unlock()
	return r.buf.ReadSpace()
}

func (r *Recorder) Dropped() int {
	r.Lock()
	defer r.Unlock()
	return r.buf.Dropped()
}

// Clear empties the capture buffer and zeroes the drop count.
func (r *Recorder) Clear() {
	r.Lock()
	r.buf.Clear()
	r.Unlock()
}
