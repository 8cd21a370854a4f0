// Package bus implements a multi-port MIDI bus: single-port transports
// over pluggable backends, and a master multiplexer that fans events
// out to the output ports, drains the input ports, and keeps the one
// shared clock/tempo state.
package bus

// MIDI sends 24 clock pulses per quarter note.
const midiClockRate = 24

// DefaultClockMod is the clock start modulo in 1/16th notes.
const DefaultClockMod = 16 * 4

// ClockMode governs whether and how an output port emits MIDI clock.
// It doubles as a persisted port status: Disabled and Unavailable
// describe the port itself rather than its clocking.
type ClockMode int8

const (
	// ClockUnavailable marks a port that could not be opened at all.
	ClockUnavailable ClockMode = iota - 2
	// ClockDisabled ignores the port entirely, by user choice.
	ClockDisabled
	// ClockOff sends notes to the port but no clock pulses.
	ClockOff
	// ClockPos sends clock; starting playback past tick zero also
	// sends Song Position and Continue.
	ClockPos
	// ClockMod sends clock and Start, holding emission until the song
	// position reaches the configured start modulo.
	ClockMod
)

// Enabled reports whether the mode emits clock pulses.
func (c ClockMode) Enabled() bool { return c == ClockPos || c == ClockMod }

// Disabled reports whether the port is ignored by user choice.
func (c ClockMode) Disabled() bool { return c == ClockDisabled }

// Unavailable reports whether the port could not be opened.
func (c ClockMode) Unavailable() bool { return c == ClockUnavailable }

func (c ClockMode) String() string {
	switch c {
	case ClockUnavailable:
		return "unavailable"
	case ClockDisabled:
		return "disabled"
	case ClockOff:
		return "off"
	case ClockPos:
		return "pos"
	case ClockMod:
		return "mod"
	}
	return "unknown"
}

// ClockFromInt clamps an integer (as stored in configuration) to a
// valid mode, falling back to ClockDisabled.
func ClockFromInt(v int) ClockMode {
	if v < int(ClockUnavailable) || v > int(ClockMod) {
		return ClockDisabled
	}
	return ClockMode(v)
}

// clockTicks is the pulse interval between MIDI clock emissions at the
// given resolution.
func clockTicks(ppqn int) Pulse {
	return Pulse(ppqn / midiClockRate)
}
