package bus

import (
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Pulse is a MIDI pulse (tick) count at the transport's PPQN.
type Pulse int64

// Defaults applied when a zero Config value is seen.
const (
	DefaultPPQN = 192
	DefaultBPM  = 120.0
)

// normalizePPQN substitutes the default for out-of-range resolutions.
func normalizePPQN(ppqn int) int {
	if ppqn < minPPQN || ppqn > maxPPQN {
		return DefaultPPQN
	}
	return ppqn
}

const (
	minPPQN = 32
	maxPPQN = 19200
)

// Timing is a snapshot of the transport's tempo and meter, passed
// between the multiplexer and display/storage code instead of the live
// mutable state.
type Timing struct {
	BPM             float64
	BeatsPerMeasure int
	BeatWidth       int
	PPQN            int
}

// NewTiming fills a snapshot, substituting defaults for zero values.
func NewTiming(bpm float64, beatsPerMeasure, beatWidth, ppqn int) Timing {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	if beatsPerMeasure <= 0 {
		beatsPerMeasure = 4
	}
	if beatWidth <= 0 {
		beatWidth = 4
	}
	return Timing{
		BPM:             bpm,
		BeatsPerMeasure: beatsPerMeasure,
		BeatWidth:       beatWidth,
		PPQN:            normalizePPQN(ppqn),
	}
}

// PulsesPerMeasure is the pulse length of one full measure.
func (t Timing) PulsesPerMeasure() Pulse {
	return Pulse(4 * t.PPQN * t.BeatsPerMeasure / t.BeatWidth)
}

// PulsesPerBeat is the pulse length of one beat at the beat width.
func (t Timing) PulsesPerBeat() Pulse {
	return Pulse(4 * t.PPQN / t.BeatWidth)
}

// ToMeasures breaks an absolute pulse count into measure, beat and
// division (leftover pulse) counts, all zero-based.
func (t Timing) ToMeasures(p Pulse) Measures {
	perMeasure := t.PulsesPerMeasure()
	perBeat := t.PulsesPerBeat()
	if perMeasure <= 0 || perBeat <= 0 {
		return Measures{}
	}
	m := p / perMeasure
	rem := p % perMeasure
	return Measures{
		Measures:  int(m),
		Beats:     int(rem / perBeat),
		Divisions: int(rem % perBeat),
	}
}

// FromMeasures converts measure/beat/division counts back to an
// absolute pulse count.
func (t Timing) FromMeasures(m Measures) Pulse {
	return Pulse(m.Measures)*t.PulsesPerMeasure() +
		Pulse(m.Beats)*t.PulsesPerBeat() + Pulse(m.Divisions)
}

// PulseDuration is the wall-clock length of delta pulses at the
// snapshot's tempo.
func (t Timing) PulseDuration(delta Pulse) time.Duration {
	if delta < 0 {
		return 0
	}
	return smf.MetricTicks(t.PPQN).Duration(t.BPM, uint32(delta))
}

// DurationPulses is the inverse of PulseDuration.
func (t Timing) DurationPulses(d time.Duration) Pulse {
	if d < 0 {
		return 0
	}
	return Pulse(smf.MetricTicks(t.PPQN).Ticks(t.BPM, d))
}

// Measures locates a position as measures, beats within the measure,
// and divisions (pulses) within the beat.
type Measures struct {
	Measures  int
	Beats     int
	Divisions int
}

// Clear zeroes all three counts.
func (m *Measures) Clear() {
	m.Measures, m.Beats, m.Divisions = 0, 0, 0
}
