// Package serialbus drives DIN MIDI over a UART: a byte-stream parser
// feeding a ring buffer on the input side, raw writes on the output
// side. Hardware DIN runs at 31250 baud.
package serialbus

import (
	"gitlab.com/gomidi/midi/v2"
)

// maxSysEx caps a system-exclusive accumulation; a run longer than
// this was a framing error, not a message.
const maxSysEx = 4096

// Parser assembles MIDI messages from a raw serial byte stream. It
// keeps running status, passes realtime bytes through even in the
// middle of another message, and accumulates SysEx until EOX.
//
// Feed one byte at a time; a complete message comes back with ok set.
// The zero Parser is ready to use.
type Parser struct {
	status byte
	data   [2]byte
	need   int
	have   int

	sysex   []byte
	inSysex bool
}

// Feed consumes one wire byte, returning a complete message when the
// byte finishes one.
func (p *Parser) Feed(b byte) (midi.Message, bool) {
	// Realtime bytes are a single byte and may interleave anything.
	if b >= 0xF8 {
		return midi.Message([]byte{b}), true
	}

	if b >= 0x80 {
		return p.feedStatus(b)
	}

	// Data byte.
	if p.inSysex {
		if len(p.sysex) >= maxSysEx {
			p.abortSysEx()
			return nil, false
		}
		p.sysex = append(p.sysex, b)
		return nil, false
	}
	if p.status == 0 {
		// Stray data with no status to attach to; line noise.
		return nil, false
	}
	p.data[p.have] = b
	p.have++
	if p.have < p.need {
		return nil, false
	}
	msg := make([]byte, 1+p.need)
	msg[0] = p.status
	copy(msg[1:], p.data[:p.need])
	p.have = 0 // running status: keep p.status armed
	if p.status >= 0xF0 {
		// System common does not run.
		p.status = 0
	}
	return midi.Message(msg), true
}

func (p *Parser) feedStatus(b byte) (midi.Message, bool) {
	switch {
	case b == 0xF0:
		p.resetVoice()
		p.inSysex = true
		p.sysex = append(p.sysex[:0], 0xF0)
		return nil, false
	case b == 0xF7:
		if !p.inSysex {
			return nil, false
		}
		msg := make([]byte, len(p.sysex)+1)
		copy(msg, p.sysex)
		msg[len(msg)-1] = 0xF7
		p.abortSysEx()
		return midi.Message(msg), true
	case b >= 0xF1:
		// System common cancels SysEx and running status.
		p.abortSysEx()
		n := commonDataLen(b)
		if n == 0 {
			p.resetVoice()
			return midi.Message([]byte{b}), true
		}
		p.status, p.need, p.have = b, n, 0
		return nil, false
	default:
		// Channel voice status.
		p.abortSysEx()
		p.status = b
		p.have = 0
		if b&0xF0 == 0xC0 || b&0xF0 == 0xD0 {
			p.need = 1 // program change, channel pressure
		} else {
			p.need = 2
		}
		return nil, false
	}
}

// Reset drops any partial message and the running status.
func (p *Parser) Reset() {
	p.resetVoice()
	p.abortSysEx()
}

func (p *Parser) resetVoice() {
	p.status, p.need, p.have = 0, 0, 0
}

func (p *Parser) abortSysEx() {
	p.inSysex = false
	p.sysex = p.sysex[:0]
}

// commonDataLen is the data-byte count of a system common status.
func commonDataLen(b byte) int {
	switch b {
	case 0xF1, 0xF3: // MTC quarter frame, song select
		return 1
	case 0xF2: // song position
		return 2
	}
	return 0 // tune request and the undefined statuses
}
