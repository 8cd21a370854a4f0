package bus

import (
	"fmt"
	"strconv"
	"strings"
)

// PortNaming selects how much identity a display name carries.
type PortNaming int8

const (
	NamingBrief PortNaming = iota // "midi_out"
	NamingPair                    // "36:0 fluidsynth:midi_out"
	NamingFull                    // "[0] 36:0 fluidsynth:midi_out"
)

func (n PortNaming) String() string {
	switch n {
	case NamingPair:
		return "pair"
	case NamingFull:
		return "full"
	}
	return "brief"
}

// PortStatus is one persisted per-bus record: the saved availability,
// enable state and naming of a port as of the last session.
type PortStatus struct {
	Bus       int       `yaml:"bus"`
	Available bool      `yaml:"available"`
	Enabled   bool      `yaml:"enabled"`
	Clock     ClockMode `yaml:"clock"`
	Name      string    `yaml:"name"`
	NickName  string    `yaml:"nick-name,omitempty"`
	Alias     string    `yaml:"alias,omitempty"`

	// Subsystem numbers parsed out of Name; -1 when absent.
	Client int `yaml:"-"`
	Port   int `yaml:"-"`
}

// portsList is the ordered store shared by the clocks and inputs
// lists. Entries are kept in bus order; lookups by a missing bus
// return zero values.
type portsList struct {
	Ports []PortStatus `yaml:"ports"`
}

func (l *portsList) Count() int   { return len(l.Ports) }
func (l *portsList) Active() bool { return len(l.Ports) > 0 }
func (l *portsList) Clear()       { l.Ports = nil }

func (l *portsList) clone() portsList {
	ps := make([]PortStatus, len(l.Ports))
	copy(ps, l.Ports)
	return portsList{Ports: ps}
}

func (l *portsList) status(bus int) *PortStatus {
	for i := range l.Ports {
		if l.Ports[i].Bus == bus {
			return &l.Ports[i]
		}
	}
	return nil
}

// add inserts st, replacing any entry for the same bus. The nick-name
// is derived from the display name when not given, and the subsystem
// client:port pair is parsed out of the name.
func (l *portsList) add(st PortStatus) bool {
	if st.Bus < 0 || st.Name == "" {
		return false
	}
	if st.NickName == "" {
		st.NickName = extractNickname(st.Name)
	}
	if c, p, ok := extractPortPair(st.Name); ok {
		st.Client, st.Port = c, p
	} else {
		st.Client, st.Port = -1, -1
	}
	if old := l.status(st.Bus); old != nil {
		*old = st
		return true
	}
	l.Ports = append(l.Ports, st)
	return true
}

func (l *portsList) IsAvailable(bus int) bool {
	if st := l.status(bus); st != nil {
		return st.Available
	}
	return false
}

func (l *portsList) IsEnabled(bus int) bool {
	if st := l.status(bus); st != nil {
		return st.Enabled
	}
	return false
}

// SetEnabled flips the enable flag, marking the entry available again.
func (l *portsList) SetEnabled(bus int, enabled bool) bool {
	st := l.status(bus)
	if st == nil {
		return false
	}
	st.Available = true
	st.Enabled = enabled
	return true
}

// SetName replaces the display name and re-derives the nick-name.
func (l *portsList) SetName(bus int, name string) {
	if st := l.status(bus); st != nil {
		st.Name = name
		st.NickName = extractNickname(name)
	}
}

func (l *portsList) SetAlias(bus int, alias string) {
	if st := l.status(bus); st != nil {
		st.Alias = alias
	}
}

func (l *portsList) GetName(bus int) string {
	if st := l.status(bus); st != nil {
		return st.Name
	}
	return ""
}

// GetNickName returns the short device name, prefixed with the bus
// number for any style other than brief.
func (l *portsList) GetNickName(bus int, style PortNaming) string {
	st := l.status(bus)
	if st == nil {
		return ""
	}
	if style != NamingBrief {
		return bussString(st.NickName, bus)
	}
	return st.NickName
}

func (l *portsList) GetAlias(bus int, style PortNaming) string {
	st := l.status(bus)
	if st == nil {
		return ""
	}
	if style != NamingBrief {
		return bussString(st.Alias, bus)
	}
	return st.Alias
}

// GetDisplayName renders the entry in the requested style. The pair
// style falls back to the full name when the stored name carries no
// client:port digits.
func (l *portsList) GetDisplayName(bus int, style PortNaming) string {
	switch style {
	case NamingBrief:
		return l.GetNickName(bus, style)
	case NamingPair:
		return l.pairName(bus)
	case NamingFull:
		return l.GetName(bus)
	}
	return ""
}

func (l *portsList) pairName(bus int) string {
	st := l.status(bus)
	if st == nil {
		return ""
	}
	if st.Client >= 0 {
		return fmt.Sprintf("%d:%d %s", st.Client, st.Port, st.NickName)
	}
	return st.Name
}

// BusFromName finds the bus whose full name matches exactly.
func (l *portsList) BusFromName(name string) (int, bool) {
	for i := range l.Ports {
		if l.Ports[i].Name == name {
			return l.Ports[i].Bus, true
		}
	}
	return 0, false
}

func (l *portsList) BusFromNickName(nick string) (int, bool) {
	for i := range l.Ports {
		if l.Ports[i].NickName == nick {
			return l.Ports[i].Bus, true
		}
	}
	return 0, false
}

func (l *portsList) BusFromAlias(alias string) (int, bool) {
	if alias == "" {
		return 0, false
	}
	for i := range l.Ports {
		if l.Ports[i].Alias == alias {
			return l.Ports[i].Bus, true
		}
	}
	return 0, false
}

// Find matches an entry by any identity it stores, in order of
// precision: exact name, then nick-name, then alias. Reconciling a
// saved list against a rescanned subsystem uses this so settings
// survive bus renumbering.
func (l *portsList) Find(name, nick, alias string) *PortStatus {
	if bus, ok := l.BusFromName(name); ok {
		return l.status(bus)
	}
	if nick != "" {
		if bus, ok := l.BusFromNickName(nick); ok {
			return l.status(bus)
		}
	}
	if bus, ok := l.BusFromAlias(alias); ok {
		return l.status(bus)
	}
	return nil
}

// ClocksList holds the persisted output-port clock settings.
type ClocksList struct {
	portsList `yaml:",inline"`
}

// Add stores one output-port record. An unavailable port reads back
// as clock-unavailable regardless of the mode passed in.
func (l *ClocksList) Add(bus int, available bool, c ClockMode, name, nick, alias string) bool {
	st := PortStatus{
		Bus:       bus,
		Available: available,
		Name:      name,
		NickName:  nick,
		Alias:     alias,
	}
	if available {
		st.Enabled = c != ClockDisabled
		st.Clock = c
	} else {
		st.Enabled = false
		st.Clock = ClockUnavailable
	}
	return l.add(st)
}

// Set stores the clock mode for an existing entry; disabled also turns
// the enable flag off.
func (l *ClocksList) Set(bus int, c ClockMode) bool {
	st := l.status(bus)
	if st == nil {
		return false
	}
	st.Enabled = c != ClockDisabled
	st.Clock = c
	return true
}

// Get reads the stored clock mode, off when the bus is unknown.
func (l *ClocksList) Get(bus int) ClockMode {
	if st := l.status(bus); st != nil {
		return st.Clock
	}
	return ClockOff
}

// InputsList holds the persisted input-port enable settings.
type InputsList struct {
	portsList `yaml:",inline"`
}

// Add stores one input-port record.
func (l *InputsList) Add(bus int, available, enabled bool, name, nick, alias string) bool {
	return l.add(PortStatus{
		Bus:       bus,
		Available: available,
		Enabled:   enabled,
		Clock:     ClockOff,
		Name:      name,
		NickName:  nick,
		Alias:     alias,
	})
}

// Set stores the enable flag for an existing entry.
func (l *InputsList) Set(bus int, enabled bool) bool {
	st := l.status(bus)
	if st == nil {
		return false
	}
	st.Enabled = enabled
	st.Clock = ClockOff
	return true
}

// Get reads the stored enable flag, false when the bus is unknown.
func (l *InputsList) Get(bus int) bool {
	return l.IsEnabled(bus)
}

func bussString(name string, bus int) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf("[%d] %s", bus, name)
}

// extractNickname pulls the short device name out of a full display
// name: the text after the last colon, skipping a leading client:port
// digit pair. "[3] 36:0 Launchpad Mini MIDI 1" gives "Launchpad Mini
// MIDI 1"; a name with no usable tail is returned whole.
func extractNickname(name string) string {
	cpos := strings.LastIndex(name, ":")
	if cpos < 0 || cpos+1 >= len(name) {
		return name
	}
	rest := name[cpos+1:]
	if rest[0] >= '0' && rest[0] <= '9' {
		spos := strings.IndexByte(rest, ' ')
		if spos < 0 {
			return name
		}
		return rest[spos+1:]
	}
	return strings.TrimLeft(rest, " ")
}

// extractPortPair finds the first "digits:digits" pair in a display
// name and parses it as the subsystem client and port numbers.
func extractPortPair(name string) (client, port int, ok bool) {
	for i := 1; i < len(name)-1; i++ {
		if name[i] != ':' {
			continue
		}
		s := i
		for s > 0 && isASCIIDigit(name[s-1]) {
			s--
		}
		e := i + 1
		for e < len(name) && isASCIIDigit(name[e]) {
			e++
		}
		if s < i && e > i+1 {
			c, err1 := strconv.Atoi(name[s:i])
			p, err2 := strconv.Atoi(name[i+1 : e])
			if err1 == nil && err2 == nil {
				return c, p, true
			}
		}
	}
	return -1, -1, false
}

func isASCIIDigit(b byte) bool { return b >= '0' && b <= '9' }
