package bus

import "testing"

func TestExtractNickname(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"[3] 36:0 Launchpad Mini:Launchpad Mini MIDI 1", "Launchpad Mini MIDI 1"},
		{"[0] 14:0 Midi Through Port-0", "Midi Through Port-0"},
		{"fluidsynth:midi_00", "midi_00"},
		{"no colon here", "no colon here"},
		{"trailing:", "trailing:"},
	}
	for _, c := range cases {
		if got := extractNickname(c.name); got != c.want {
			t.Errorf("extractNickname(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestExtractPortPair(t *testing.T) {
	cases := []struct {
		name         string
		client, port int
		ok           bool
	}{
		{"[2] 36:0 fluidsynth:midi_00", 36, 0, true},
		{"128:1 something", 128, 1, true},
		{"no digits at all", -1, -1, false},
		{"name:with:words", -1, -1, false},
	}
	for _, c := range cases {
		client, port, ok := extractPortPair(c.name)
		if client != c.client || port != c.port || ok != c.ok {
			t.Errorf("extractPortPair(%q) = %d,%d,%t want %d,%d,%t",
				c.name, client, port, ok, c.client, c.port, c.ok)
		}
	}
}

func TestClocksListUnavailableRule(t *testing.T) {
	var l ClocksList
	l.Add(0, false, ClockPos, "[0] 36:0 dead:port", "", "")
	if got := l.Get(0); got != ClockUnavailable {
		t.Errorf("unavailable port stored clock %v, want unavailable", got)
	}
	if l.IsEnabled(0) {
		t.Error("unavailable port stored as enabled")
	}
	l.Add(1, true, ClockMod, "[1] 36:1 live:port", "", "")
	if got := l.Get(1); got != ClockMod {
		t.Errorf("stored clock = %v, want mod", got)
	}
}

func TestClocksListSetDisabled(t *testing.T) {
	var l ClocksList
	l.Add(0, true, ClockOff, "[0] 36:0 a:b", "", "")
	if !l.Set(0, ClockDisabled) {
		t.Fatal("Set refused")
	}
	if l.IsEnabled(0) {
		t.Error("disabled clock left the entry enabled")
	}
	if l.Set(5, ClockPos) {
		t.Error("Set accepted an unknown bus")
	}
}

func TestAddReplacesSameBus(t *testing.T) {
	var l InputsList
	l.Add(0, true, false, "[0] 20:0 kbd:in", "", "")
	l.Add(0, true, true, "[0] 20:0 kbd:in", "", "")
	if l.Count() != 1 {
		t.Fatalf("count = %d, want 1", l.Count())
	}
	if !l.Get(0) {
		t.Error("replacement lost the enable flag")
	}
}

func TestFindPrecedence(t *testing.T) {
	var l InputsList
	l.Add(0, true, true, "[0] 20:0 kbd:in", "nick-a", "alias-a")
	l.Add(1, true, false, "[1] 20:1 kbd:in2", "nick-b", "alias-b")

	if st := l.Find("[1] 20:1 kbd:in2", "", ""); st == nil || st.Bus != 1 {
		t.Error("exact-name lookup failed")
	}
	if st := l.Find("renamed", "nick-a", ""); st == nil || st.Bus != 0 {
		t.Error("nick-name fallback failed")
	}
	if st := l.Find("renamed", "unknown", "alias-b"); st == nil || st.Bus != 1 {
		t.Error("alias fallback failed")
	}
	if st := l.Find("renamed", "unknown", "nothing"); st != nil {
		t.Errorf("phantom match on bus %d", st.Bus)
	}
}

func TestDisplayNameStyles(t *testing.T) {
	var l ClocksList
	l.Add(2, true, ClockOff, "[2] 36:0 fluidsynth:midi_00", "", "")

	if got := l.GetDisplayName(2, NamingBrief); got != "midi_00" {
		t.Errorf("brief = %q, want midi_00", got)
	}
	if got := l.GetDisplayName(2, NamingPair); got != "36:0 midi_00" {
		t.Errorf("pair = %q", got)
	}
	if got := l.GetDisplayName(2, NamingFull); got != "[2] 36:0 fluidsynth:midi_00" {
		t.Errorf("full = %q", got)
	}
	if got := l.GetNickName(2, NamingPair); got != "[2] midi_00" {
		t.Errorf("prefixed nick = %q", got)
	}
}
