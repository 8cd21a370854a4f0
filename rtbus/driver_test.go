package rtbus

import "testing"

func TestSplitPortName(t *testing.T) {
	cases := []struct {
		in       string
		busName  string
		portName string
	}{
		{"FLUID Synth:Synth input port (28:0)", "FLUID Synth", "Synth input port (28:0)"},
		{"Midi Through:Midi Through Port-0", "Midi Through", "Midi Through Port-0"},
		{"plainname", "", "plainname"},
		{":leading", "", ":leading"},
	}
	for _, c := range cases {
		busName, portName := splitPortName(c.in)
		if busName != c.busName || portName != c.portName {
			t.Errorf("splitPortName(%q) = %q,%q want %q,%q",
				c.in, busName, portName, c.busName, c.portName)
		}
	}
}

func TestPulseAt(t *testing.T) {
	// One quarter note at 120 BPM is 500ms.
	if got := pulseAt(192, 120, 500); got != 192 {
		t.Errorf("pulseAt(192, 120, 500ms) = %d, want 192", got)
	}
	if got := pulseAt(192, 120, -3); got != 0 {
		t.Errorf("negative timestamp gave %d", got)
	}
}
