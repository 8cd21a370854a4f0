// Package rtbus adapts the gomidi rtmidi driver to the bus core: it
// enumerates the subsystem's real ports, opens virtual ports in manual
// mode, and implements the per-port backend contract over
// gitlab.com/gomidi/midi/v2.
package rtbus

import (
	"fmt"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"midibus/bus"
)

// inputBufferSize holds arriving events between driver callback and
// poll loop. Generous on purpose; overflow only drops the oldest.
const inputBufferSize = 1024

// Driver enumerates rtmidi ports into bus ports. In manual mode it
// creates virtual ports for other applications to connect to instead
// of attaching to the real ones.
type Driver struct {
	bus.NopDriver

	client      string
	manual      bool
	virtualIns  int
	virtualOuts int
	log         *charmlog.Logger
}

// New builds a driver from the bus configuration.
func New(cfg bus.Config, logger *charmlog.Logger) *Driver {
	if logger == nil {
		logger = charmlog.Default()
	}
	return &Driver{
		client:      cfg.Client,
		manual:      cfg.Manual,
		virtualIns:  cfg.VirtualIns,
		virtualOuts: cfg.VirtualOuts,
		log:         logger,
	}
}

// Scan builds one unopened port per subsystem device, or the
// configured virtual ports in manual mode.
func (d *Driver) Scan(ppqn int, bpm float64) (ins, outs []*bus.Port, err error) {
	if d.manual {
		return d.scanVirtual(ppqn, bpm)
	}
	for i, in := range midi.GetInPorts() {
		backend := newInBackend(in, ppqn, bpm, d.log)
		busName, portName := splitPortName(in.String())
		ins = append(ins, bus.NewPort(bus.PortDesc{
			App:      d.client,
			BusName:  busName,
			PortName: portName,
			Index:    i,
			ClientID: -1,
			BusID:    0,
			PortID:   in.Number(),
			PPQN:     ppqn,
			BPM:      bpm,
			IO:       bus.IOInput,
			Kind:     bus.PortNormal,
			Backend:  backend,
		}))
	}
	for i, out := range midi.GetOutPorts() {
		backend := newOutBackend(out, d.log)
		busName, portName := splitPortName(out.String())
		outs = append(outs, bus.NewPort(bus.PortDesc{
			App:      d.client,
			BusName:  busName,
			PortName: portName,
			Index:    i,
			ClientID: -1,
			BusID:    0,
			PortID:   out.Number(),
			PPQN:     ppqn,
			BPM:      bpm,
			IO:       bus.IOOutput,
			Kind:     bus.PortNormal,
			Backend:  backend,
		}))
	}
	d.log.Debug("scan complete", "ins", len(ins), "outs", len(outs))
	return ins, outs, nil
}

// scanVirtual creates the configured virtual ports. The rtmidi driver
// hands them back already open; the backends only start their
// listeners at init time.
func (d *Driver) scanVirtual(ppqn int, bpm float64) (ins, outs []*bus.Port, err error) {
	drv, ok := drivers.Get().(*rtmididrv.Driver)
	if !ok {
		return nil, nil, fmt.Errorf("rtmidi driver not registered")
	}
	for i := 0; i < d.virtualIns; i++ {
		name := fmt.Sprintf("%s in %d", d.client, i)
		in, err := drv.OpenVirtualIn(name)
		if err != nil {
			return nil, nil, fmt.Errorf("open virtual input %q: %w", name, err)
		}
		backend := newInBackend(in, ppqn, bpm, d.log)
		backend.opened = true
		p := bus.NewPort(bus.PortDesc{
			App:      d.client,
			PortName: name,
			Index:    i,
			ClientID: -1,
			PortID:   i,
			PPQN:     ppqn,
			BPM:      bpm,
			IO:       bus.IOInput,
			Kind:     bus.PortManual,
			Backend:  backend,
		})
		p.SetName(d.client, d.client, name)
		ins = append(ins, p)
	}
	for i := 0; i < d.virtualOuts; i++ {
		name := fmt.Sprintf("%s out %d", d.client, i)
		out, err := drv.OpenVirtualOut(name)
		if err != nil {
			return nil, nil, fmt.Errorf("open virtual output %q: %w", name, err)
		}
		backend := newOutBackend(out, d.log)
		backend.opened = true
		p := bus.NewPort(bus.PortDesc{
			App:      d.client,
			PortName: name,
			Index:    i,
			ClientID: -1,
			PortID:   i,
			PPQN:     ppqn,
			BPM:      bpm,
			IO:       bus.IOOutput,
			Kind:     bus.PortManual,
			Backend:  backend,
		})
		p.SetName(d.client, d.client, name)
		outs = append(outs, p)
	}
	d.log.Info("virtual ports up", "ins", d.virtualIns, "outs", d.virtualOuts)
	return ins, outs, nil
}

// Close releases the rtmidi driver. The master has already torn down
// the per-port backends, so no listener is running by now.
func (d *Driver) Close() error {
	midi.CloseDriver()
	return nil
}

// splitPortName breaks an rtmidi port string like
// "FLUID Synth:Synth input port (28:0)" into its client and port
// halves. A name with no colon is all port.
func splitPortName(s string) (busName, portName string) {
	if i := strings.Index(s, ":"); i > 0 {
		return s[:i], strings.TrimLeft(s[i+1:], " ")
	}
	return "", s
}
