package serialbus

import (
	charmlog "github.com/charmbracelet/log"

	"midibus/bus"
)

// Driver presents one UART as a bus subsystem: a single input port and
// a single output port sharing the device.
type Driver struct {
	bus.NopDriver

	device  string
	baud    int
	client  string
	log     *charmlog.Logger
	backend *Backend
}

// NewDriver prepares a driver for the named device.
func NewDriver(device string, baud int, client string, logger *charmlog.Logger) *Driver {
	if logger == nil {
		logger = charmlog.Default()
	}
	if client == "" {
		client = "serialbus"
	}
	return &Driver{
		device: device,
		baud:   baud,
		client: client,
		log:    logger,
	}
}

// Backend exposes the shared UART backend, nil before Scan.
func (d *Driver) Backend() *Backend { return d.backend }

// Scan builds the input and output port over the shared backend. The
// UART itself opens at init time.
func (d *Driver) Scan(ppqn int, bpm float64) (ins, outs []*bus.Port, err error) {
	d.backend = New(d.device, d.baud, ppqn, bpm, d.log)
	in := bus.NewPort(bus.PortDesc{
		App:      d.client,
		BusName:  "serial",
		PortName: d.device,
		Index:    0,
		ClientID: -1,
		PPQN:     ppqn,
		BPM:      bpm,
		IO:       bus.IOInput,
		Kind:     bus.PortNormal,
		Backend:  d.backend,
	})
	out := bus.NewPort(bus.PortDesc{
		App:      d.client,
		BusName:  "serial",
		PortName: d.device,
		Index:    0,
		ClientID: -1,
		PPQN:     ppqn,
		BPM:      bpm,
		IO:       bus.IOOutput,
		Kind:     bus.PortNormal,
		Backend:  d.backend,
	})
	return []*bus.Port{in}, []*bus.Port{out}, nil
}

// Close is a no-op; the ports' deinit hooks close the UART.
func (d *Driver) Close() error { return nil }
