// busmon is the operator tool for the midi bus: list the ports the
// subsystem sees, monitor live input, drive the transport, or fire an
// all-notes-off panic.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	charmlog "github.com/charmbracelet/log"

	"midibus/bus"
	"midibus/rtbus"
)

func main() {
	configFile := flag.String("config", "busmon.yaml", "config file")
	list := flag.Bool("list", false, "list the busses and exit")
	monitor := flag.Bool("monitor", false, "print incoming events until interrupted")
	doPanic := flag.Bool("panic", false, "all-notes-off on every output bus")
	start := flag.Bool("start", false, "send transport start before anything else")
	bpm := flag.Float64("bpm", 0, "override the configured tempo")
	virtual := flag.Bool("virtual", false, "open virtual ports instead of scanning")
	saveConfig := flag.Bool("save-config", false, "write the reconciled port lists back")
	debug := flag.Bool("debug", false, "debug logging")

	flag.Parse()

	logger := charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		Level:           charmlog.InfoLevel,
		ReportTimestamp: false,
		Prefix:          "busmon",
	})
	if *debug {
		logger.SetLevel(charmlog.DebugLevel)
	}

	cfg, err := bus.LoadConfig(*configFile)
	if err != nil {
		logger.Debug("using default config", "err", err)
	}
	if *virtual {
		cfg.Manual = true
	}
	if *bpm > 0 {
		cfg.BPM = *bpm
	}
	if *monitor {
		// Backends must open even for ports with no saved enable flag.
		cfg.InitDisabled = true
	}

	master := bus.NewMaster(rtbus.New(cfg, logger), cfg, logger)
	he(master.Init())
	defer master.Close()

	if *list {
		listBusses(master)
		return
	}
	if *doPanic {
		he(master.Panic(-1))
		logger.Info("panic sent", "outs", master.OutBusCount())
		return
	}
	if *start {
		he(master.Start())
	}
	if *monitor {
		monitorInput(master, logger)
		if *start {
			he(master.Stop())
		}
	}
	if *saveConfig {
		master.CopyIOBusses()
		cfg.Clocks, cfg.Inputs = master.PortStatuses()
		he(cfg.Save(*configFile))
		logger.Info("config saved", "file", *configFile)
	}
}

func listBusses(m *bus.Master) {
	fmt.Printf("input busses (%d):\n", m.InBusCount())
	for b := 0; b < m.InBusCount(); b++ {
		fmt.Printf("  %s  enabled=%t unavailable=%t\n",
			m.InBusName(b), m.GetInput(b),
			m.IsPortUnavailable(b, bus.IOInput))
	}
	fmt.Printf("output busses (%d):\n", m.OutBusCount())
	for b := 0; b < m.OutBusCount(); b++ {
		fmt.Printf("  %s  clock=%s unavailable=%t\n",
			m.OutBusName(b), m.GetClock(b),
			m.IsPortUnavailable(b, bus.IOOutput))
	}
}

// monitorInput drains the bus until interrupted, recording everything
// it prints. The master never sleeps; the pacing lives here.
func monitorInput(m *bus.Master, logger *charmlog.Logger) {
	rec := bus.NewRecorder(0)
	m.SetSequenceInput(true, rec)
	defer m.SetSequenceInput(false, nil)
	for b := 0; b < m.InBusCount(); b++ {
		m.SetInput(b, true)
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt)
	logger.Info("monitoring, ^C to stop")

	var ev bus.Event
	for {
		select {
		case <-signalCh:
			logger.Info("done", "events", rec.Len(), "dropped", rec.Dropped())
			return
		default:
		}
		if m.PollForMidi() == 0 {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		for m.GetMidiEvent(&ev) {
			m.DumpMidiInput(ev)
			logger.Info("event", "bus", ev.Bus, "msg", ev.Msg.String(),
				"tick", ev.Tick)
		}
	}
}

func he(err error) {
	if err != nil {
		println("Error: ", err.Error())
	}
}
