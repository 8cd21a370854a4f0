// din-bridge hangs a hardware DIN MIDI port (a UART at 31250 baud)
// onto the software MIDI world: events arriving on the serial bus are
// relayed to a MIDI output port, creating a virtual one when the named
// port does not exist.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"midibus/bus"
	"midibus/serialbus"
)

func main() {
	portName := flag.String("port", "/dev/ttyACM0", "serial port, e.g. /dev/ttyUSB0")
	baud := flag.Int("baud", serialbus.DINBaudRate, "baud rate; DIN hardware runs at 31250")
	outPort := flag.String("output", "", "MIDI output port name")
	list := flag.Bool("list", false, "list serial ports and exit")
	debug := flag.Bool("debug", false, "print relayed events")

	flag.Parse()

	logger := charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		Level:           charmlog.InfoLevel,
		ReportTimestamp: false,
		Prefix:          "din-bridge",
	})
	if *debug {
		logger.SetLevel(charmlog.DebugLevel)
	}

	ports, err := serialbus.ListPorts()
	he(err)
	if *list {
		for _, p := range ports {
			fmt.Printf("found port: %v\n", p)
		}
		return
	}
	if *portName == "" {
		if len(ports) == 0 {
			logger.Fatal("no serial ports found")
		}
		*portName = ports[0]
	}

	cfg := bus.DefaultConfig()
	cfg.Client = "din-bridge"
	cfg.InitDisabled = true // open the UART even with no saved enable flag
	master := bus.NewMaster(
		serialbus.NewDriver(*portName, *baud, cfg.Client, logger),
		cfg, logger,
	)
	if err := master.Init(); err != nil {
		logger.Fatal("serial bus", "err", err)
	}
	defer master.Close()
	master.SetInput(0, true)

	defer midi.CloseDriver()
	out, err := midi.FindOutPort(*outPort)
	if err != nil {
		fmt.Println("can't find output", *outPort, "opening a new one")
		out, err = drivers.Get().(*rtmididrv.Driver).OpenVirtualOut("din-bridge")
		if err != nil {
			logger.Fatal("virtual output", "err", err)
		}
	}
	logger.Info("bridging", "serial", *portName, "output", out.String())
	send, err := midi.SendTo(out)
	if err != nil {
		logger.Fatal("output", "err", err)
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt)

	var ev bus.Event
	for {
		select {
		case <-signalCh:
			logger.Info("stop")
			return
		default:
		}
		if master.PollForMidi() == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		for master.GetMidiEvent(&ev) {
			logger.Debug("relay", "msg", ev.Msg.String(), "tick", ev.Tick)
			he(send(ev.Msg))
		}
	}
}

func he(err error) {
	if err != nil {
		println("Error: ", err.Error())
	}
}
