// Command ez-reset drives one attached Epson printer over its D4 or END4
// control channel: status, waste-ink counters, cleaning cycles, restart,
// and power-off. The original project drove these same printer
// operations from a tkinter GUI; this is a CLI front-end over the same
// operations instead.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/CiRIP/ez-reset/control"
	"github.com/CiRIP/ez-reset/devices"
	"github.com/CiRIP/ez-reset/printer"
	"github.com/CiRIP/ez-reset/transport"
)

var log = logrus.WithField("component", "cmd")

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ez-reset -device PATH [-backend d4|end4] <command> [args]")
	fmt.Fprintln(os.Stderr, "commands: status waste reset-waste clean restart power-off identify")
	fmt.Fprintln(os.Stderr, "flags:")
	flag.PrintDefaults()
}

func main() {
	device := flag.String("device", "/dev/usb/lp0", "path to the printer's USB printer-class character device")
	backendName := flag.String("backend", "auto", "control backend: d4, end4, or auto (probe the 1284 ID string)")
	listModels := flag.Bool("list-models", false, "print every model in the bundled device catalog and exit")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *listModels {
		if err := runListModels(); err != nil {
			fail(err)
		}
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	if err := run(*device, *backendName, args[0], args[1:]); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "ez-reset:", err)
	os.Exit(1)
}

func runListModels() error {
	registry, err := devices.NewRegistry()
	if err != nil {
		return err
	}
	for _, model := range registry.Models() {
		fmt.Println(model)
	}
	return nil
}

func run(devicePath, backendName, cmd string, args []string) error {
	t, err := transport.OpenUSBLP(devicePath, transport.DefaultOptions())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing transport")
		}
	}()

	backend, err := openBackend(t, backendName)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing control backend")
		}
	}()

	id, err := backend.Identify()
	if err != nil {
		return err
	}
	fields := control.ParseIdentifier(id)
	registry, err := devices.NewRegistry()
	if err != nil {
		return err
	}
	profile, err := registry.ByModel(fields["MDL"])
	if err != nil {
		return err
	}

	p := printer.New(backend, profile)
	return dispatch(p, cmd, args)
}

// openBackend selects the D4 or END4 control backend. "auto" identifies
// the device first and picks END4 when its 1284 ID string carries a DDS
// field, D4 otherwise — the same signal OpenEND4Backend itself requires.
func openBackend(t transport.Transport, backendName string) (control.Backend, error) {
	switch backendName {
	case "d4":
		return control.OpenD4Backend(t)
	case "end4":
		return control.OpenEND4Backend(t)
	case "auto":
		id, err := t.Identify()
		if err != nil {
			return nil, err
		}
		fields := control.ParseIdentifier(id)
		if _, ok := fields["DDS"]; ok {
			return control.OpenEND4Backend(t)
		}
		return control.OpenD4Backend(t)
	default:
		return nil, fmt.Errorf("unknown -backend %q", backendName)
	}
}

func dispatch(p *printer.Printer, cmd string, args []string) error {
	switch cmd {
	case "status":
		return cmdStatus(p)
	case "waste":
		return cmdWaste(p)
	case "reset-waste":
		return p.ResetWaste()
	case "clean":
		fs := flag.NewFlagSet("clean", flag.ExitOnError)
		level := fs.Int("level", 1, "cleaning level")
		fs.Parse(args)
		return p.Clean(byte(*level))
	case "restart":
		return p.Restart()
	case "power-off":
		return p.PowerOff()
	case "identify":
		return cmdIdentify(p)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdStatus(p *printer.Printer) error {
	s, err := p.GetStatus()
	if err != nil {
		return err
	}
	fmt.Printf("state:   %v\n", s.State)
	fmt.Printf("error:   %v\n", s.Error)
	fmt.Printf("source:  %v\n", s.Source)
	fmt.Printf("serial:  %s\n", s.Serial)
	fmt.Printf("maint:   level=%d status=%v\n", s.MaintenanceBox.Level, s.MaintenanceBox.Status)
	for _, lvl := range s.Levels {
		fmt.Printf("ink %-16v level=%d status=%v\n", lvl.Color, lvl.Level, lvl.Status)
	}
	return nil
}

func cmdWaste(p *printer.Printer) error {
	wastes, err := p.GetWaste()
	if err != nil {
		return err
	}
	for i, w := range wastes {
		fmt.Printf("counter %d: %d / %d\n", i, w.Value, w.Max)
	}
	return nil
}

func cmdIdentify(p *printer.Printer) error {
	fields, err := p.Identify()
	if err != nil {
		return err
	}
	for k, v := range fields {
		fmt.Printf("%s=%s\n", k, v)
	}
	return nil
}
