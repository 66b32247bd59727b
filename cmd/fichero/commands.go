package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/chaz8081/fichero/internal/ble"
	"github.com/chaz8081/fichero/internal/ble/protocol"
	"github.com/chaz8081/fichero/internal/config"
	"github.com/chaz8081/fichero/internal/imaging"
	"github.com/chaz8081/fichero/internal/printer"
	"github.com/chaz8081/fichero/internal/raster"
)

// app carries what every subcommand needs.
type app struct {
	cfg     *config.Config
	address string
	out     io.Writer
	dial    printer.DialFunc
	scan    func(context.Context) ([]ble.Device, error)
	opts    printer.Options
}

func newApp(cfg *config.Config, address string, out io.Writer) (*app, error) {
	fields, all, err := cfg.InfoQueries()
	if err != nil {
		return nil, err
	}
	dialer := newDialer(cfg)
	return &app{
		cfg:     cfg,
		address: address,
		out:     out,
		dial:    dialFunc(dialer),
		scan:    dialer.ScanForPrinters,
		opts: printer.Options{
			ReplyTimeout:   cfg.BLE.NotifyTimeout,
			ChunkSize:      cfg.BLE.ChunkSize,
			InfoQueries:    fields,
			AllInfoQueries: all,
		},
	}, nil
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "scan":
		return a.scanPrinters(ctx)
	case "info":
		return a.info(ctx)
	case "status":
		return a.status(ctx)
	case "text":
		return a.text(ctx, args)
	case "image":
		return a.image(ctx, args)
	case "set":
		return a.set(ctx, args)
	case "reset":
		return a.reset(ctx, args)
	}
	return fmt.Errorf("unknown command %q (want scan, info, status, text, image, set or reset)", cmd)
}

func (a *app) withClient(ctx context.Context, fn func(*printer.Client) error) error {
	return printer.WithClient(ctx, a.dial, a.address, a.opts, fn)
}

func (a *app) scanPrinters(ctx context.Context) error {
	devices, err := a.scan(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(a.out, "  No printers found.")
		return nil
	}
	for _, d := range devices {
		fmt.Fprintf(a.out, "  %s  %-20s %d dBm\n", d.MAC, d.Name, d.RSSI)
	}
	return nil
}

func (a *app) info(ctx context.Context) error {
	return a.withClient(ctx, func(c *printer.Client) error {
		info, err := c.Info(ctx)
		if err != nil {
			return err
		}
		a.printInfo(info)

		fmt.Fprintln(a.out)
		all, err := c.AllInfo(ctx)
		if err != nil {
			return err
		}
		a.printInfo(all)
		return nil
	})
}

func (a *app) printInfo(info *protocol.Info) {
	for _, f := range info.Fields() {
		fmt.Fprintf(a.out, "  %s: %s\n", f.Name, f.Value)
	}
}

func (a *app) status(ctx context.Context) error {
	return a.withClient(ctx, func(c *printer.Client) error {
		s, err := c.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(a.out, s)

		density, shutdown := "unknown", "unknown"
		if d, err := c.Density(ctx); err == nil {
			density = d.String()
		} else if !errors.Is(err, printer.ErrTimeout) {
			return err
		}
		if m, err := c.ShutdownTime(ctx); err == nil {
			shutdown = fmt.Sprintf("%d min", m)
		} else if !errors.Is(err, printer.ErrTimeout) {
			return err
		}
		fmt.Fprintf(a.out, "  Density: %s\n", density)
		fmt.Fprintf(a.out, "  Auto power-off: %s\n", shutdown)
		return nil
	})
}

func printStatus(w io.Writer, s protocol.Status) {
	fmt.Fprintf(w, "  Status: %s\n", s)
	fmt.Fprintf(w, "  Raw: 0x%02X (%08b)\n", s.Raw, s.Raw)
	fmt.Fprintf(w, "  printing=%t cover_open=%t no_paper=%t low_battery=%t overheated=%t charging=%t\n",
		s.Printing, s.CoverOpen, s.NoPaper, s.LowBattery, s.Overheated, s.Charging)
}

// jobFlags are the flags shared by the print commands.
type jobFlags struct {
	density int
	copies  int
	paper   string
}

func (a *app) addJobFlags(fs *flag.FlagSet) *jobFlags {
	jf := &jobFlags{}
	fs.IntVar(&jf.density, "density", a.cfg.Print.Density, "print density: 0=light, 1=medium, 2=thick")
	fs.IntVar(&jf.copies, "copies", a.cfg.Print.Copies, "number of copies")
	fs.StringVar(&jf.paper, "paper", a.cfg.Print.Paper, "paper type: gap, black or continuous")
	return jf
}

// resolve validates the job flags before any connection is made.
func (jf *jobFlags) resolve() (protocol.Density, protocol.PaperType, error) {
	if jf.density < 0 || jf.density > int(protocol.DensityThick) {
		return 0, 0, fmt.Errorf("density must be 0, 1, or 2, got %d: %w", jf.density, protocol.ErrInvalidArgument)
	}
	if jf.copies < 1 {
		return 0, 0, fmt.Errorf("copies must be at least 1, got %d: %w", jf.copies, protocol.ErrInvalidArgument)
	}
	p, err := protocol.ParsePaperType(jf.paper)
	if err != nil {
		return 0, 0, err
	}
	return protocol.Density(jf.density), p, nil
}

func (a *app) text(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("text", flag.ContinueOnError)
	jf := a.addJobFlags(fs)
	fontSize := fs.Float64("font-size", a.cfg.Print.FontSize, "font size in points")
	labelHeight := fs.Int("label-height", a.cfg.Print.LabelHeight, "label height in pixels")
	words, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("text: nothing to print")
	}
	density, paper, err := jf.resolve()
	if err != nil {
		return err
	}

	text := strings.Join(words, " ")
	img, err := imaging.RenderText(text, *fontSize, *labelHeight)
	if err != nil {
		return err
	}
	return a.print(ctx, fmt.Sprintf("%q", text), img, density, paper, jf.copies)
}

func (a *app) image(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	jf := a.addJobFlags(fs)
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("image: expected one image path, got %d arguments", len(rest))
	}
	density, paper, err := jf.resolve()
	if err != nil {
		return err
	}

	img, err := imaging.Open(rest[0])
	if err != nil {
		return err
	}
	return a.print(ctx, rest[0], img, density, paper, jf.copies)
}

func (a *app) print(ctx context.Context, what string, img image.Image, density protocol.Density, paper protocol.PaperType, copies int) error {
	m, truncated, err := imaging.Prepare(img, a.cfg.Print.MaxRows)
	if err != nil {
		return err
	}
	if truncated {
		fmt.Fprintf(a.out, "  WARNING: image cropped to %d rows\n", m.Height())
	}

	return a.withClient(ctx, func(c *printer.Client) error {
		fmt.Fprintf(a.out, "Printing %s...\n", what)
		fmt.Fprintf(a.out, "  Image: %dx%d, %d bytes, %d copies\n", m.Width(), m.Height(), m.Height()*raster.BytesPerRow, copies)

		res, err := c.PrintRaster(ctx, m, density, paper, copies)
		if res != nil {
			for _, w := range res.Warnings() {
				fmt.Fprintf(a.out, "  WARNING: %s\n", w)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Done.")
		return nil
	})
}

func (a *app) set(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("set: usage: set density|shutdown|paper VALUE")
	}
	s, err := protocol.ParseSetting(args[0], args[1])
	if err != nil {
		return err
	}

	return a.withClient(ctx, func(c *printer.Client) error {
		ok, err := c.Apply(ctx, s)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "  Set %s: %s\n", s, okText(ok))
		return nil
	})
}

func (a *app) reset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm the factory reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("reset: pass --yes to restore factory settings")
	}

	return a.withClient(ctx, func(c *printer.Client) error {
		ok, err := c.FactoryReset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "  Factory reset: %s\n", okText(ok))
		return nil
	})
}

func okText(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAILED"
}

// parseInterspersed parses fs allowing flags after positional arguments, so
// "text hello --copies 2" works like "text --copies 2 hello". Everything
// after a "--" terminator is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if used := len(args) - len(rest); used > 0 && args[used-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
