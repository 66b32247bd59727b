package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/chaz8081/fichero/internal/ble"
	"github.com/chaz8081/fichero/internal/config"
	"github.com/chaz8081/fichero/internal/printer"
)

const usage = `Fichero D11s label printer

Usage:
  fichero [--address ADDR] [--config PATH] <command> [args]

Commands:
  scan                          list nearby printers
  info                          show device info
  status                        show detailed status
  text [flags] TEXT...          print a text label
  image [flags] PATH            print an image file
  set density|shutdown|paper V  change a printer setting
  reset --yes                   restore factory settings

The printer address comes from --address, then $FICHERO_ADDR, then the
config file. Without one the first printer found by scanning is used.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "  ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fichero", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	address := fs.String("address", "", "BLE address (skip scanning, or set "+config.EnvAddress+")")
	configPath := fs.String("config", "", "path to config file (default: ~/.config/fichero/config.yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no command given")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, cfg.ResolveAddress(*address), out)
	if err != nil {
		return err
	}
	return app.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.LoadOrDefault(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", config.DefaultConfigPath(), err)
	}
	return cfg, nil
}

// setupLogging installs the default slog handler. Logs go to stderr, or to a
// rotating file when log_file is set.
func setupLogging(cfg *config.Config) (func(), error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w = lj
		closeFn = func() { _ = lj.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closeFn, nil
}

// newDialer builds the BLE dialer on the system adapter.
func newDialer(cfg *config.Config) *ble.Dialer {
	return ble.NewDialer(ble.NewTinyGoAdapter(), ble.Options{
		ScanTimeout:  cfg.BLE.ScanTimeout,
		NamePrefixes: cfg.BLE.NamePrefixes,
		ServiceUUID:  cfg.BLE.ServiceUUID,
		WriteUUID:    cfg.BLE.WriteUUID,
		NotifyUUID:   cfg.BLE.NotifyUUID,
	})
}

// dialFunc adapts the BLE dialer to the printer transport.
func dialFunc(dialer *ble.Dialer) printer.DialFunc {
	return func(ctx context.Context, address string) (printer.Transport, error) {
		conn, err := dialer.Dial(ctx, address)
		if err != nil {
			// a nil *ble.Conn must not become a non-nil Transport
			return nil, err
		}
		return conn, nil
	}
}
