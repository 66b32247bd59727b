package ble

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

// Options configures discovery and connection.
type Options struct {
	ScanTimeout    time.Duration // discovery window when no address is given
	ConnectTimeout time.Duration
	NamePrefixes   []string
	ServiceUUID    string
	WriteUUID      string
	NotifyUUID     string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ScanTimeout:    10 * time.Second,
		ConnectTimeout: 10 * time.Second,
		NamePrefixes:   DefaultNamePrefixes(),
		ServiceUUID:    ServiceUUID,
		WriteUUID:      WriteCharUUID,
		NotifyUUID:     NotifyCharUUID,
	}
}

// Dialer opens printer connections through an Adapter.
type Dialer struct {
	adapter Adapter
	opts    Options
}

// NewDialer creates a Dialer. Zero option fields take their defaults.
func NewDialer(adapter Adapter, opts Options) *Dialer {
	def := DefaultOptions()
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if len(opts.NamePrefixes) == 0 {
		opts.NamePrefixes = def.NamePrefixes
	} else {
		opts.NamePrefixes = slices.Clone(opts.NamePrefixes)
	}
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = def.ServiceUUID
	}
	if opts.WriteUUID == "" {
		opts.WriteUUID = def.WriteUUID
	}
	if opts.NotifyUUID == "" {
		opts.NotifyUUID = def.NotifyUUID
	}
	return &Dialer{adapter: adapter, opts: opts}
}

// Dial connects to the printer at address. An empty address scans for the
// first device advertising one of the configured name prefixes. Every
// failure wraps protocol.ErrNotFound.
func (d *Dialer) Dial(ctx context.Context, address string) (*Conn, error) {
	if err := d.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w: %w", err, protocol.ErrNotFound)
	}

	if address == "" {
		dev, err := d.find(ctx)
		if err != nil {
			return nil, err
		}
		address = dev.MAC
	}

	connectCtx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()

	conn, err := d.adapter.Connect(connectCtx, address)
	if err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w: %w", address, err, protocol.ErrNotFound)
	}

	c, err := newConn(conn, address, d.opts)
	if err != nil {
		_ = conn.Disconnect()
		return nil, fmt.Errorf("%w: %w", err, protocol.ErrNotFound)
	}

	slog.Info("[BLE] connected", "address", address)
	return c, nil
}

func (d *Dialer) find(ctx context.Context) (Device, error) {
	scanCtx, cancel := context.WithTimeout(ctx, d.opts.ScanTimeout)
	defer cancel()

	slog.Info("[BLE] scanning for printer", "prefixes", d.opts.NamePrefixes, "timeout", d.opts.ScanTimeout)
	dev, err := d.adapter.Scan(scanCtx, func(dev Device) bool {
		return dev.HasNamePrefix(d.opts.NamePrefixes)
	})
	if err != nil {
		return Device{}, fmt.Errorf("ble: no printer found within %s: %w: %w", d.opts.ScanTimeout, err, protocol.ErrNotFound)
	}
	slog.Info("[BLE] found printer", "name", dev.Name, "address", dev.MAC, "rssi", dev.RSSI)
	return dev, nil
}
