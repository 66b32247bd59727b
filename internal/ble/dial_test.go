package ble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

func fastOpts() Options {
	opts := DefaultOptions()
	opts.ScanTimeout = 30 * time.Millisecond
	opts.ConnectTimeout = 30 * time.Millisecond
	return opts
}

func TestDialDirectAddress(t *testing.T) {
	adapter := newMockAdapter(nil)
	d := NewDialer(adapter, fastOpts())

	c, err := d.Dial(context.Background(), "11:22:33:44:55:66")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if adapter.scans != 0 {
		t.Errorf("Dial with address scanned %d times, want 0", adapter.scans)
	}
	if len(adapter.connected) != 1 || adapter.connected[0] != "11:22:33:44:55:66" {
		t.Errorf("connected = %v, want [11:22:33:44:55:66]", adapter.connected)
	}
	if c.Address() != "11:22:33:44:55:66" {
		t.Errorf("Address() = %q", c.Address())
	}
}

func TestDialScansForPrinter(t *testing.T) {
	adapter := newMockAdapter([]Device{
		{Name: "Headphones", MAC: "00:00:00:00:00:01", RSSI: -40},
		{Name: "D11s_2A4F", MAC: "00:00:00:00:00:02", RSSI: -60},
	})
	d := NewDialer(adapter, fastOpts())

	c, err := d.Dial(context.Background(), "")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if len(adapter.connected) != 1 || adapter.connected[0] != "00:00:00:00:00:02" {
		t.Errorf("connected = %v, want the D11s device", adapter.connected)
	}
}

func TestDialNoDeviceFound(t *testing.T) {
	adapter := newMockAdapter([]Device{{Name: "Keyboard", MAC: "00:00:00:00:00:09"}})
	d := NewDialer(adapter, fastOpts())

	_, err := d.Dial(context.Background(), "")
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Fatalf("Dial() error = %v, want ErrNotFound", err)
	}
	if len(adapter.connected) != 0 {
		t.Errorf("Connect called %d times after failed scan, want 0", len(adapter.connected))
	}
}

func TestDialConnectFailure(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connectErr = errors.New("page timeout")
	d := NewDialer(adapter, fastOpts())

	_, err := d.Dial(context.Background(), "11:22:33:44:55:66")
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Errorf("Dial() error = %v, want ErrNotFound", err)
	}
}

func TestDialEnableFailure(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.enableErr = errors.New("adapter powered off")
	d := NewDialer(adapter, fastOpts())

	_, err := d.Dial(context.Background(), "11:22:33:44:55:66")
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Errorf("Dial() error = %v, want ErrNotFound", err)
	}
}

func TestDialMissingCharacteristicDisconnects(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connection.missing[NotifyCharUUID] = true
	d := NewDialer(adapter, fastOpts())

	_, err := d.Dial(context.Background(), "11:22:33:44:55:66")
	if !errors.Is(err, protocol.ErrNotFound) {
		t.Errorf("Dial() error = %v, want ErrNotFound", err)
	}
	if adapter.connection.Disconnects() != 1 {
		t.Errorf("Disconnect called %d times, want 1", adapter.connection.Disconnects())
	}
}

func TestDeviceHasNamePrefix(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"FICHERO-01", true},
		{"fichero", true},
		{"D11s_ABCD", true},
		{"", false},
		{"Printer", false},
	}
	for _, tt := range tests {
		if got := (Device{Name: tt.name}).HasNamePrefix(DefaultNamePrefixes()); got != tt.want {
			t.Errorf("HasNamePrefix(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDefaultOptionsNotShared(t *testing.T) {
	opts := DefaultOptions()
	opts.NamePrefixes[0] = "OTHER"

	if got := DefaultOptions().NamePrefixes[0]; got != "FICHERO" {
		t.Errorf("DefaultOptions().NamePrefixes[0] = %q after caller edit, want FICHERO", got)
	}
	if got := DefaultNamePrefixes()[0]; got != "FICHERO" {
		t.Errorf("DefaultNamePrefixes()[0] = %q after caller edit, want FICHERO", got)
	}

	prefixes := []string{"D11s"}
	d := NewDialer(newMockAdapter(nil), Options{NamePrefixes: prefixes})
	prefixes[0] = "OTHER"
	if d.opts.NamePrefixes[0] != "D11s" {
		t.Errorf("dialer prefixes = %v, want [D11s]", d.opts.NamePrefixes)
	}
}
