package ble

import (
	"context"
	"errors"
	"testing"
)

func TestScanForPrinters(t *testing.T) {
	adapter := newMockAdapter([]Device{
		{Name: "FICHERO_01", MAC: "AA:00:00:00:00:01", RSSI: -70},
		{Name: "Speaker", MAC: "AA:00:00:00:00:02", RSSI: -30},
		{Name: "d11s-kitchen", MAC: "AA:00:00:00:00:03", RSSI: -45},
		{Name: "FICHERO_01", MAC: "AA:00:00:00:00:01", RSSI: -50},
	})
	d := NewDialer(adapter, fastOpts())

	devices, err := d.ScanForPrinters(context.Background())
	if err != nil {
		t.Fatalf("ScanForPrinters() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %v", len(devices), devices)
	}
	if devices[0].MAC != "AA:00:00:00:00:03" || devices[1].MAC != "AA:00:00:00:00:01" {
		t.Errorf("devices = %v, want strongest first", devices)
	}
	if devices[1].RSSI != -50 {
		t.Errorf("RSSI = %d, want latest reading -50", devices[1].RSSI)
	}
	if len(adapter.connected) != 0 {
		t.Errorf("scan connected to %v", adapter.connected)
	}
}

func TestScanForPrintersEmpty(t *testing.T) {
	d := NewDialer(newMockAdapter(nil), fastOpts())
	devices, err := d.ScanForPrinters(context.Background())
	if err != nil {
		t.Fatalf("ScanForPrinters() error = %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("got %d devices, want 0", len(devices))
	}
}

func TestScanForPrintersEnableFailure(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.enableErr = errors.New("bluetooth off")
	d := NewDialer(adapter, fastOpts())

	if _, err := d.ScanForPrinters(context.Background()); err == nil {
		t.Error("ScanForPrinters() should fail when the adapter cannot be enabled")
	}
}

func TestScanForPrintersCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDialer(newMockAdapter(nil), fastOpts())

	_, err := d.ScanForPrinters(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestTinyGoScanCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTinyGoAdapter().Scan(ctx, func(Device) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}
