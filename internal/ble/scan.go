package ble

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ScanForPrinters lists every device advertising one of the configured name
// prefixes during the scan window, strongest signal first.
func (d *Dialer) ScanForPrinters(ctx context.Context) ([]Device, error) {
	if err := d.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, d.opts.ScanTimeout)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]int)
	var devices []Device

	slog.Info("[BLE] scanning", "prefixes", d.opts.NamePrefixes, "timeout", d.opts.ScanTimeout)
	_, err := d.adapter.Scan(scanCtx, func(dev Device) bool {
		if !dev.HasNamePrefix(d.opts.NamePrefixes) {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		if i, ok := seen[dev.MAC]; ok {
			devices[i] = dev // keep the latest RSSI
			return false
		}
		seen[dev.MAC] = len(devices)
		devices = append(devices, dev)
		slog.Debug("[BLE] found", "name", dev.Name, "address", dev.MAC, "rssi", dev.RSSI)
		return false
	})
	if ctx.Err() != nil {
		return nil, fmt.Errorf("ble: scan: %w", ctx.Err())
	}
	// the scan only ends on its own when the window closes
	if err != nil && scanCtx.Err() == nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	slices.SortStableFunc(devices, func(a, b Device) int { return cmp.Compare(b.RSSI, a.RSSI) })
	return devices, nil
}
