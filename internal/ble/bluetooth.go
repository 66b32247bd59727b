package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth (BlueZ on Linux, CoreBluetooth on
// macOS, WinRT on Windows). On macOS device addresses are CoreBluetooth UUIDs
// rather than MAC addresses; the MAC field in Device carries that UUID.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by device address
}

// NewTinyGoAdapter creates a BLE adapter on the system default controller.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinyGoConnection),
	}
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// tinygo/bluetooth reports peripheral disconnects through the
	// adapter-level handler with connected=false.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[id]
		delete(a.connections, id)
		a.mu.Unlock()
		if ok {
			conn.fireDisconnect()
		}
	})

	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context, match func(Device) bool) (Device, error) {
	// A StopScan issued before Scan starts is lost, leaving the scan running.
	if err := ctx.Err(); err != nil {
		return Device{}, fmt.Errorf("ble: scan: %w", err)
	}

	var mu sync.Mutex
	var found *Device

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		dev := Device{
			Name: result.LocalName(),
			MAC:  result.Address.String(),
			RSSI: int(result.RSSI),
		}
		if !match(dev) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if found == nil {
			found = &dev
			adapter.StopScan()
		}
	})
	close(done)

	mu.Lock()
	defer mu.Unlock()
	if found != nil {
		return *found, nil
	}
	if err != nil && ctx.Err() == nil {
		return Device{}, fmt.Errorf("ble: scan: %w", err)
	}
	if ctx.Err() != nil {
		return Device{}, fmt.Errorf("ble: scan: %w", ctx.Err())
	}
	return Device{}, fmt.Errorf("ble: scan stopped without a matching device")
}

func (a *TinyGoAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// Connect blocks with the stack's own timeout; run it aside so ctx wins.
	done := make(chan dialOutcome, 1)
	go func() {
		dev, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		done <- dialOutcome{dev, err}
	}()

	var out dialOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		// The printer accepts a single central; free the slot if the
		// abandoned attempt still goes through.
		go func() {
			if late := <-done; late.err == nil {
				_ = late.device.Disconnect()
			}
		}()
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	}
	if out.err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w", address, out.err)
	}

	conn := &tinyGoConnection{device: out.device, services: make(map[bluetooth.UUID]bluetooth.DeviceService)}
	a.mu.Lock()
	a.connections[out.device.Address.String()] = conn
	a.mu.Unlock()
	return conn, nil
}

type dialOutcome struct {
	device bluetooth.Device
	err    error
}

var _ Adapter = (*TinyGoAdapter)(nil)

type tinyGoConnection struct {
	device bluetooth.Device

	mu           sync.Mutex
	disconnectCb func()
	services     map[bluetooth.UUID]bluetooth.DeviceService // discovered so far
}

// DiscoverCharacteristic resolves charUUID inside serviceUUID. The service
// lookup is cached, so the write and notify characteristics share one
// service discovery.
func (c *tinyGoConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: service uuid %q: %w", serviceUUID, err)
	}
	charID, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: characteristic uuid %q: %w", charUUID, err)
	}

	svc, err := c.service(svcID)
	if err != nil {
		return nil, err
	}
	chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{charID})
	switch {
	case err != nil:
		return nil, fmt.Errorf("ble: discover %s: %w", charUUID, err)
	case len(chars) == 0:
		return nil, fmt.Errorf("ble: printer has no characteristic %s", charUUID)
	}
	return &tinyGoCharacteristic{char: chars[0]}, nil
}

func (c *tinyGoConnection) service(id bluetooth.UUID) (bluetooth.DeviceService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.services[id]; ok {
		return svc, nil
	}
	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{id})
	switch {
	case err != nil:
		return bluetooth.DeviceService{}, fmt.Errorf("ble: discover service %s: %w", id, err)
	case len(svcs) == 0:
		return bluetooth.DeviceService{}, fmt.Errorf("ble: printer has no service %s", id)
	}
	c.services[id] = svcs[0]
	return svcs[0], nil
}

func (c *tinyGoConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	c.disconnectCb = cb
	c.mu.Unlock()
}

func (c *tinyGoConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type tinyGoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *tinyGoCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *tinyGoCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(cb)
}
