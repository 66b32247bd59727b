// Package ble provides the Bluetooth Low Energy transport for the Fichero D11s
// label printer: discovery, connection, paced command writes and status
// notifications.
package ble

import (
	"context"
	"strings"
)

// Printer GATT UUIDs
const (
	ServiceUUID    = "000018f0-0000-1000-8000-00805f9b34fb"
	WriteCharUUID  = "00002af1-0000-1000-8000-00805f9b34fb"
	NotifyCharUUID = "00002af0-0000-1000-8000-00805f9b34fb"
)

// DefaultNamePrefixes returns the advertised names the printer uses.
func DefaultNamePrefixes() []string {
	return []string{"FICHERO", "D11s"}
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name string
	MAC  string
	RSSI int
}

// HasNamePrefix reports whether the device name starts with any of prefixes,
// ignoring case.
func (d Device) HasNamePrefix(prefixes []string) bool {
	name := strings.ToUpper(d.Name)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan returns the first advertising peripheral accepted by match.
	// It fails once ctx is done without a match.
	Scan(ctx context.Context, match func(Device) bool) (Device, error)
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
