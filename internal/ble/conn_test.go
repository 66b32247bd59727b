package ble

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

func newTestConn(t *testing.T) (*Conn, *mockConnection) {
	t.Helper()
	mc := newMockConnection()
	c, err := newConn(mc, "AA:BB:CC:DD:EE:FF", DefaultOptions())
	if err != nil {
		t.Fatalf("newConn() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mc
}

func TestConnWrite(t *testing.T) {
	c, mc := newTestConn(t)

	if err := c.Write([]byte{0x10, 0xFF, 0x40}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	writes := mc.writeChar.Writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(writes))
	}
	if !bytes.Equal(writes[0], []byte{0x10, 0xFF, 0x40}) {
		t.Errorf("write = %x, want 10ff40", writes[0])
	}
}

func TestConnWritesArePaced(t *testing.T) {
	c, _ := newTestConn(t)

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := c.Write([]byte{byte(i)}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	// The first write uses the burst token; three more wait one gap each.
	if elapsed := time.Since(start); elapsed < 3*ChunkGap-5*time.Millisecond {
		t.Errorf("4 writes took %s, want at least %s", elapsed, 3*ChunkGap)
	}
}

func TestConnWriteError(t *testing.T) {
	c, mc := newTestConn(t)
	mc.writeChar.writeErr = errors.New("gatt failure")

	if err := c.Write([]byte{0x00}); err == nil {
		t.Fatal("Write() should fail when the characteristic write fails")
	}
}

func TestConnAwaitNotification(t *testing.T) {
	c, mc := newTestConn(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		mc.notifyChar.SimulateNotification([]byte{0x00})
	}()

	got, err := c.AwaitNotification(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("AwaitNotification() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x00}) {
		t.Errorf("AwaitNotification() = %x, want 00", got)
	}
}

func TestConnAwaitNotificationJoinsFragments(t *testing.T) {
	c, mc := newTestConn(t)

	go func() {
		mc.notifyChar.SimulateNotification([]byte("D11s|AA"))
		time.Sleep(10 * time.Millisecond)
		mc.notifyChar.SimulateNotification([]byte(":BB"))
	}()

	got, err := c.AwaitNotification(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("AwaitNotification() error = %v", err)
	}
	if string(got) != "D11s|AA:BB" {
		t.Errorf("AwaitNotification() = %q, want %q", got, "D11s|AA:BB")
	}
}

func TestConnAwaitNotificationTimeout(t *testing.T) {
	c, _ := newTestConn(t)

	_, err := c.AwaitNotification(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("AwaitNotification() error = %v, want ErrTimeout", err)
	}
}

func TestConnWriteDiscardsStaleNotifications(t *testing.T) {
	c, mc := newTestConn(t)

	mc.notifyChar.SimulateNotification([]byte("OK"))
	if err := c.Write([]byte{0x10, 0xFF, 0x40}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	_, err := c.AwaitNotification(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("stale reply was delivered after Write: err = %v", err)
	}
}

func TestConnWriteDiscardsRepliesArrivingWhilePaced(t *testing.T) {
	c, mc := newTestConn(t)

	if err := c.Write([]byte{0x10, 0xFF, 0x11}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// the next write waits one ChunkGap; the late reply lands inside it
	go func() {
		time.Sleep(ChunkGap / 4)
		mc.notifyChar.SimulateNotification([]byte{0x01})
	}()
	if err := c.Write([]byte{0x10, 0xFF, 0x40}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	_, err := c.AwaitNotification(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("late reply was delivered as the next reply: err = %v", err)
	}
}

func TestConnDisconnectFailsPendingWait(t *testing.T) {
	c, mc := newTestConn(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		mc.SimulateDisconnect()
	}()

	_, err := c.AwaitNotification(context.Background(), time.Second)
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("AwaitNotification() error = %v, want ErrDisconnected", err)
	}
	if err := c.Write([]byte{0x00}); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Write() after disconnect error = %v, want ErrDisconnected", err)
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	c, mc := newTestConn(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if n := mc.Disconnects(); n != 1 {
		t.Errorf("Disconnect called %d times, want 1", n)
	}
}
