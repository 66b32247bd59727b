package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

const (
	// ChunkGap is the minimum spacing between consecutive BLE writes. The
	// printer drops data when write-without-response packets arrive faster.
	ChunkGap = 20 * time.Millisecond
	// NotifySettle is how long to keep collecting reply fragments after the
	// first notification arrives.
	NotifySettle = 50 * time.Millisecond

	notifyQueueSize = 32
)

// ErrDisconnected is returned once the printer link has dropped.
var ErrDisconnected = errors.New("ble: disconnected")

// Conn is an open link to the printer. It carries one command stream: a
// single goroutine issues a write, then waits for its reply, before issuing
// the next command.
type Conn struct {
	address string
	conn    Connection
	write   Characteristic

	limiter  *rate.Limiter
	notifyCh chan []byte
	settle   time.Duration

	lost     chan struct{}
	lostOnce sync.Once

	closeOnce sync.Once
	closeErr  error
}

// newConn discovers the printer characteristics on conn and subscribes to
// status notifications.
func newConn(conn Connection, address string, opts Options) (*Conn, error) {
	write, err := conn.DiscoverCharacteristic(opts.ServiceUUID, opts.WriteUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: discover write characteristic: %w", err)
	}
	notify, err := conn.DiscoverCharacteristic(opts.ServiceUUID, opts.NotifyUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: discover notify characteristic: %w", err)
	}

	c := &Conn{
		address:  address,
		conn:     conn,
		write:    write,
		limiter:  rate.NewLimiter(rate.Every(ChunkGap), 1),
		notifyCh: make(chan []byte, notifyQueueSize),
		settle:   NotifySettle,
		lost:     make(chan struct{}),
	}

	if err := notify.Subscribe(c.onNotify); err != nil {
		return nil, fmt.Errorf("ble: subscribe to notifications: %w", err)
	}
	conn.OnDisconnect(func() {
		slog.Warn("[BLE] printer disconnected", "address", address)
		c.markLost()
	})
	return c, nil
}

// onNotify copies a notification into the queue. The BLE stack may reuse buf.
func (c *Conn) onNotify(buf []byte) {
	data := append([]byte(nil), buf...)
	select {
	case c.notifyCh <- data:
	default:
		slog.Warn("[BLE] notification queue full, dropping", "len", len(data))
	}
}

func (c *Conn) markLost() {
	c.lostOnce.Do(func() { close(c.lost) })
}

// Address returns the address the connection was opened to.
func (c *Conn) Address() string { return c.address }

// Write sends data as one BLE write. Unread notifications from earlier
// commands, including any that arrive while the write is paced, are
// discarded right before sending so the next reply is unambiguous.
func (c *Conn) Write(data []byte) error {
	select {
	case <-c.lost:
		return ErrDisconnected
	default:
	}

	if err := c.limiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("ble: pace write: %w", err)
	}
	c.discardPending()
	if err := c.write.Write(data); err != nil {
		return fmt.Errorf("ble: write %d bytes: %w", len(data), err)
	}
	return nil
}

func (c *Conn) discardPending() {
	for {
		select {
		case stale := <-c.notifyCh:
			slog.Debug("[BLE] discarding stale notification", "data", fmt.Sprintf("%x", stale))
		default:
			return
		}
	}
}

// AwaitNotification blocks until the printer sends a notification, then
// gathers any fragments that follow within the settle window. It fails with
// protocol.ErrTimeout when nothing arrives within timeout.
func (c *Conn) AwaitNotification(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var reply []byte
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.lost:
		return nil, ErrDisconnected
	case <-timer.C:
		return nil, fmt.Errorf("ble: no notification within %s: %w", timeout, protocol.ErrTimeout)
	case reply = <-c.notifyCh:
	}

	settle := time.NewTimer(c.settle)
	defer settle.Stop()
	for {
		select {
		case more := <-c.notifyCh:
			reply = append(reply, more...)
		case <-settle.C:
			return reply, nil
		}
	}
}

// Close disconnects from the printer. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.markLost()
		if err := c.conn.Disconnect(); err != nil {
			c.closeErr = fmt.Errorf("ble: disconnect: %w", err)
		}
		slog.Debug("[BLE] connection closed", "address", c.address)
	})
	return c.closeErr
}
