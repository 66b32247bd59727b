// Package printer drives a Fichero D11s label printer over an abstract
// transport: status and info queries, settings, and the timed print sequence.
package printer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

// Transport is the command channel to one printer.
type Transport interface {
	// Write sends data as one BLE write.
	Write(data []byte) error
	// AwaitNotification blocks until the printer replies or timeout elapses,
	// in which case the error wraps ErrTimeout.
	AwaitNotification(ctx context.Context, timeout time.Duration) ([]byte, error)
	// Close releases the connection. It must be idempotent.
	Close() error
}

// DialFunc opens a Transport. An empty address means discover the printer.
type DialFunc func(ctx context.Context, address string) (Transport, error)

// Options configures a Client.
type Options struct {
	ReplyTimeout   time.Duration        // wait for a reply to a query or setting
	ChunkSize      int                  // largest single write
	InfoQueries    []protocol.InfoQuery // fields listed by Info
	AllInfoQueries []protocol.InfoQuery // fields listed by AllInfo
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ReplyTimeout:   2 * time.Second,
		ChunkSize:      protocol.MaxWriteBytes,
		InfoQueries:    protocol.IdentityQueries(),
		AllInfoQueries: protocol.ExtendedQueries(),
	}
}

// Client is the single owner of one printer connection. Commands are issued
// one at a time; a Client must not be used from several goroutines at once.
type Client struct {
	t    Transport
	opts Options

	// sleep waits out the fixed inter-command delays.
	sleep func(time.Duration)

	closeOnce sync.Once
	closeErr  error
}

// New wraps an open transport. The Client takes ownership and closes it in Close.
func New(t Transport, opts Options) *Client {
	def := DefaultOptions()
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = def.ReplyTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if len(opts.InfoQueries) == 0 {
		opts.InfoQueries = def.InfoQueries
	}
	if len(opts.AllInfoQueries) == 0 {
		opts.AllInfoQueries = def.AllInfoQueries
	}
	return &Client{t: t, opts: opts, sleep: time.Sleep}
}

// Connect dials the printer and returns a Client owning the connection.
// Callers must Close it. Any dial failure wraps ErrNotFound.
func Connect(ctx context.Context, dial DialFunc, address string, opts Options) (*Client, error) {
	t, err := dial(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("printer: connect: %w", err)
		}
		return nil, fmt.Errorf("printer: connect: %w: %w", err, ErrNotFound)
	}
	return New(t, opts), nil
}

// WithClient connects, runs fn, and closes the connection on every exit path,
// including a panic in fn.
func WithClient(ctx context.Context, dial DialFunc, address string, opts Options, fn func(*Client) error) (err error) {
	c, err := Connect(ctx, dial, address, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

// Close releases the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if err := c.t.Close(); err != nil {
			c.closeErr = fmt.Errorf("printer: close: %w", err)
		}
	})
	return c.closeErr
}

// write sends one frame, split into ChunkSize writes when needed.
func (c *Client) write(f protocol.Frame) error {
	for _, chunk := range protocol.Chunk(f, c.opts.ChunkSize) {
		if err := c.t.Write(chunk); err != nil {
			return fmt.Errorf("printer: write: %w", err)
		}
	}
	return nil
}

// query writes f and waits for the reply.
func (c *Client) query(ctx context.Context, f protocol.Frame, timeout time.Duration) ([]byte, error) {
	if err := c.write(f); err != nil {
		return nil, err
	}
	reply, err := c.t.AwaitNotification(ctx, timeout)
	if err != nil {
		return nil, fmt.Errorf("printer: await reply to %x: %w", []byte(f), err)
	}
	slog.Debug("[PRINT] reply", "command", fmt.Sprintf("%x", []byte(f)), "reply", fmt.Sprintf("%x", reply))
	return reply, nil
}

// ackQuery writes f and decodes the acknowledgement. A missing reply counts
// as a failed acknowledgement, not an error.
func (c *Client) ackQuery(ctx context.Context, f protocol.Frame, timeout time.Duration) (bool, error) {
	reply, err := c.query(ctx, f, timeout)
	if errors.Is(err, ErrTimeout) {
		slog.Debug("[PRINT] no acknowledgement", "command", fmt.Sprintf("%x", []byte(f)))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return protocol.DecodeAck(reply), nil
}

// Status queries the printer status. Every call asks the device afresh.
func (c *Client) Status(ctx context.Context) (protocol.Status, error) {
	reply, err := c.query(ctx, protocol.StatusQuery(), c.opts.ReplyTimeout)
	if err != nil {
		return protocol.Status{}, err
	}
	return protocol.DecodeStatus(reply)
}

// Info queries the identity fields.
func (c *Client) Info(ctx context.Context) (*protocol.Info, error) {
	return c.queryInfo(ctx, c.opts.InfoQueries)
}

// AllInfo queries the full field set, a superset of Info.
func (c *Client) AllInfo(ctx context.Context) (*protocol.Info, error) {
	return c.queryInfo(ctx, c.opts.AllInfoQueries)
}

func (c *Client) queryInfo(ctx context.Context, queries []protocol.InfoQuery) (*protocol.Info, error) {
	info := &protocol.Info{}
	for _, q := range queries {
		reply, err := c.query(ctx, q.Command, c.opts.ReplyTimeout)
		if errors.Is(err, ErrTimeout) {
			slog.Warn("[PRINT] info field unanswered", "field", q.Name)
			info.Set(protocol.InfoField{Name: q.Name})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("printer: query %s: %w", q.Name, err)
		}
		for _, f := range protocol.DecodeInfo(q, reply) {
			info.Set(f)
		}
	}
	return info, nil
}

// Apply changes a persistent setting and reports whether the printer
// acknowledged it.
func (c *Client) Apply(ctx context.Context, s protocol.Setting) (bool, error) {
	f, err := s.Frame()
	if err != nil {
		return false, err
	}
	ok, err := c.ackQuery(ctx, f, c.opts.ReplyTimeout)
	if err != nil {
		return false, fmt.Errorf("printer: set %v: %w", s.Kind, err)
	}
	slog.Info("[PRINT] setting applied", "setting", s.String(), "ack", ok)
	return ok, nil
}

// SetDensity sets the print darkness.
func (c *Client) SetDensity(ctx context.Context, d protocol.Density) (bool, error) {
	s, err := protocol.DensitySetting(d)
	if err != nil {
		return false, err
	}
	return c.Apply(ctx, s)
}

// SetPaperType sets the label stock sensing mode.
func (c *Client) SetPaperType(ctx context.Context, p protocol.PaperType) (bool, error) {
	s, err := protocol.PaperSetting(p)
	if err != nil {
		return false, err
	}
	return c.Apply(ctx, s)
}

// SetShutdownTime sets the auto power-off delay in minutes (1-480).
func (c *Client) SetShutdownTime(ctx context.Context, minutes int) (bool, error) {
	s, err := protocol.ShutdownSetting(minutes)
	if err != nil {
		return false, err
	}
	return c.Apply(ctx, s)
}

// Density reads back the stored density.
func (c *Client) Density(ctx context.Context) (protocol.Density, error) {
	reply, err := c.query(ctx, protocol.DensityQuery(), c.opts.ReplyTimeout)
	if err != nil {
		return 0, err
	}
	if len(reply) == 0 {
		return 0, fmt.Errorf("printer: empty density reply: %w", ErrPrinter)
	}
	return protocol.Density(reply[len(reply)-1]), nil
}

// ShutdownTime reads back the auto power-off delay in minutes.
func (c *Client) ShutdownTime(ctx context.Context) (int, error) {
	reply, err := c.query(ctx, protocol.ShutdownQuery(), c.opts.ReplyTimeout)
	if err != nil {
		return 0, err
	}
	if len(reply) < 2 {
		return 0, fmt.Errorf("printer: shutdown reply %x too short: %w", reply, ErrPrinter)
	}
	return int(reply[0])<<8 | int(reply[1]), nil
}

// FactoryReset restores the printer defaults.
func (c *Client) FactoryReset(ctx context.Context) (bool, error) {
	return c.ackQuery(ctx, protocol.FactoryReset(), c.opts.ReplyTimeout)
}

// SendChunked writes an arbitrary frame, splitting it into ChunkSize writes.
func (c *Client) SendChunked(f protocol.Frame) error {
	return c.write(f)
}

// Wakeup brings the print engine out of standby.
func (c *Client) Wakeup() error { return c.write(protocol.Wakeup()) }

// Enable arms the printer for a raster.
func (c *Client) Enable() error { return c.write(protocol.Enable()) }

// FormFeed advances to the next label.
func (c *Client) FormFeed() error { return c.write(protocol.FormFeed()) }

// StopPrint ends the job and waits for the printer to acknowledge that the
// label is out.
func (c *Client) StopPrint(ctx context.Context) (bool, error) {
	return c.ackQuery(ctx, protocol.StopPrint(), StopAckTimeout)
}
