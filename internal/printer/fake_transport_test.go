package printer

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

// fakeTransport records writes and answers commands from a reply table keyed
// by the hex of the written frame. Each command's replies are used in order
// and the last one repeats; a nil reply means silence. Unanswered waits fail
// with ErrTimeout at once.
type fakeTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	replies  map[string][][]byte
	pending  [][]byte
	writeErr error
	failOn   []byte // Write fails when data starts with these bytes
	closed   int
	onWrite  func(data []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{replies: make(map[string][][]byte)}
}

func (f *fakeTransport) reply(cmd protocol.Frame, data ...[]byte) {
	f.replies[hex.EncodeToString(cmd)] = data
}

func (f *fakeTransport) Write(data []byte) error {
	f.mu.Lock()
	if f.writeErr != nil || (f.failOn != nil && bytes.HasPrefix(data, f.failOn)) {
		f.mu.Unlock()
		return errors.New("fake: write failed")
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	f.pending = f.pending[:0]
	key := hex.EncodeToString(data)
	if seq := f.replies[key]; len(seq) > 0 {
		if seq[0] != nil {
			f.pending = append(f.pending, seq[0])
		}
		if len(seq) > 1 {
			f.replies[key] = seq[1:]
		}
	}
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(data)
	}
	return nil
}

func (f *fakeTransport) AwaitNotification(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, fmt.Errorf("fake: no reply within %s: %w", timeout, ErrTimeout)
	}
	r := f.pending[0]
	f.pending = f.pending[1:]
	return r, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// countPrefix returns how many writes start with prefix.
func (f *fakeTransport) countPrefix(prefix []byte) int {
	n := 0
	for _, w := range f.Writes() {
		if bytes.HasPrefix(w, prefix) {
			n++
		}
	}
	return n
}

// newTestClient returns a Client over a fake transport whose fixed delays
// are recorded instead of slept.
func newTestClient(t *fakeTransport) (*Client, *[]time.Duration) {
	c := New(t, DefaultOptions())
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}
