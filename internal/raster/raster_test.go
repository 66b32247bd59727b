package raster

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

// gridBitmap is a Bitmap backed by a bool grid, independent of Mono's packing.
type gridBitmap struct {
	w, h, depth int
	dots        map[[2]int]bool
}

func (g *gridBitmap) Width() int        { return g.w }
func (g *gridBitmap) Height() int       { return g.h }
func (g *gridBitmap) BitDepth() int     { return g.depth }
func (g *gridBitmap) Dot(x, y int) bool { return g.dots[[2]int{x, y}] }

func TestPackSize(t *testing.T) {
	for _, h := range []int{1, 2, 17, 239, MaxRows} {
		data, err := Pack(NewMono(h))
		if err != nil {
			t.Fatalf("Pack(height %d) error = %v", h, err)
		}
		if len(data) != h*BytesPerRow {
			t.Errorf("Pack(height %d) len = %d, want %d", h, len(data), h*BytesPerRow)
		}
	}
}

func TestPackMSBFirst(t *testing.T) {
	g := &gridBitmap{w: PrintheadPx, h: 2, depth: 1, dots: map[[2]int]bool{
		{0, 0}:  true,
		{7, 0}:  true,
		{8, 0}:  true,
		{95, 1}: true,
	}}
	data, err := Pack(g)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	want := make([]byte, 2*BytesPerRow)
	want[0] = 0x81
	want[1] = 0x80
	want[BytesPerRow+11] = 0x01
	if !bytes.Equal(data, want) {
		t.Errorf("Pack() =\n  got  %x\n  want %x", data, want)
	}
}

func TestPackMonoMatchesGeneric(t *testing.T) {
	m := NewMono(3)
	g := &gridBitmap{w: PrintheadPx, h: 3, depth: 1, dots: map[[2]int]bool{}}
	for _, p := range [][2]int{{0, 0}, {13, 1}, {50, 2}, {95, 2}} {
		m.Set(p[0], p[1], true)
		g.dots[p] = true
	}
	a, err := Pack(m)
	if err != nil {
		t.Fatalf("Pack(mono) error = %v", err)
	}
	b, err := Pack(g)
	if err != nil {
		t.Fatalf("Pack(grid) error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Mono packing %x differs from generic %x", a, b)
	}
}

func TestPackRejects(t *testing.T) {
	tests := []struct {
		name string
		b    Bitmap
	}{
		{"narrow", &gridBitmap{w: 95, h: 10, depth: 1}},
		{"wide", &gridBitmap{w: 384, h: 10, depth: 1}},
		{"8-bit", &gridBitmap{w: PrintheadPx, h: 10, depth: 8}},
		{"empty", NewMono(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Pack(tt.b); !errors.Is(err, protocol.ErrInvalidArgument) {
				t.Errorf("Pack() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestEncode96x240(t *testing.T) {
	f, err := Encode(NewMono(240))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	header := []byte{0x1D, 0x76, 0x30, 0x00, 0x0C, 0x00, 0xF0, 0x00}
	if !bytes.Equal(f[:protocol.RasterHeaderLen], header) {
		t.Errorf("header = % X, want % X", f[:protocol.RasterHeaderLen], header)
	}
	if got := len(f) - protocol.RasterHeaderLen; got != 2880 {
		t.Errorf("raster len = %d, want 2880", got)
	}
}

func TestMonoSetAndDot(t *testing.T) {
	m := NewMono(4)
	m.Set(10, 3, true)
	if !m.Dot(10, 3) {
		t.Error("Dot(10, 3) = false after Set")
	}
	m.Set(10, 3, false)
	if m.Dot(10, 3) {
		t.Error("Dot(10, 3) = true after clear")
	}
	m.Set(200, 0, true) // ignored
	if m.Dot(-1, 0) || m.Dot(0, 99) {
		t.Error("out-of-range Dot should be false")
	}
}
