// Package raster packs 1-bit bitmaps into the row-major byte layout the
// print head consumes.
package raster

import (
	"fmt"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

// Print head geometry.
const (
	PrintheadPx = 96
	BytesPerRow = PrintheadPx / 8
	// MaxRows is the tallest label the image preparation step produces.
	MaxRows = 240
	// maxHeight is the largest row count the raster header can carry.
	maxHeight = 0xFFFF
)

// Bitmap is a 1-bit image. Dot reports whether the pixel at (x, y) is printed.
type Bitmap interface {
	Width() int
	Height() int
	BitDepth() int
	Dot(x, y int) bool
}

// Pack converts b into BytesPerRow bytes per row, most significant bit first,
// with no padding between rows.
func Pack(b Bitmap) ([]byte, error) {
	if b.BitDepth() != 1 {
		return nil, fmt.Errorf("raster: expected 1-bit bitmap, got %d-bit: %w", b.BitDepth(), protocol.ErrInvalidArgument)
	}
	if b.Width() != PrintheadPx {
		return nil, fmt.Errorf("raster: expected width %d, got %d: %w", PrintheadPx, b.Width(), protocol.ErrInvalidArgument)
	}
	h := b.Height()
	if h < 1 || h > maxHeight {
		return nil, fmt.Errorf("raster: height %d out of range 1-%d: %w", h, maxHeight, protocol.ErrInvalidArgument)
	}

	// Mono already holds the packed layout.
	if m, ok := b.(*Mono); ok {
		out := make([]byte, len(m.pix))
		copy(out, m.pix)
		return out, nil
	}

	out := make([]byte, h*BytesPerRow)
	for y := 0; y < h; y++ {
		row := out[y*BytesPerRow : (y+1)*BytesPerRow]
		for x := 0; x < PrintheadPx; x++ {
			if b.Dot(x, y) {
				row[x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return out, nil
}

// Encode packs b and wraps it in a raster command frame.
func Encode(b Bitmap) (protocol.Frame, error) {
	data, err := Pack(b)
	if err != nil {
		return nil, err
	}
	return protocol.Raster(BytesPerRow, data)
}
