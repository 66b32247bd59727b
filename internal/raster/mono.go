package raster

import "fmt"

// Mono is a print-head-wide packed 1-bit bitmap. A set bit prints black.
type Mono struct {
	pix    []byte
	height int
}

// NewMono returns a blank bitmap of PrintheadPx by height pixels.
func NewMono(height int) *Mono {
	if height < 0 {
		height = 0
	}
	return &Mono{pix: make([]byte, height*BytesPerRow), height: height}
}

func (m *Mono) Width() int    { return PrintheadPx }
func (m *Mono) Height() int   { return m.height }
func (m *Mono) BitDepth() int { return 1 }

// Dot reports whether (x, y) prints. Out-of-range pixels are blank.
func (m *Mono) Dot(x, y int) bool {
	if x < 0 || x >= PrintheadPx || y < 0 || y >= m.height {
		return false
	}
	return m.pix[y*BytesPerRow+x/8]&(0x80>>uint(x%8)) != 0
}

// Set marks (x, y) as printed or blank. Out-of-range pixels are ignored.
func (m *Mono) Set(x, y int, black bool) {
	if x < 0 || x >= PrintheadPx || y < 0 || y >= m.height {
		return
	}
	i, mask := y*BytesPerRow+x/8, byte(0x80>>uint(x%8))
	if black {
		m.pix[i] |= mask
	} else {
		m.pix[i] &^= mask
	}
}

func (m *Mono) String() string {
	return fmt.Sprintf("Mono(%dx%d)", PrintheadPx, m.height)
}
