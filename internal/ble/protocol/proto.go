// Package protocol implements the command encoding and reply decoding for the
// Fichero D11s (AiYin) label printer BLE protocol. Nothing here performs I/O.
package protocol

import (
	"bytes"
	"fmt"
)

// Frame is one outgoing command as written to the printer.
type Frame []byte

// Command prefixes
const (
	DLE = 0x10
	GS  = 0x1D
)

// AckByte is the single-byte success reply to the stop command.
const AckByte = 0xAA

// ackText is the ASCII success reply to setting commands.
var ackText = []byte("OK")

// Density is the print darkness level.
type Density uint8

const (
	DensityLight  Density = 0
	DensityMedium Density = 1
	DensityThick  Density = 2
)

// Valid reports whether d is a level the printer accepts.
func (d Density) Valid() bool { return d <= DensityThick }

func (d Density) String() string {
	switch d {
	case DensityLight:
		return "light"
	case DensityMedium:
		return "medium"
	case DensityThick:
		return "thick"
	}
	return fmt.Sprintf("Density(%d)", uint8(d))
}

// PaperType is the label stock sensing mode.
type PaperType uint8

const (
	PaperGap        PaperType = 0
	PaperBlackMark  PaperType = 1
	PaperContinuous PaperType = 2
)

// Valid reports whether p is a paper type the printer accepts.
func (p PaperType) Valid() bool { return p <= PaperContinuous }

func (p PaperType) String() string {
	switch p {
	case PaperGap:
		return "gap"
	case PaperBlackMark:
		return "black"
	case PaperContinuous:
		return "continuous"
	}
	return fmt.Sprintf("PaperType(%d)", uint8(p))
}

// Auto power-off bounds in minutes.
const (
	MinShutdownMinutes = 1
	MaxShutdownMinutes = 480
)

// StatusQuery returns the status request frame.
func StatusQuery() Frame {
	return Frame{DLE, 0xFF, 0x40}
}

// SetDensity returns the density command for d.
func SetDensity(d Density) (Frame, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("protocol: density must be 0, 1, or 2, got %d: %w", d, ErrInvalidArgument)
	}
	return Frame{DLE, 0xFF, 0x10, 0x00, byte(d)}, nil
}

// SetPaperType returns the paper type command for p.
func SetPaperType(p PaperType) (Frame, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("protocol: paper type must be 0, 1, or 2, got %d: %w", p, ErrInvalidArgument)
	}
	return Frame{DLE, 0xFF, 0x84, byte(p)}, nil
}

// SetShutdownMinutes returns the auto power-off command. minutes is sent
// big-endian.
func SetShutdownMinutes(minutes int) (Frame, error) {
	if minutes < MinShutdownMinutes || minutes > MaxShutdownMinutes {
		return nil, fmt.Errorf("protocol: shutdown must be %d-%d minutes, got %d: %w",
			MinShutdownMinutes, MaxShutdownMinutes, minutes, ErrInvalidArgument)
	}
	return Frame{DLE, 0xFF, 0x12, byte(minutes >> 8), byte(minutes)}, nil
}

// Wakeup returns the block of NUL bytes that brings the print engine out of
// standby.
func Wakeup() Frame {
	return make(Frame, 12)
}

// Enable arms the printer for the raster that follows.
func Enable() Frame {
	return Frame{DLE, 0xFF, 0xFE, 0x01}
}

// FormFeed advances the stock to the next label.
func FormFeed() Frame {
	return Frame{GS, 0x0C}
}

// StopPrint ends the job; the printer answers with AckByte once the label is out.
func StopPrint() Frame {
	return Frame{DLE, 0xFF, 0xFE, 0x45}
}

// FactoryReset restores the printer's default settings.
func FactoryReset() Frame {
	return Frame{DLE, 0xFF, 0x04}
}

// DensityQuery reads back the stored density.
func DensityQuery() Frame {
	return Frame{DLE, 0xFF, 0x11}
}

// ShutdownQuery reads back the auto power-off time.
func ShutdownQuery() Frame {
	return Frame{DLE, 0xFF, 0x13}
}

// RasterHeaderLen is the size of the GS v 0 header preceding raster data.
const RasterHeaderLen = 8

// Raster builds the GS v 0 raster image command:
//
//	1D 76 30 00 <rowBytes> 00 <rowsLo> <rowsHi> <data...>
//
// The row count is derived from len(data), which must be a whole multiple of
// rowBytes.
func Raster(rowBytes byte, data []byte) (Frame, error) {
	if rowBytes == 0 {
		return nil, fmt.Errorf("protocol: raster row width must be non-zero: %w", ErrPrinter)
	}
	if len(data) == 0 || len(data)%int(rowBytes) != 0 {
		return nil, fmt.Errorf("protocol: raster length %d is not a multiple of row width %d: %w",
			len(data), rowBytes, ErrPrinter)
	}
	rows := len(data) / int(rowBytes)
	if rows > 0xFFFF {
		return nil, fmt.Errorf("protocol: raster has %d rows, max %d: %w", rows, 0xFFFF, ErrPrinter)
	}
	f := make(Frame, 0, RasterHeaderLen+len(data))
	f = append(f, GS, 0x76, 0x30, 0x00, rowBytes, 0x00, byte(rows), byte(rows>>8))
	return append(f, data...), nil
}

// RasterRows returns the row count carried in a raster header.
func RasterRows(f Frame) (int, bool) {
	if len(f) < RasterHeaderLen || f[0] != GS || f[1] != 0x76 || f[2] != 0x30 {
		return 0, false
	}
	return int(f[6]) | int(f[7])<<8, true
}

// DecodeAck reports whether a reply is a success acknowledgement.
func DecodeAck(reply []byte) bool {
	if len(reply) == 0 {
		return false
	}
	return reply[0] == AckByte || bytes.HasPrefix(reply, ackText)
}
