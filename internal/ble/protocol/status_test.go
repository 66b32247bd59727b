package protocol

import (
	"errors"
	"testing"
)

func TestNewStatusZero(t *testing.T) {
	s := NewStatus(0b00000000)
	if !s.OK() {
		t.Error("OK() = false, want true")
	}
	if s.Printing || s.CoverOpen || s.NoPaper || s.LowBattery || s.Overheated || s.Charging {
		t.Errorf("NewStatus(0) = %+v, want all flags false", s)
	}
	if s.String() != "ready" {
		t.Errorf("String() = %q, want %q", s.String(), "ready")
	}
}

func TestNewStatusCoverOpen(t *testing.T) {
	s := NewStatus(0b00000010)
	if s.OK() {
		t.Error("OK() = true, want false")
	}
	if !s.CoverOpen {
		t.Error("CoverOpen = false, want true")
	}
	if s.Printing || s.NoPaper || s.LowBattery || s.Overheated || s.Charging {
		t.Errorf("NewStatus(0x02) = %+v, want only CoverOpen", s)
	}
}

func TestNewStatusAllBytes(t *testing.T) {
	for v := 0; v < 256; v++ {
		raw := uint8(v)
		s := NewStatus(raw)
		if s.Raw != raw {
			t.Fatalf("Raw = %#x, want %#x", s.Raw, raw)
		}
		checks := []struct {
			name string
			got  bool
			bit  uint8
		}{
			{"Printing", s.Printing, 0x01},
			{"CoverOpen", s.CoverOpen, 0x02},
			{"NoPaper", s.NoPaper, 0x04},
			{"LowBattery", s.LowBattery, 0x08},
			{"Overheated", s.Overheated, 0x10},
			{"Charging", s.Charging, 0x20},
		}
		for _, c := range checks {
			if c.got != (raw&c.bit != 0) {
				t.Errorf("NewStatus(%#02x).%s = %v", raw, c.name, c.got)
			}
		}
		wantOK := !(s.CoverOpen || s.NoPaper || s.Overheated)
		if s.OK() != wantOK {
			t.Errorf("NewStatus(%#02x).OK() = %v, want %v", raw, s.OK(), wantOK)
		}
	}
}

func TestNewStatusUnknownBitsOnlyInRaw(t *testing.T) {
	s := NewStatus(0xC0)
	if !s.OK() {
		t.Error("unknown bits should not affect OK()")
	}
	if s.Raw != 0xC0 {
		t.Errorf("Raw = %#x, want 0xc0", s.Raw)
	}
}

func TestDecodeStatusUsesLastByte(t *testing.T) {
	s, err := DecodeStatus([]byte{0x00, 0x04})
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	if !s.NoPaper {
		t.Error("NoPaper = false, want true")
	}
	if _, err := DecodeStatus(nil); !errors.Is(err, ErrPrinter) {
		t.Errorf("DecodeStatus(nil) error = %v, want ErrPrinter", err)
	}
}
