package protocol

import (
	"fmt"
	"strings"
)

// Status bit positions in the reply to StatusQuery.
const (
	StatusPrinting   = 0x01
	StatusCoverOpen  = 0x02
	StatusNoPaper    = 0x04
	StatusLowBattery = 0x08
	StatusOverheated = 0x10
	StatusCharging   = 0x20

	faultMask = StatusCoverOpen | StatusNoPaper | StatusOverheated
)

// Status is one decoded status byte. Bits without a name survive only in Raw.
type Status struct {
	Raw        uint8
	Printing   bool
	CoverOpen  bool
	NoPaper    bool
	LowBattery bool
	Overheated bool
	Charging   bool
}

// NewStatus decodes a status byte.
func NewStatus(raw uint8) Status {
	return Status{
		Raw:        raw,
		Printing:   raw&StatusPrinting != 0,
		CoverOpen:  raw&StatusCoverOpen != 0,
		NoPaper:    raw&StatusNoPaper != 0,
		LowBattery: raw&StatusLowBattery != 0,
		Overheated: raw&StatusOverheated != 0,
		Charging:   raw&StatusCharging != 0,
	}
}

// DecodeStatus decodes a status reply. The status byte is the last byte of
// the reply.
func DecodeStatus(reply []byte) (Status, error) {
	if len(reply) == 0 {
		return Status{}, fmt.Errorf("protocol: empty status reply: %w", ErrPrinter)
	}
	return NewStatus(reply[len(reply)-1]), nil
}

// OK reports whether no fault bit is set. It depends on Raw alone.
func (s Status) OK() bool {
	return s.Raw&faultMask == 0
}

func (s Status) String() string {
	var parts []string
	if s.Printing {
		parts = append(parts, "printing")
	}
	if s.CoverOpen {
		parts = append(parts, "cover open")
	}
	if s.NoPaper {
		parts = append(parts, "no paper")
	}
	if s.LowBattery {
		parts = append(parts, "low battery")
	}
	if s.Overheated {
		parts = append(parts, "overheated")
	}
	if s.Charging {
		parts = append(parts, "charging")
	}
	if len(parts) == 0 {
		return "ready"
	}
	return strings.Join(parts, ", ")
}
