package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// FieldKind selects how an info reply is decoded.
type FieldKind int

const (
	// FieldText is an ASCII identifier such as a model name or version.
	FieldText FieldKind = iota
	// FieldCounter is a single-byte value; the last reply byte is used.
	FieldCounter
	// FieldWord is a big-endian 16-bit value.
	FieldWord
	// FieldRaw is shown as hex.
	FieldRaw
	// FieldList is a pipe-delimited text reply spread over Subfields.
	FieldList
)

// InfoQuery is one info request and the rule for decoding its reply.
type InfoQuery struct {
	Name      string
	Command   Frame
	Kind      FieldKind
	Subfields []string // FieldList only
}

// InfoField is one decoded entry. Raw keeps the reply bytes it came from.
type InfoField struct {
	Name  string
	Value string
	Raw   []byte
}

// Info is an ordered set of decoded fields. Order is query order.
type Info struct {
	fields []InfoField
	index  map[string]int
}

// Set adds a field, or replaces the value of an existing field in place.
func (in *Info) Set(f InfoField) {
	if in.index == nil {
		in.index = make(map[string]int)
	}
	if i, ok := in.index[f.Name]; ok {
		in.fields[i] = f
		return
	}
	in.index[f.Name] = len(in.fields)
	in.fields = append(in.fields, f)
}

// Get returns the field with the given name.
func (in *Info) Get(name string) (InfoField, bool) {
	i, ok := in.index[name]
	if !ok {
		return InfoField{}, false
	}
	return in.fields[i], true
}

// Fields returns the fields in insertion order.
func (in *Info) Fields() []InfoField {
	out := make([]InfoField, len(in.fields))
	copy(out, in.fields)
	return out
}

// Len returns the number of fields.
func (in *Info) Len() int { return len(in.fields) }

// Info query names accepted by LookupInfoQuery.
const (
	InfoModel    = "model"
	InfoFirmware = "firmware"
	InfoSerial   = "serial"
	InfoBoot     = "boot_firmware"
	InfoBattery  = "battery"
	InfoDensity  = "density"
	InfoShutdown = "shutdown_minutes"
	InfoDevice   = "device"
)

// knownQueries builds the query table. Every call returns fresh frames.
func knownQueries() []InfoQuery {
	return []InfoQuery{
		{Name: InfoModel, Command: Frame{DLE, 0xFF, 0x20, 0xF0}, Kind: FieldText},
		{Name: InfoFirmware, Command: Frame{DLE, 0xFF, 0x20, 0xF1}, Kind: FieldText},
		{Name: InfoSerial, Command: Frame{DLE, 0xFF, 0x20, 0xF2}, Kind: FieldText},
		{Name: InfoBoot, Command: Frame{DLE, 0xFF, 0x20, 0xEF}, Kind: FieldText},
		{Name: InfoBattery, Command: Frame{DLE, 0xFF, 0x50, 0xF1}, Kind: FieldCounter},
		{Name: InfoDensity, Command: DensityQuery(), Kind: FieldCounter},
		{Name: InfoShutdown, Command: ShutdownQuery(), Kind: FieldWord},
		{
			Name:      InfoDevice,
			Command:   Frame{DLE, 0xFF, 0x70},
			Kind:      FieldList,
			Subfields: []string{"bt_name", "mac_classic", "mac_ble", "firmware_build", "serial_full", "battery_level"},
		},
	}
}

func queriesNamed(names ...string) []InfoQuery {
	out := make([]InfoQuery, 0, len(names))
	for _, name := range names {
		if q, ok := LookupInfoQuery(name); ok {
			out = append(out, q)
		}
	}
	return out
}

// IdentityQueries is the default field set for a short info listing.
func IdentityQueries() []InfoQuery {
	return queriesNamed(InfoModel, InfoFirmware, InfoBoot, InfoSerial, InfoBattery)
}

// ExtendedQueries is the default full field set; it includes every identity query.
func ExtendedQueries() []InfoQuery {
	return append(IdentityQueries(), queriesNamed(InfoDensity, InfoShutdown, InfoDevice)...)
}

// LookupInfoQuery finds a known query by name.
func LookupInfoQuery(name string) (InfoQuery, bool) {
	for _, q := range knownQueries() {
		if q.Name == name {
			return q, true
		}
	}
	return InfoQuery{}, false
}

// InfoQueryNames lists the names accepted by LookupInfoQuery.
func InfoQueryNames() []string {
	qs := knownQueries()
	names := make([]string, len(qs))
	for i, q := range qs {
		names[i] = q.Name
	}
	return names
}

// DecodeInfo decodes the reply to q. Decoding is best effort: short or
// oversized replies still produce fields, and Raw always holds the reply.
func DecodeInfo(q InfoQuery, reply []byte) []InfoField {
	raw := append([]byte(nil), reply...)
	if q.Kind != FieldList {
		return []InfoField{{Name: q.Name, Value: DecodeInfoValue(q.Kind, reply), Raw: raw}}
	}

	parts := strings.Split(decodeText(reply), "|")
	fields := make([]InfoField, 0, len(parts))
	for i, p := range parts {
		name := fmt.Sprintf("%s_%d", q.Name, i)
		if i < len(q.Subfields) {
			name = q.Subfields[i]
		}
		fields = append(fields, InfoField{Name: name, Value: strings.TrimSpace(p), Raw: raw})
	}
	return fields
}

// DecodeInfoValue renders a single-field reply as text.
func DecodeInfoValue(kind FieldKind, reply []byte) string {
	if len(reply) == 0 {
		return ""
	}
	switch kind {
	case FieldCounter:
		return strconv.Itoa(int(reply[len(reply)-1]))
	case FieldWord:
		if len(reply) < 2 {
			return strconv.Itoa(int(reply[0]))
		}
		return strconv.Itoa(int(reply[0])<<8 | int(reply[1]))
	case FieldRaw:
		return hex.EncodeToString(reply)
	}
	return decodeText(reply)
}

func decodeText(reply []byte) string {
	b := bytes.Trim(reply, "\x00")
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "�"))
}
