package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// SettingKind enumerates the persistent printer settings.
type SettingKind int

const (
	SettingDensity SettingKind = iota
	SettingShutdown
	SettingPaper
)

func (k SettingKind) String() string {
	switch k {
	case SettingDensity:
		return "density"
	case SettingShutdown:
		return "shutdown"
	case SettingPaper:
		return "paper"
	}
	return fmt.Sprintf("SettingKind(%d)", int(k))
}

// Setting is a validated setting change. Build one with DensitySetting,
// PaperSetting, ShutdownSetting or ParseSetting.
type Setting struct {
	Kind  SettingKind
	Value int
}

// DensitySetting validates d.
func DensitySetting(d Density) (Setting, error) {
	if _, err := SetDensity(d); err != nil {
		return Setting{}, err
	}
	return Setting{Kind: SettingDensity, Value: int(d)}, nil
}

// PaperSetting validates p.
func PaperSetting(p PaperType) (Setting, error) {
	if _, err := SetPaperType(p); err != nil {
		return Setting{}, err
	}
	return Setting{Kind: SettingPaper, Value: int(p)}, nil
}

// ShutdownSetting validates minutes.
func ShutdownSetting(minutes int) (Setting, error) {
	if _, err := SetShutdownMinutes(minutes); err != nil {
		return Setting{}, err
	}
	return Setting{Kind: SettingShutdown, Value: minutes}, nil
}

// Frame encodes the setting command.
func (s Setting) Frame() (Frame, error) {
	switch s.Kind {
	case SettingDensity:
		if s.Value < 0 || s.Value > 0xFF {
			return nil, fmt.Errorf("protocol: density must be 0, 1, or 2, got %d: %w", s.Value, ErrInvalidArgument)
		}
		return SetDensity(Density(s.Value))
	case SettingPaper:
		if s.Value < 0 || s.Value > 0xFF {
			return nil, fmt.Errorf("protocol: paper type must be 0, 1, or 2, got %d: %w", s.Value, ErrInvalidArgument)
		}
		return SetPaperType(PaperType(s.Value))
	case SettingShutdown:
		return SetShutdownMinutes(s.Value)
	}
	return nil, fmt.Errorf("protocol: unknown setting %v: %w", s.Kind, ErrInvalidArgument)
}

func (s Setting) String() string {
	switch s.Kind {
	case SettingDensity:
		return fmt.Sprintf("density=%d", s.Value)
	case SettingPaper:
		return fmt.Sprintf("paper=%s", PaperType(s.Value))
	case SettingShutdown:
		return fmt.Sprintf("shutdown=%dmin", s.Value)
	}
	return fmt.Sprintf("%v=%d", s.Kind, s.Value)
}

var paperNames = map[string]PaperType{
	"gap":        PaperGap,
	"black":      PaperBlackMark,
	"continuous": PaperContinuous,
}

// ParsePaperType accepts gap, black, continuous or a number 0-2.
func ParsePaperType(value string) (PaperType, error) {
	if p, ok := paperNames[strings.ToLower(value)]; ok {
		return p, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > int(PaperContinuous) {
		return 0, fmt.Errorf("protocol: paper must be gap, black, continuous, or 0-2, got %q: %w", value, ErrInvalidArgument)
	}
	return PaperType(n), nil
}

// ParseSetting resolves a setting name and textual value into a validated Setting.
func ParseSetting(name, value string) (Setting, error) {
	switch strings.ToLower(name) {
	case "density":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > int(DensityThick) {
			return Setting{}, fmt.Errorf("protocol: density must be 0, 1, or 2, got %q: %w", value, ErrInvalidArgument)
		}
		return DensitySetting(Density(n))
	case "shutdown":
		n, err := strconv.Atoi(value)
		if err != nil {
			return Setting{}, fmt.Errorf("protocol: shutdown must be %d-%d minutes, got %q: %w",
				MinShutdownMinutes, MaxShutdownMinutes, value, ErrInvalidArgument)
		}
		return ShutdownSetting(n)
	case "paper":
		p, err := ParsePaperType(value)
		if err != nil {
			return Setting{}, err
		}
		return PaperSetting(p)
	}
	return Setting{}, fmt.Errorf("protocol: unknown setting %q (supported: density, shutdown, paper): %w", name, ErrInvalidArgument)
}
