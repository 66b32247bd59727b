package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/fichero/internal/ble/protocol"
)

// EnvAddress names the environment variable holding the printer address.
const EnvAddress = "FICHERO_ADDR"

// Config holds all application configuration.
type Config struct {
	Address  string      `yaml:"address"`
	LogLevel string      `yaml:"log_level"`
	LogFile  string      `yaml:"log_file"` // empty logs to stderr
	BLE      BLEConfig   `yaml:"ble"`
	Print    PrintConfig `yaml:"print"`
	Info     InfoConfig  `yaml:"info"`
}

// BLEConfig holds discovery and transport settings.
type BLEConfig struct {
	ScanTimeout   time.Duration `yaml:"scan_timeout"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	ChunkSize     int           `yaml:"chunk_size"`
	NamePrefixes  []string      `yaml:"name_prefixes"`
	ServiceUUID   string        `yaml:"service_uuid"`
	WriteUUID     string        `yaml:"write_uuid"`
	NotifyUUID    string        `yaml:"notify_uuid"`
}

// PrintConfig holds defaults for print jobs.
type PrintConfig struct {
	Density     int     `yaml:"density"` // 0 light, 1 medium, 2 thick
	Paper       string  `yaml:"paper"`   // "gap", "black" or "continuous"
	Copies      int     `yaml:"copies"`
	MaxRows     int     `yaml:"max_rows"`
	FontSize    float64 `yaml:"font_size"`
	LabelHeight int     `yaml:"label_height"`
}

// InfoConfig selects the fields listed by the info command.
type InfoConfig struct {
	Fields    []string `yaml:"fields"`
	AllFields []string `yaml:"all_fields"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fichero")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		BLE: BLEConfig{
			ScanTimeout:   10 * time.Second,
			NotifyTimeout: 2 * time.Second,
			ChunkSize:     protocol.MaxWriteBytes,
			NamePrefixes:  []string{"FICHERO", "D11s"},
		},
		Print: PrintConfig{
			Density:     int(protocol.DensityMedium),
			Paper:       "gap",
			Copies:      1,
			MaxRows:     240,
			FontSize:    24,
			LabelHeight: 240,
		},
		Info: InfoConfig{
			Fields:    queryNames(protocol.IdentityQueries()),
			AllFields: queryNames(protocol.ExtendedQueries()),
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in log_file is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.LogFile = expandTilde(cfg.LogFile)

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. Any other read or parse failure is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if c.BLE.ScanTimeout <= 0 {
		return fmt.Errorf("ble.scan_timeout must be > 0")
	}
	if c.BLE.NotifyTimeout <= 0 {
		return fmt.Errorf("ble.notify_timeout must be > 0")
	}
	if c.BLE.ChunkSize < protocol.RasterHeaderLen || c.BLE.ChunkSize > protocol.MaxWriteBytes {
		return fmt.Errorf("ble.chunk_size must be %d-%d, got %d", protocol.RasterHeaderLen, protocol.MaxWriteBytes, c.BLE.ChunkSize)
	}
	if len(c.BLE.NamePrefixes) == 0 {
		return fmt.Errorf("ble.name_prefixes must not be empty")
	}

	if c.Print.Density < 0 || c.Print.Density > int(protocol.DensityThick) {
		return fmt.Errorf("print.density must be 0, 1, or 2, got %d", c.Print.Density)
	}
	if _, err := c.PaperType(); err != nil {
		return err
	}
	if c.Print.Copies < 1 {
		return fmt.Errorf("print.copies must be >= 1, got %d", c.Print.Copies)
	}
	if c.Print.MaxRows < 1 || c.Print.MaxRows > 0xFFFF {
		return fmt.Errorf("print.max_rows must be 1-65535, got %d", c.Print.MaxRows)
	}
	if c.Print.FontSize <= 0 {
		return fmt.Errorf("print.font_size must be > 0")
	}
	if c.Print.LabelHeight < 1 {
		return fmt.Errorf("print.label_height must be > 0")
	}

	if _, err := lookupQueries("info.fields", c.Info.Fields); err != nil {
		return err
	}
	if _, err := lookupQueries("info.all_fields", c.Info.AllFields); err != nil {
		return err
	}
	if err := checkSuperset(c.Info.Fields, c.Info.AllFields); err != nil {
		return err
	}

	return nil
}

// PaperType parses print.paper.
func (c *Config) PaperType() (protocol.PaperType, error) {
	p, err := protocol.ParsePaperType(c.Print.Paper)
	if err != nil {
		return 0, fmt.Errorf("print.paper: %w", err)
	}
	return p, nil
}

// InfoQueries resolves info.fields and info.all_fields to their queries.
func (c *Config) InfoQueries() (fields, all []protocol.InfoQuery, err error) {
	if fields, err = lookupQueries("info.fields", c.Info.Fields); err != nil {
		return nil, nil, err
	}
	if all, err = lookupQueries("info.all_fields", c.Info.AllFields); err != nil {
		return nil, nil, err
	}
	return fields, all, nil
}

// ResolveAddress picks the printer address: the flag value first, then
// FICHERO_ADDR, then the config file. Empty means scan.
func (c *Config) ResolveAddress(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(os.Getenv(EnvAddress)); env != "" {
		return env
	}
	return c.Address
}

// ParseLogLevel maps a log_level value to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be debug, info, warn, or error, got %q", s)
	}
}

func lookupQueries(key string, names []string) ([]protocol.InfoQuery, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%s must not be empty", key)
	}
	out := make([]protocol.InfoQuery, 0, len(names))
	for _, name := range names {
		q, ok := protocol.LookupInfoQuery(name)
		if !ok {
			return nil, fmt.Errorf("%s: unknown field %q (known: %s)", key, name, strings.Join(protocol.InfoQueryNames(), ", "))
		}
		out = append(out, q)
	}
	return out, nil
}

// checkSuperset requires all to list every name in fields plus at least one more.
func checkSuperset(fields, all []string) error {
	extra := make(map[string]bool, len(all))
	for _, name := range all {
		extra[name] = true
	}
	for _, name := range fields {
		if !extra[name] {
			return fmt.Errorf("info.all_fields must include every info.fields entry, missing %q", name)
		}
		delete(extra, name)
	}
	if len(extra) == 0 {
		return fmt.Errorf("info.all_fields must list more fields than info.fields")
	}
	return nil
}

func queryNames(qs []protocol.InfoQuery) []string {
	names := make([]string, len(qs))
	for i, q := range qs {
		names[i] = q.Name
	}
	return names
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
