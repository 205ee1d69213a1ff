// Package config loads meshflash settings from defaults, the global config
// file, a project-local .meshflash file and command-line flags, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultBaudRate    = 115200
	DefaultLogLevel    = "info"
	DefaultGraceWindow = 5 * time.Second
)

// Config holds all meshflash configuration.
type Config struct {
	// ResourcesDir holds the bundled toolchain (platformio/, python/) and
	// the MeshCore source tree.
	ResourcesDir string `mapstructure:"resources_dir"`
	// SourceDir overrides <ResourcesDir>/meshcore.
	SourceDir string `mapstructure:"source_dir"`
	// PioPath and PythonPath override toolchain detection.
	PioPath    string `mapstructure:"pio_path"`
	PythonPath string `mapstructure:"python_path"`

	SerialPort     string `mapstructure:"serial_port"`
	SerialBaudRate int    `mapstructure:"serial_baud_rate"`

	DefaultBoard   string `mapstructure:"default_board"`
	DefaultVariant string `mapstructure:"default_variant"`

	LogLevel    string        `mapstructure:"log_level"`
	GraceWindow time.Duration `mapstructure:"grace_window"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		ResourcesDir:   DefaultResourcesDir(),
		SerialBaudRate: DefaultBaudRate,
		LogLevel:       DefaultLogLevel,
		GraceWindow:    DefaultGraceWindow,
	}
}

// GlobalDir is ~/.config/meshflash.
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "meshflash")
}

// DefaultResourcesDir is where provisioning places the source tree and
// toolchain.
func DefaultResourcesDir() string {
	dir := GlobalDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "resources")
}

// StateDir holds history and the TUI log file.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "meshflash")
	}
	return filepath.Join(home, ".local", "state", "meshflash")
}

// fromViper decodes v into a Config and fills zero values from Defaults.
func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	def := Defaults()
	if cfg.ResourcesDir == "" {
		cfg.ResourcesDir = def.ResourcesDir
	}
	if cfg.SerialBaudRate <= 0 {
		cfg.SerialBaudRate = def.SerialBaudRate
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = def.GraceWindow
	}
	return cfg, cfg.Validate()
}

// Validate makes paths absolute.
func (c *Config) Validate() error {
	for _, p := range []*string{&c.ResourcesDir, &c.SourceDir, &c.PioPath, &c.PythonPath} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// Selection is the part of the config remembered between runs.
type Selection struct {
	Board   string
	Variant string
	Port    string
}

// Save merges the selection into the config file at path, creating it as
// YAML when absent. Other keys in an existing file are preserved.
func Save(sel Selection, path string) error {
	values := map[string]any{}
	if sel.Board != "" {
		values["default_board"] = sel.Board
	}
	if sel.Variant != "" {
		values["default_variant"] = sel.Variant
	}
	if sel.Port != "" {
		values["serial_port"] = sel.Port
	}
	return SaveValues(values, path)
}

// SaveValues writes the given keys into the config file at path.
func SaveValues(values map[string]any, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	for k, val := range values {
		v.Set(k, val)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return v.WriteConfigAs(path)
}

// Keys lists every recognised config key.
func Keys() []string {
	return []string{
		"resources_dir", "source_dir", "pio_path", "python_path",
		"serial_port", "serial_baud_rate", "default_board", "default_variant",
		"log_level", "grace_window",
	}
}

// GlobalConfigPath returns the existing global config file, or the YAML
// path a new one would be written to.
func GlobalConfigPath() string {
	dir := GlobalDir()
	if p := findIn(dir, "config."); p != "" {
		return p
	}
	return filepath.Join(dir, "config.yaml")
}
