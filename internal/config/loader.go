package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MESHFLASH_PIO_PATH.
const EnvPrefix = "MESHFLASH"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"resources": "resources_dir",
	"source":    "source_dir",
	"pio":       "pio_path",
	"python":    "python_path",
	"port":      "serial_port",
	"baud":      "serial_baud_rate",
	"board":     "default_board",
	"variant":   "default_variant",
	"log-level": "log_level",
	"grace":     "grace_window",
}

// Loader handles configuration loading from the layered sources.
type Loader struct {
	// GlobalDir holds config.{yml,yaml,json,toml}; defaults to ~/.config/meshflash.
	GlobalDir string
	// StartDir is where the search for a local .meshflash file begins;
	// defaults to the working directory.
	StartDir string

	v     *viper.Viper
	files []string
}

// NewLoader creates a loader with the default search locations.
func NewLoader() *Loader {
	wd, _ := os.Getwd()
	return &Loader{GlobalDir: GlobalDir(), StartDir: wd}
}

// Load reads every layer and binds flags (which may be nil).
func (l *Loader) Load(flags *pflag.FlagSet) (Config, error) {
	l.v = viper.New()
	l.files = nil
	l.setupDefaults()
	if err := l.loadGlobalConfig(); err != nil {
		return Config{}, err
	}
	if err := l.loadLocalConfig(); err != nil {
		return Config{}, err
	}
	l.bindEnv()
	l.bindFlags(flags)

	return fromViper(l.v)
}

// Used returns the config files that were read, lowest precedence first.
func (l *Loader) Used() []string {
	return l.files
}

func (l *Loader) setupDefaults() {
	def := Defaults()
	l.v.SetDefault("resources_dir", def.ResourcesDir)
	l.v.SetDefault("serial_baud_rate", def.SerialBaudRate)
	l.v.SetDefault("log_level", def.LogLevel)
	l.v.SetDefault("grace_window", def.GraceWindow)
}

func (l *Loader) loadGlobalConfig() error {
	path := findIn(l.GlobalDir, "config.")
	if path == "" {
		return nil
	}
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read global config %s: %w", path, err)
	}
	l.files = append(l.files, path)
	return nil
}

// loadLocalConfig merges the nearest .meshflash file over the global one.
func (l *Loader) loadLocalConfig() error {
	if l.StartDir == "" {
		return nil
	}
	path := FindLocalConfig(l.StartDir)
	if path == "" {
		return nil
	}
	l.v.SetConfigFile(path)
	if err := l.v.MergeInConfig(); err != nil {
		return fmt.Errorf("read local config %s: %w", path, err)
	}
	l.files = append(l.files, path)
	return nil
}

// bindEnv exposes every key as MESHFLASH_<KEY>.
func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix(EnvPrefix)
	for _, key := range Keys() {
		_ = l.v.BindEnv(key)
	}
}

// bindFlags binds only flags the user actually set so unset flag defaults
// never mask file values.
func (l *Loader) bindFlags(flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		_ = l.v.BindPFlag(key, f)
	}
}
