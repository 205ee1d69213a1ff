package pio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// BaseConfigName is the project's PlatformIO configuration file.
	BaseConfigName = "platformio.ini"
	// CustomConfigName is the derived configuration written next to it.
	CustomConfigName = "platformio_custom.ini"

	customSuffix = "_custom"
)

// Synthesizer writes derived environments into a PlatformIO project.
type Synthesizer struct {
	WorkDir string
}

// CustomEnv is a materialized derived environment. Release it with Cleanup.
type CustomEnv struct {
	EnvName    string
	ConfigPath string
}

// DerivedName returns the environment name used for base with extra flags.
func DerivedName(base string) string {
	return base + customSuffix
}

// Section renders the derived environment section appended to the base
// configuration. It extends base and adds one -D line per flag after the
// base environment's own build flags.
func Section(base string, flags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[env:%s]\n", DerivedName(base))
	fmt.Fprintf(&b, "extends = env:%s\n", base)
	b.WriteString("build_flags = \n")
	fmt.Fprintf(&b, "    ${env:%s.build_flags}\n", base)
	for _, f := range flags {
		fmt.Fprintf(&b, "    -D%s\n", f)
	}
	return b.String()
}

// Materialize writes <WorkDir>/platformio_custom.ini holding the base
// configuration plus a section deriving from baseEnv. The base file is only
// read. The artifact is written to a temporary file and renamed into place.
func (s Synthesizer) Materialize(baseEnv string, flags []string) (*CustomEnv, error) {
	workDir, err := filepath.Abs(s.WorkDir)
	if err != nil {
		return nil, err
	}

	base, err := os.ReadFile(filepath.Join(workDir, BaseConfigName))
	if err != nil {
		return nil, fmt.Errorf("read base configuration: %w", err)
	}

	content := append(base, Section(baseEnv, flags)...)
	target := filepath.Join(workDir, CustomConfigName)

	tmp, err := os.CreateTemp(workDir, ".platformio_custom-*.ini")
	if err != nil {
		return nil, fmt.Errorf("create derived configuration: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("write derived configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("write derived configuration: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("install derived configuration: %w", err)
	}

	return &CustomEnv{EnvName: DerivedName(baseEnv), ConfigPath: target}, nil
}

// Cleanup removes the artifact if it is present. Failures are logged and
// otherwise ignored. Safe to call on a nil receiver and more than once.
func (c *CustomEnv) Cleanup(logger *log.Logger) {
	if c == nil {
		return
	}
	err := os.Remove(c.ConfigPath)
	switch {
	case err == nil:
		if logger != nil {
			logger.Debug("removed derived configuration", "path", c.ConfigPath)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		if logger != nil {
			logger.Warn("could not remove derived configuration", "path", c.ConfigPath, "err", err)
		}
	}
}
