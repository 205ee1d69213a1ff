// Package resources locates the firmware source tree, the PlatformIO
// executable and the bundled Python runtime. It never downloads anything;
// provisioning happens elsewhere.
package resources

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/buckleypaul/meshflash/internal/config"
	"github.com/buckleypaul/meshflash/internal/pio"
)

// Paths holds the resolved locations. Any field may be empty when nothing
// was found.
type Paths struct {
	Resources string
	Source    string // directory holding platformio.ini
	Tool      string // pio executable
	Python    string // python prefix; empty means system python
}

// Health tracks which of the required components are usable.
type Health struct {
	SourceOK bool
	ToolOK   bool
	PythonOK bool
}

// OK reports whether builds can run.
func (h Health) OK() bool {
	return h.SourceOK && h.ToolOK && h.PythonOK
}

var (
	homeDir    = os.UserHomeDir
	workingDir = os.Getwd
	lookPath   = exec.LookPath
)

// Resolve applies the detection order for each component: explicit config
// first, then the resources directory, then per-user and system locations.
func Resolve(cfg config.Config) Paths {
	p := Paths{Resources: cfg.ResourcesDir}
	p.Source = resolveSource(cfg)
	p.Tool = resolveTool(cfg)
	p.Python = resolvePython(cfg)
	return p
}

// resolveSource: source_dir -> <resources>/meshcore -> a checkout containing
// the working directory.
func resolveSource(cfg config.Config) string {
	if cfg.SourceDir != "" {
		return cfg.SourceDir
	}
	if cfg.ResourcesDir != "" {
		dir := filepath.Join(cfg.ResourcesDir, "meshcore")
		if hasBaseConfig(dir) {
			return dir
		}
	}
	if wd, err := workingDir(); err == nil {
		if dir := DetectSource(wd); dir != "" {
			return dir
		}
	}
	if cfg.ResourcesDir != "" {
		return filepath.Join(cfg.ResourcesDir, "meshcore")
	}
	return ""
}

// DetectSource walks up from startDir looking for a directory with a
// platformio.ini.
func DetectSource(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		if hasBaseConfig(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func hasBaseConfig(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, pio.BaseConfigName))
	return err == nil && !info.IsDir()
}

func resolveTool(cfg config.Config) string {
	if cfg.PioPath != "" {
		return cfg.PioPath
	}

	var candidates []string
	if cfg.ResourcesDir != "" {
		candidates = append(candidates, penvTool(filepath.Join(cfg.ResourcesDir, "platformio")))
	}
	if home, err := homeDir(); err == nil {
		candidates = append(candidates, penvTool(filepath.Join(home, ".platformio")))
	}
	for _, c := range candidates {
		if isFile(c) {
			return c
		}
	}

	for _, name := range []string{"pio", "platformio"} {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// penvTool is the pio executable inside a PlatformIO core directory.
func penvTool(core string) string {
	return filepath.Join(pio.BinDir(filepath.Join(core, "penv")), pio.ExeName("pio"))
}

func resolvePython(cfg config.Config) string {
	if cfg.PythonPath != "" {
		return cfg.PythonPath
	}
	if cfg.ResourcesDir != "" {
		prefix := filepath.Join(cfg.ResourcesDir, "python")
		if isFile(pythonExe(prefix)) {
			return prefix
		}
	}
	return ""
}

func pythonExe(prefix string) string {
	return filepath.Join(pio.BinDir(prefix), pio.ExeName("python3"))
}

// Check inspects the resolved paths.
func (p Paths) Check() Health {
	var h Health
	h.SourceOK = p.Source != "" && hasBaseConfig(p.Source)
	h.ToolOK = p.Tool != "" && isFile(p.Tool)

	switch {
	case p.Python == "":
		_, err := lookPath(pio.ExeName("python3"))
		h.PythonOK = err == nil
	case isFile(p.Python):
		h.PythonOK = true
	default:
		h.PythonOK = isFile(pythonExe(p.Python))
	}
	return h
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
