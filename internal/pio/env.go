package pio

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// BinDir returns the bin (or Scripts on Windows) directory of a Python
// virtual environment or install prefix.
func BinDir(prefix string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(prefix, "Scripts")
	}
	return filepath.Join(prefix, "bin")
}

// ExeName appends .exe on Windows.
func ExeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// processEnv returns base with dirs prepended to PATH, in order, ahead of
// whatever PATH already holds. Empty dirs are skipped.
func processEnv(base []string, dirs ...string) []string {
	var prefix []string
	for _, d := range dirs {
		if d != "" {
			prefix = append(prefix, d)
		}
	}
	if len(prefix) == 0 {
		return base
	}
	joined := strings.Join(prefix, string(os.PathListSeparator))

	result := make([]string, 0, len(base)+1)
	pathSet := false
	for _, e := range base {
		if key, value, ok := strings.Cut(e, "="); ok && isPathKey(key) && !pathSet {
			result = append(result, key+"="+joined+string(os.PathListSeparator)+value)
			pathSet = true
			continue
		}
		result = append(result, e)
	}
	if !pathSet {
		result = append(result, "PATH="+joined)
	}
	return result
}

// Windows environment keys are case-insensitive ("Path").
func isPathKey(key string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(key, "PATH")
	}
	return key == "PATH"
}

// toolDirs lists the directories that must win PATH lookup: the tool's own
// directory and the bundled Python's bin directory.
func toolDirs(toolPath, pythonPath string) []string {
	var dirs []string
	if toolPath != "" {
		dirs = append(dirs, filepath.Dir(toolPath))
	}
	if pythonPath != "" {
		if info, err := os.Stat(pythonPath); err == nil && info.IsDir() {
			dirs = append(dirs, BinDir(pythonPath))
		} else {
			dirs = append(dirs, filepath.Dir(pythonPath))
		}
	}
	return dirs
}
