package config

import (
	"os"
	"path/filepath"
)

var extensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig walks up from dir looking for a .meshflash.{yml,yaml,json,toml}.
func FindLocalConfig(dir string) string {
	for {
		if p := findIn(dir, ".meshflash."); p != "" {
			return p
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func findIn(dir, prefix string) string {
	if dir == "" {
		return ""
	}
	for _, ext := range extensions {
		path := filepath.Join(dir, prefix+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
