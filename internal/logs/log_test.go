package logs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, parseLevel("debug"))
	assert.Equal(t, log.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, log.ErrorLevel, parseLevel("error"))
	assert.Equal(t, log.InfoLevel, parseLevel("bogus"))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "meshflash.log")

	l, err := New(Config{Output: OutputFile, File: path, Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, OutputFile, l.Output())

	l.Debug("spawned", "env", "Heltec_v3_repeater")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "spawned")
	assert.Contains(t, string(data), "Heltec_v3_repeater")
}

func TestUnknownOutputFallsBackToStderr(t *testing.T) {
	l, err := New(Config{Output: "journald"})
	require.NoError(t, err)
	assert.Equal(t, OutputStderr, l.Output())
	assert.NoError(t, l.Close())
}
