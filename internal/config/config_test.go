package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testLoader(t *testing.T) (*Loader, string, string) {
	t.Helper()
	tmp := t.TempDir()
	global := filepath.Join(tmp, "global")
	project := filepath.Join(tmp, "work", "project")
	require.NoError(t, os.MkdirAll(project, 0o755))
	return &Loader{GlobalDir: global, StartDir: project}, global, project
}

func TestDefaults(t *testing.T) {
	l, _, _ := testLoader(t)
	cfg, err := l.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaudRate, cfg.SerialBaudRate)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultGraceWindow, cfg.GraceWindow)
	assert.Empty(t, cfg.PioPath)
	assert.Empty(t, l.Used())
}

func TestLayering(t *testing.T) {
	l, global, project := testLoader(t)

	writeFile(t, filepath.Join(global, "config.yaml"), `
default_board: rak4631
serial_port: /dev/ttyACM0
serial_baud_rate: 9600
grace_window: 2s
`)
	// Found by walking up from the project directory.
	writeFile(t, filepath.Join(filepath.Dir(project), ".meshflash.json"), `{
  "default_board": "heltec_v3",
  "default_variant": "repeater"
}`)

	cfg, err := l.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "heltec_v3", cfg.DefaultBoard, "local overrides global")
	assert.Equal(t, "repeater", cfg.DefaultVariant)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialPort, "global survives local merge")
	assert.Equal(t, 9600, cfg.SerialBaudRate)
	assert.Equal(t, 2*time.Second, cfg.GraceWindow)
	assert.Len(t, l.Used(), 2)
}

func TestEnvAndFlagsOverrideFiles(t *testing.T) {
	l, global, _ := testLoader(t)
	writeFile(t, filepath.Join(global, "config.toml"), "serial_port = \"/dev/ttyUSB0\"\nlog_level = \"warn\"\n")

	t.Setenv("MESHFLASH_LOG_LEVEL", "debug")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("port", "", "")
	fs.Int("baud", 0, "")
	require.NoError(t, fs.Parse([]string{"--port", "COM7"}))

	cfg, err := l.Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "COM7", cfg.SerialPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultBaudRate, cfg.SerialBaudRate, "unset flag does not mask defaults")
}

func TestPathsAreAbsolute(t *testing.T) {
	l, global, _ := testLoader(t)
	writeFile(t, filepath.Join(global, "config.yml"), "pio_path: relative/pio\n")

	cfg, err := l.Load(nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.PioPath))
}

func TestBrokenConfigIsAnError(t *testing.T) {
	l, global, _ := testLoader(t)
	writeFile(t, filepath.Join(global, "config.json"), "{not json")

	_, err := l.Load(nil)
	assert.Error(t, err)
}

func TestSavePreservesOtherKeys(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "meshflash", "config.yaml")
	writeFile(t, path, "pio_path: /opt/pio\n")

	require.NoError(t, Save(Selection{Board: "t114", Variant: "companion_ble", Port: "/dev/ttyACM1"}, path))

	l := &Loader{GlobalDir: filepath.Dir(path)}
	cfg, err := l.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "t114", cfg.DefaultBoard)
	assert.Equal(t, "companion_ble", cfg.DefaultVariant)
	assert.Equal(t, "/dev/ttyACM1", cfg.SerialPort)
	assert.Equal(t, "/opt/pio", filepath.ToSlash(cfg.PioPath))
}

func TestSaveCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new", "config.yaml")
	require.NoError(t, Save(Selection{Board: "rak4631"}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "default_board: rak4631")
}

func TestFindLocalConfig(t *testing.T) {
	tmp := t.TempDir()
	deep := filepath.Join(tmp, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Empty(t, FindLocalConfig(deep))

	writeFile(t, filepath.Join(tmp, "a", ".meshflash.yaml"), "log_level: debug\n")
	assert.Equal(t, filepath.Join(tmp, "a", ".meshflash.yaml"), FindLocalConfig(deep))
}

func TestSaveValuesWritesArbitraryKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveValues(map[string]any{"serial_baud_rate": 9600, "log_level": "debug"}, path))

	l := &Loader{GlobalDir: filepath.Dir(path)}
	cfg, err := l.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.SerialBaudRate)
	assert.Equal(t, "debug", cfg.LogLevel)
}
