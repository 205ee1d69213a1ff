package serial

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

func TestListPortsMarksDevBoards(t *testing.T) {
	orig := enumerate
	defer func() { enumerate = orig }()
	enumerate = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "EA60", Product: "CP2102 USB to UART"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "abcd", PID: "0001", Product: "Espressif USB JTAG"},
			{Name: "/dev/ttyS0"},
		}, nil
	}

	ports, err := ListPorts()
	require.NoError(t, err)
	require.Len(t, ports, 3)

	assert.True(t, ports[0].LikelyDevBoard)
	assert.Equal(t, "10c4", ports[0].VID)
	assert.True(t, ports[1].LikelyDevBoard)
	assert.False(t, ports[2].LikelyDevBoard)

	boards := DevBoards(ports)
	assert.Len(t, boards, 2)
}

func TestListPortsError(t *testing.T) {
	orig := enumerate
	defer func() { enumerate = orig }()
	enumerate = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no permission")
	}

	_, err := ListPorts()
	assert.EqualError(t, err, "no permission")
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		port PortInfo
		want string
	}{
		{PortInfo{Name: "COM3", Product: "CP2102", PID: "ea60"}, "COM3 (CP2102 - ea60)"},
		{PortInfo{Name: "COM3", Product: "CP2102"}, "COM3 (CP2102)"},
		{PortInfo{Name: "COM4", VID: "1a86"}, "COM4 (1a86:unknown)"},
		{PortInfo{Name: "COM4", VID: "1a86", PID: "7523"}, "COM4 (1a86:7523)"},
		{PortInfo{Name: "/dev/ttyS0"}, "/dev/ttyS0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.port.DisplayName())
	}
}

// fakePort embeds serial.Port so only the methods the monitor uses need
// implementing.
type fakePort struct {
	serial.Port

	mu       sync.Mutex
	written  []byte
	lines    []string
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{incoming: make(chan []byte, 4), closed: make(chan struct{})}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	select {
	case data := <-p.incoming:
		return copy(buf, data), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, data...)
	return len(data), nil
}

func (p *fakePort) SetDTR(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, map[bool]string{true: "DTR+", false: "DTR-"}[level])
	return nil
}

func (p *fakePort) SetRTS(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, map[bool]string{true: "RTS+", false: "RTS-"}[level])
	return nil
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func withFakeOpener(t *testing.T, port *fakePort) *serial.Mode {
	t.Helper()
	orig := opener
	t.Cleanup(func() { opener = orig })
	var got serial.Mode
	opener = func(name string, mode *serial.Mode) (serial.Port, error) {
		got = *mode
		return port, nil
	}
	return &got
}

func TestMonitorLifecycle(t *testing.T) {
	port := newFakePort()
	mode := withFakeOpener(t, port)
	m := NewMonitor()

	_, ok := m.Info()
	assert.False(t, ok)
	assert.ErrorIs(t, m.Write([]byte("x")), ErrNotConnected)
	assert.ErrorIs(t, m.Reset(), ErrNotConnected)

	require.NoError(t, m.Connect("/dev/ttyUSB0", 0))
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.True(t, m.Connected())

	info, ok := m.Info()
	require.True(t, ok)
	assert.Equal(t, ConnectionInfo{Port: "/dev/ttyUSB0", BaudRate: DefaultBaudRate, Connected: true}, info)

	port.incoming <- []byte("hello\n")
	select {
	case got := <-m.DataChan():
		assert.Equal(t, "hello\n", got)
	case <-time.After(2 * time.Second):
		t.Fatal("no data received")
	}

	require.NoError(t, m.Write([]byte("ver\r\n")))
	port.mu.Lock()
	assert.Equal(t, "ver\r\n", string(port.written))
	port.mu.Unlock()

	m.Disconnect()
	assert.False(t, m.Connected())
	m.Disconnect()
}

func TestMonitorReset(t *testing.T) {
	port := newFakePort()
	withFakeOpener(t, port)
	m := NewMonitor()
	require.NoError(t, m.Connect("COM5", 921600))
	defer m.Disconnect()

	require.NoError(t, m.Reset())
	port.mu.Lock()
	defer port.mu.Unlock()
	assert.Equal(t, []string{"DTR-", "RTS-", "DTR+", "RTS+", "DTR-", "RTS-"}, port.lines)
}

func TestMonitorDisconnectsWhenPortFails(t *testing.T) {
	port := newFakePort()
	withFakeOpener(t, port)
	m := NewMonitor()
	require.NoError(t, m.Connect("/dev/ttyACM0", 115200))

	port.Close()
	assert.Eventually(t, func() bool { return !m.Connected() }, 2*time.Second, 10*time.Millisecond)
}

func TestCommonBaudRatesIncludeDefault(t *testing.T) {
	assert.Contains(t, CommonBaudRates, DefaultBaudRate)
}
