// Package serial lists serial ports and runs a line monitor on one of them.
// The build orchestrator never opens ports; it only receives a port name.
package serial

import (
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the firmware's console speed.
const DefaultBaudRate = 115200

// CommonBaudRates lists the speeds offered by the monitor UI.
var CommonBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// ErrNotConnected is returned by port operations on a closed monitor.
var ErrNotConnected = errors.New("no serial port connected")

// ConnectionInfo describes the open port.
type ConnectionInfo struct {
	Port      string
	BaudRate  int
	Connected bool
}

// opener is replaced in tests.
var opener = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// Monitor owns at most one open port and forwards what it reads to DataChan.
type Monitor struct {
	port     serial.Port
	portName string
	baudRate int
	mu       sync.Mutex
	running  bool
	dataCh   chan string
	done     chan struct{}
}

// NewMonitor returns a disconnected monitor.
func NewMonitor() *Monitor {
	return &Monitor{dataCh: make(chan string, 64), done: make(chan struct{})}
}

// Connect opens a port at 8N1. An open port is closed first.
func (m *Monitor) Connect(portName string, baudRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.disconnectLocked()
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{BaudRate: baudRate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := opener(portName, mode)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	m.port, m.portName, m.baudRate = port, portName, baudRate
	m.running, m.done = true, done

	go m.readLoop(port, done)
	return nil
}

// Disconnect closes the serial port. It is a no-op when not connected.
func (m *Monitor) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

func (m *Monitor) disconnectLocked() {
	if !m.running {
		return
	}
	m.running = false
	if m.port != nil {
		m.port.Close()
		m.port = nil
	}
	close(m.done)
}

// Write sends raw bytes; callers add their own line endings.
func (m *Monitor) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port == nil {
		return ErrNotConnected
	}
	if _, err := m.port.Write(data); err != nil {
		return err
	}
	return nil
}

// DataChan delivers received chunks. Chunks are dropped while the reader
// is not keeping up.
func (m *Monitor) DataChan() <-chan string {
	return m.dataCh
}

// Connected reports whether a port is open.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Info describes the connection; ok is false when nothing is open.
func (m *Monitor) Info() (ConnectionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ConnectionInfo{}, false
	}
	return ConnectionInfo{Port: m.portName, BaudRate: m.baudRate, Connected: true}, true
}

// Reset pulses DTR and RTS, which restarts most ESP32 and nRF52 boards.
func (m *Monitor) Reset() error {
	m.mu.Lock()
	port := m.port
	m.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}

	steps := []bool{false, true, false}
	for i, level := range steps {
		if err := port.SetDTR(level); err != nil {
			return err
		}
		if err := port.SetRTS(level); err != nil {
			return err
		}
		if i < len(steps)-1 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

func (m *Monitor) readLoop(port serial.Port, done <-chan struct{}) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			select {
			case m.dataCh <- string(buf[:n]):
			default:
			}
		}
		if err != nil {
			// Unplugged or closed; only tear down if still current.
			m.mu.Lock()
			if m.port == port {
				m.disconnectLocked()
			}
			m.mu.Unlock()
			return
		}
	}
}
