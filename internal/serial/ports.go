package serial

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
	// LikelyDevBoard is set for USB bridges and chips used on LoRa boards.
	LikelyDevBoard bool
}

// USB vendor ids of bridges and MCUs found on supported boards.
var knownVendors = map[string]bool{
	"10c4": true, // Silicon Labs CP210x
	"1a86": true, // QinHeng CH340/CH9102
	"0403": true, // FTDI
	"2341": true, // Arduino
	"2886": true, // Seeed Studio
	"1915": true, // Nordic Semiconductor
	"239a": true, // Adafruit (nRF52 bootloaders)
	"04d8": true, // Microchip
	"16c0": true, // Van Ooijen (Teensy)
	"1b4f": true, // SparkFun
	"303a": true, // Espressif native USB
}

var knownMakers = []string{
	"silicon labs", "ftdi", "arduino", "seeed", "adafruit", "espressif",
	"nordic", "microchip", "sparkfun", "wch", "qinheng",
}

// enumerate is replaced in tests.
var enumerate = enumerator.GetDetailedPortsList

// ListPorts returns available serial ports, dev boards marked. Windows
// sometimes reports nothing on the first call, so an empty result there is
// retried once.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerate()
	if err == nil && len(ports) == 0 && runtime.GOOS == "windows" {
		time.Sleep(500 * time.Millisecond)
		ports, err = enumerate()
	}
	if err != nil {
		return nil, err
	}

	result := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		info := PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          strings.ToLower(p.VID),
			PID:          strings.ToLower(p.PID),
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		}
		info.LikelyDevBoard = isDevBoard(info)
		result = append(result, info)
	}
	return result, nil
}

// DevBoards filters ports to the likely development boards.
func DevBoards(ports []PortInfo) []PortInfo {
	var out []PortInfo
	for _, p := range ports {
		if p.LikelyDevBoard {
			out = append(out, p)
		}
	}
	return out
}

func isDevBoard(p PortInfo) bool {
	if knownVendors[p.VID] {
		return true
	}
	product := strings.ToLower(p.Product)
	for _, m := range knownMakers {
		if strings.Contains(product, m) {
			return true
		}
	}
	return false
}

// DisplayName renders the port for pickers: name plus product or ids.
func (p PortInfo) DisplayName() string {
	switch {
	case p.Product != "" && p.PID != "":
		return fmt.Sprintf("%s (%s - %s)", p.Name, p.Product, p.PID)
	case p.Product != "":
		return fmt.Sprintf("%s (%s)", p.Name, p.Product)
	case p.VID != "":
		pid := p.PID
		if pid == "" {
			pid = "unknown"
		}
		return fmt.Sprintf("%s (%s:%s)", p.Name, p.VID, pid)
	}
	return p.Name
}
