package transport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the UART speed of ChipWhisperer targets.
const DefaultBaudRate = 38400

// ChipWhispererVID is the USB vendor id of NewAE capture hardware.
const ChipWhispererVID = "2B3E"

// SerialConfig describes a serial port. Frames are always 8N1.
type SerialConfig struct {
	Path     string
	BaudRate int // Default: DefaultBaudRate
}

func (c SerialConfig) mode() *serial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// SerialLink is a Link over a local serial port.
type SerialLink struct {
	port serial.Port
	path string
}

// OpenSerial opens a serial port in 8N1 mode.
func OpenSerial(cfg SerialConfig) (*SerialLink, error) {
	port, err := serial.Open(cfg.Path, cfg.mode())
	if err != nil {
		return nil, fmt.Errorf("transport: failed to open %s: %w", cfg.Path, err)
	}
	return &SerialLink{port: port, path: cfg.Path}, nil
}

// Read reads from the port. The driver reports an expired timeout as an
// empty read, which is turned into ErrTimeout.
func (l *SerialLink) Read(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrTimeout
	}
	return n, err
}

func (l *SerialLink) Write(p []byte) (int, error) {
	return l.port.Write(p)
}

// SetReadTimeout implements Link.
func (l *SerialLink) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		d = serial.NoTimeout
	}
	return l.port.SetReadTimeout(d)
}

// Reset discards unread input, usually left over from a target reset.
func (l *SerialLink) Reset() error {
	return l.port.ResetInputBuffer()
}

func (l *SerialLink) Close() error {
	return l.port.Close()
}

func (l *SerialLink) String() string {
	return "serial://" + l.path
}

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string `json:"name" yaml:"name"`
	USB          bool   `json:"usb" yaml:"usb"`
	VID          string `json:"vid,omitempty" yaml:"vid,omitempty"`
	PID          string `json:"pid,omitempty" yaml:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Product      string `json:"product,omitempty" yaml:"product,omitempty"`
}

// ChipWhisperer reports whether the port belongs to NewAE hardware.
func (p PortInfo) ChipWhisperer() bool {
	return p.USB && strings.EqualFold(p.VID, ChipWhispererVID)
}

// ListPorts enumerates the serial ports of the system.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: failed to list ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			USB:          d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}
