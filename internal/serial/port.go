package serial

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Porter is the minimal interface a session needs from a serial device. The
// real implementation is go.bug.st/serial's serial.Port; tests substitute
// MockPort. Keeping the surface this small is what lets Session run against
// either without caring which it has.
type Porter interface {
	io.ReadWriteCloser
}

// Parity mirrors the three values spec.md allows.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "none"
	}
}

// ParseParity accepts "none"/"odd"/"even" case-insensitively.
func ParseParity(s string) (Parity, error) {
	switch toLower(s) {
	case "", "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	default:
		return 0, fmt.Errorf("serial: invalid parity %q", s)
	}
}

// StopBits mirrors the two values spec.md allows.
type StopBits int

const (
	StopBits1 StopBits = 1
	StopBits2 StopBits = 2
)

// ParseStopBits accepts 1 or 2.
func ParseStopBits(n int) (StopBits, error) {
	switch n {
	case 0, 1:
		return StopBits1, nil
	case 2:
		return StopBits2, nil
	default:
		return 0, fmt.Errorf("serial: invalid stop bits %d", n)
	}
}

// FlowControl mirrors the three values spec.md allows. go.bug.st/serial's
// Mode struct has no flow-control field, so Hardware is accepted and
// recorded but not wired to the device; see DESIGN.md.
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlSoftware
	FlowControlHardware
)

func (f FlowControl) String() string {
	switch f {
	case FlowControlSoftware:
		return "software"
	case FlowControlHardware:
		return "hardware"
	default:
		return "none"
	}
}

// ParseFlowControl accepts "none"/"software"/"hardware" case-insensitively.
func ParseFlowControl(s string) (FlowControl, error) {
	switch toLower(s) {
	case "", "none":
		return FlowControlNone, nil
	case "software", "sw":
		return FlowControlSoftware, nil
	case "hardware", "hw":
		return FlowControlHardware, nil
	default:
		return 0, fmt.Errorf("serial: invalid flow control %q", s)
	}
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// PortConfig is the immutable descriptor supplied to Open. It corresponds to
// one entry under serial_connections in the YAML config (spec.md §6).
type PortConfig struct {
	Name        string
	DevicePath  string
	BaudRate    int
	DataBits    int
	StopBits    StopBits
	Parity      Parity
	FlowControl FlowControl
	Enabled     bool

	LoggingEnabled bool
	LoggingPath    string

	Description string
}

// Validate checks the fields Open relies on being sane. It does not open
// anything.
func (c PortConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("serial: connection name must not be empty")
	}
	if c.DevicePath == "" {
		return fmt.Errorf("serial: device path must not be empty")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("serial: baud rate must be positive, got %d", c.BaudRate)
	}
	switch c.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("serial: data bits must be one of 5,6,7,8, got %d", c.DataBits)
	}
	if c.StopBits != StopBits1 && c.StopBits != StopBits2 {
		return fmt.Errorf("serial: stop bits must be 1 or 2, got %d", c.StopBits)
	}
	return nil
}

// SerialMode converts PortConfig into the go.bug.st/serial Mode structure.
// Flow control is intentionally not represented: the library exposes no
// termios CRTSCTS/IXON wiring through Mode.
func (c PortConfig) SerialMode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}
	switch c.StopBits {
	case StopBits2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}
	switch c.Parity {
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode
}

// Opener creates a Porter for a device path. Production code uses
// OpenRealPort; tests inject a function that returns a MockPort.
type Opener func(cfg PortConfig) (Porter, error)

// OpenRealPort opens an OS serial device using go.bug.st/serial. It is the
// default Opener used by Registry.Add outside of tests. The returned Porter
// blocks Read until data arrives or the port is closed; Session relies on
// closing the port to interrupt a pending Read on shutdown (spec.md §9's
// "split device halves" note — go.bug.st/serial's single *Port already
// supports one goroutine reading and another writing concurrently, so no
// further split is needed, only the close-to-cancel discipline).
func OpenRealPort(cfg PortConfig) (Porter, error) {
	port, err := serial.Open(cfg.DevicePath, cfg.SerialMode())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceOpen, cfg.DevicePath, err)
	}
	return port, nil
}
