package client

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// New opens a serial port and wraps it in a client. The reader is not
// started; call Start.
//
// FIRM devices enumerate as USB CDC and run at 2,000,000 baud; pass 0 for
// the defaults. DTR is asserted so Linux and Windows behave the same, and
// the device gets a short settle period after open.
func New(portName string, baud int, readTimeout time.Duration) (*Client, error) {
	return newSerial(portName, baud, readTimeout, Options{})
}

// NewWithOptions is New with queue and diagnostics tuning.
func NewWithOptions(portName string, baud int, readTimeout time.Duration, opts Options) (*Client, error) {
	return newSerial(portName, baud, readTimeout, opts)
}

func newSerial(portName string, baud int, readTimeout time.Duration, opts Options) (*Client, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("client: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("client: set read timeout: %w", err)
	}
	if err := port.SetDTR(true); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("client: assert DTR: %w", err)
	}
	time.Sleep(50 * time.Millisecond)

	return NewFromStream(port, opts), nil
}

// ListPorts enumerates serial port names on this host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
