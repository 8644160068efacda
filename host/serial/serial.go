// Package serial is the host side's physical transport to a target board:
// a USB-serial bridge carrying the byte stream a SynCom link's host/link
// collaborator frames and decodes.
package serial

import (
	"io"
)

// Port represents a serial port interface. This abstraction allows for
// different implementations: native serial (github.com/tarm/serial),
// WebSerial (for TinyGo WASM host builds), or a mock for testing.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores this but a real UART bridge needs it.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for a USB-CDC target.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
