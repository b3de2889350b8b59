// internal/lin/serialport/serialport.go

// Package serialport adapts a UART to the lin.Wire contract.
//
// The break field is approximated with a 0x00 byte: at the configured line
// rate that holds the line dominant for nine bit times, which most LIN
// transceivers accept as a break. Controllers with a native break generator
// belong behind their own Wire implementation.
package serialport

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// Config is minimal transport config.
type Config struct {
	// Address is the serial device, e.g. "/dev/ttyUSB0".
	Address  string
	BaudRate int
	Timeout  time.Duration
}

// Wire drives one UART.
type Wire struct {
	port serial.Port
}

// New opens the UART, 8N1.
func New(cfg Config) (*Wire, error) {
	if cfg.Address == "" {
		return nil, errors.New("lin serialport: address required")
	}

	baud := cfg.BaudRate
	if baud == 0 {
		baud = 19200
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("lin serialport: open %s: %w", cfg.Address, err)
	}

	return &Wire{port: port}, nil
}

// SendBreak holds the line dominant for a frame time.
func (w *Wire) SendBreak() error {
	return w.WriteByte(0x00)
}

// WriteByte shifts one byte out.
func (w *Wire) WriteByte(b byte) error {
	if w == nil || w.port == nil {
		return errors.New("lin serialport: not open")
	}

	buf := [1]byte{b}
	n, err := w.port.Write(buf[:])
	if err != nil {
		return err
	}
	if n != 1 {
		return errors.New("lin serialport: short write")
	}
	return nil
}

// Close closes the UART.
func (w *Wire) Close() error {
	if w == nil || w.port == nil {
		return nil
	}
	return w.port.Close()
}
