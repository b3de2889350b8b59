// internal/spi/spidev/spidev.go

// Package spidev adapts a Linux spidev port to the engine's Transport
// contract using periph.io. The adapter is shift-only: framing, job and
// sequence bookkeeping stay in the engine.
package spidev

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// Config is minimal bus config.
type Config struct {
	// Device is a spidev port name or number, e.g. "/dev/spidev0.0".
	Device string

	// SpeedHz is the maximum clock speed. 0 means 1 MHz.
	SpeedHz int64

	// Mode is the SPI mode number 0-3 (CPOL high order, CPHA low order).
	Mode int

	// Bits per word. 0 means 8.
	Bits int
}

// Transport drives one spidev port.
type Transport struct {
	port spi.PortCloser
	conn spi.Conn
}

// New opens and configures a spidev port.
func New(cfg Config) (*Transport, error) {
	if cfg.Device == "" {
		return nil, errors.New("spidev: device required")
	}
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("spidev: mode %d out of range", cfg.Mode)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("spidev: host init: %w", err)
	}

	port, err := spireg.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("spidev: open %s: %w", cfg.Device, err)
	}

	speed := physic.Frequency(cfg.SpeedHz) * physic.Hertz
	if cfg.SpeedHz == 0 {
		speed = physic.MegaHertz
	}
	bits := cfg.Bits
	if bits == 0 {
		bits = 8
	}

	conn, err := port.Connect(speed, spi.Mode(cfg.Mode), bits)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("spidev: connect %s: %w", cfg.Device, err)
	}

	return &Transport{port: port, conn: conn}, nil
}

// Transfer shifts one byte full-duplex.
func (t *Transport) Transfer(b byte) (byte, error) {
	if t == nil || t.conn == nil {
		return 0, errors.New("spidev: not connected")
	}

	w := [1]byte{b}
	var r [1]byte
	if err := t.conn.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// Close releases the port.
func (t *Transport) Close() error {
	if t == nil || t.port == nil {
		return nil
	}
	return t.port.Close()
}
