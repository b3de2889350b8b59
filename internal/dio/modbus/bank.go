// internal/dio/modbus/bank.go

// Package modbus adapts a Modbus coil bank to the dio.PortBank contract.
// Bench I/O fixtures expose their pins this way: one coil per channel,
// ports laid out as consecutive 16-coil blocks. Outputs live in the coil
// area, inputs in the discrete-input area at the same addresses.
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"

	"github.com/mcukit/stm32-mcal/internal/dio"
)

// Config is minimal transport config.
type Config struct {
	Endpoint string
	SlaveID  byte
	Timeout  time.Duration

	// BaseAddress is the coil address of port 0 pin 0.
	BaseAddress uint16
}

// Bank drives one fixture over Modbus TCP.
type Bank struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
	base    uint16
}

// New creates a connected bank.
func New(cfg Config) (*Bank, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("dio modbus: endpoint required")
	}

	handler := modbus.NewTCPClientHandler(cfg.Endpoint)
	handler.Timeout = cfg.Timeout
	handler.SlaveId = cfg.SlaveID

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("dio modbus: connect %s: %w", cfg.Endpoint, err)
	}

	return &Bank{
		handler: handler,
		client:  modbus.NewClient(handler),
		base:    cfg.BaseAddress,
	}, nil
}

// Close closes the TCP connection.
func (b *Bank) Close() error {
	if b == nil || b.handler == nil {
		return nil
	}
	return b.handler.Close()
}

// ---- dio.PortBank ----

// ReadInput reads the 16 discrete inputs backing a port.
func (b *Bank) ReadInput(port dio.PortID) (uint16, error) {
	raw, err := b.client.ReadDiscreteInputs(b.portAddr(port), 16)
	if err != nil {
		return 0, err
	}
	return unpackPort(raw)
}

// ReadOutput reads back the 16 coils backing a port.
func (b *Bank) ReadOutput(port dio.PortID) (uint16, error) {
	raw, err := b.client.ReadCoils(b.portAddr(port), 16)
	if err != nil {
		return 0, err
	}
	return unpackPort(raw)
}

// Write replaces the 16 coils backing a port.
func (b *Bank) Write(port dio.PortID, value uint16) error {
	packed := []byte{byte(value), byte(value >> 8)}
	_, err := b.client.WriteMultipleCoils(b.portAddr(port), 16, packed)
	return err
}

func (b *Bank) portAddr(port dio.PortID) uint16 {
	return b.base + uint16(port)*16
}

// unpackPort converts a packed coil response (LSB-first per byte) into a
// port value.
func unpackPort(raw []byte) (uint16, error) {
	if len(raw) < 2 {
		return 0, errors.New("dio modbus: short coil payload")
	}
	return uint16(raw[0]) | uint16(raw[1])<<8, nil
}
