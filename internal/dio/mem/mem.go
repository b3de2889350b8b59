// internal/dio/mem/mem.go

// Package mem provides an in-memory port bank. Input registers mirror the
// output registers unless set explicitly, which is what a bench loop-back
// harness does.
package mem

import "github.com/mcukit/stm32-mcal/internal/dio"

// Bank holds one register pair per port.
type Bank struct {
	in     [dio.PortCount]uint16
	out    [dio.PortCount]uint16
	inHeld [dio.PortCount]bool
}

// New creates a zeroed bank.
func New() *Bank {
	return &Bank{}
}

// SetInput pins an input register to a fixed value, detaching it from the
// output mirror.
func (b *Bank) SetInput(port dio.PortID, value uint16) {
	if int(port) >= dio.PortCount {
		return
	}
	b.in[port] = value
	b.inHeld[port] = true
}

// ReadInput implements dio.PortBank.
func (b *Bank) ReadInput(port dio.PortID) (uint16, error) {
	if b.inHeld[port] {
		return b.in[port], nil
	}
	return b.out[port], nil
}

// ReadOutput implements dio.PortBank.
func (b *Bank) ReadOutput(port dio.PortID) (uint16, error) {
	return b.out[port], nil
}

// Write implements dio.PortBank.
func (b *Bank) Write(port dio.PortID, value uint16) error {
	b.out[port] = value
	return nil
}
