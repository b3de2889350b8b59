// internal/dio/dio.go

// Package dio implements the DIO channel/port/group read-write primitives
// over an abstract register bank. Channel ids encode port and pin: each run
// of 16 ids maps to one port (0-15 port A, 16-31 port B, 32-47 port C).
package dio

import "errors"

// ---- TYPES ----

// ChannelID addresses one pin: port*16 + pin.
type ChannelID uint8

// PortID addresses one 16-bit port.
type PortID uint8

// Level is the signal level of one channel.
type Level uint8

const (
	Low Level = iota
	High
)

// PortLevel is the value of a full port or of a channel group.
type PortLevel uint16

// ChannelGroup addresses several adjacent pins inside one port.
type ChannelGroup struct {
	Port   PortID
	Mask   uint16
	Offset uint8
}

// PortCount is the number of ports the driver addresses (A, B, C).
const PortCount = 3

const pinsPerPort = 16

// ---- BANK CONTRACT ----

// PortBank is the exact contract the driver uses against the hardware.
type PortBank interface {
	// ReadInput returns the input data register of a port.
	ReadInput(port PortID) (uint16, error)

	// ReadOutput returns the output data register of a port.
	ReadOutput(port PortID) (uint16, error)

	// Write replaces the output data register of a port.
	Write(port PortID, value uint16) error
}

// ---- DRIVER ----

// Driver performs channel, port and group access on one bank.
type Driver struct {
	bank PortBank
}

// New creates a driver bound to a bank.
func New(bank PortBank) (*Driver, error) {
	if bank == nil {
		return nil, errors.New("dio: port bank required")
	}
	return &Driver{bank: bank}, nil
}

// ReadChannel reads the level of one channel. Channels on an invalid port
// read Low.
func (d *Driver) ReadChannel(ch ChannelID) (Level, error) {
	port, pin := split(ch)
	if port >= PortCount {
		return Low, nil
	}

	v, err := d.bank.ReadInput(port)
	if err != nil {
		return Low, err
	}
	if v&(1<<pin) != 0 {
		return High, nil
	}
	return Low, nil
}

// WriteChannel sets the level of one channel, leaving the rest of the port
// untouched. Writes to an invalid port are ignored.
func (d *Driver) WriteChannel(ch ChannelID, level Level) error {
	port, pin := split(ch)
	if port >= PortCount {
		return nil
	}

	v, err := d.bank.ReadOutput(port)
	if err != nil {
		return err
	}
	if level == High {
		v |= 1 << pin
	} else {
		v &^= 1 << pin
	}
	return d.bank.Write(port, v)
}

// ReadPort reads a full port. Invalid ports read 0.
func (d *Driver) ReadPort(port PortID) (PortLevel, error) {
	if port >= PortCount {
		return 0, nil
	}
	v, err := d.bank.ReadInput(port)
	return PortLevel(v), err
}

// WritePort replaces a full port. Writes to an invalid port are ignored.
func (d *Driver) WritePort(port PortID, level PortLevel) error {
	if port >= PortCount {
		return nil
	}
	return d.bank.Write(port, uint16(level))
}

// ReadChannelGroup reads the pins selected by the group mask, shifted down
// by the group offset. Invalid ports read 0.
func (d *Driver) ReadChannelGroup(g ChannelGroup) (PortLevel, error) {
	if g.Port >= PortCount {
		return 0, nil
	}
	v, err := d.bank.ReadInput(g.Port)
	if err != nil {
		return 0, err
	}
	return PortLevel((v & g.Mask) >> g.Offset), nil
}

// WriteChannelGroup writes level into the pins selected by the group mask,
// leaving every other pin of the port unaffected.
func (d *Driver) WriteChannelGroup(g ChannelGroup, level PortLevel) error {
	if g.Port >= PortCount {
		return nil
	}

	v, err := d.bank.ReadOutput(g.Port)
	if err != nil {
		return err
	}
	v &^= g.Mask
	v |= (uint16(level) << g.Offset) & g.Mask
	return d.bank.Write(g.Port, v)
}

// FlipChannel inverts one channel and returns the level it was set to.
// Channels on an invalid port read Low and are not written.
func (d *Driver) FlipChannel(ch ChannelID) (Level, error) {
	port, pin := split(ch)
	if port >= PortCount {
		return Low, nil
	}

	v, err := d.bank.ReadOutput(port)
	if err != nil {
		return Low, err
	}
	v ^= 1 << pin
	if err := d.bank.Write(port, v); err != nil {
		return Low, err
	}
	if v&(1<<pin) != 0 {
		return High, nil
	}
	return Low, nil
}

// Version returns the driver identification block.
func (d *Driver) Version() VersionInfo {
	return VersionInfo{
		VendorID:     1810,
		ModuleID:     120,
		MajorVersion: 1,
		MinorVersion: 0,
		PatchVersion: 0,
	}
}

// VersionInfo identifies the driver build.
type VersionInfo struct {
	VendorID     uint16
	ModuleID     uint16
	MajorVersion uint8
	MinorVersion uint8
	PatchVersion uint8
}

func split(ch ChannelID) (PortID, uint8) {
	return PortID(ch / pinsPerPort), uint8(ch % pinsPerPort)
}
