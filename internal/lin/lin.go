// internal/lin/lin.go

// Package lin implements a master-side LIN frame driver: break/sync/PID
// framing, classic and enhanced checksums, and the per-channel sleep/wakeup
// state machine. The wire itself sits behind the Wire contract.
package lin

import (
	"errors"
	"fmt"
)

// ---- ERRORS ----

var (
	ErrInvalidChannel = errors.New("lin: invalid channel")
	ErrNilFrame       = errors.New("lin: nil frame data")
	ErrFrameTooLong   = errors.New("lin: frame data exceeds 8 bytes")
	ErrNotAsleep      = errors.New("lin: channel is not in sleep state")
	ErrNoWakeup       = errors.New("lin: no wake-up event pending")
)

// ---- TYPES ----

// Status is the operational state of one channel.
type Status uint8

const (
	StatusOperational Status = iota
	StatusSleep
)

func (s Status) String() string {
	switch s {
	case StatusOperational:
		return "OPERATIONAL"
	case StatusSleep:
		return "SLEEP"
	default:
		return "UNKNOWN"
	}
}

// ChecksumModel selects how the frame checksum is seeded.
type ChecksumModel uint8

const (
	// ChecksumClassic covers the data bytes only.
	ChecksumClassic ChecksumModel = iota

	// ChecksumEnhanced covers the protected identifier and the data.
	ChecksumEnhanced
)

// Frame is one master request frame.
type Frame struct {
	// ID is the 6-bit frame identifier. Parity bits are computed by the
	// driver.
	ID uint8

	Checksum ChecksumModel
	Data     []byte
}

// ---- WIRE CONTRACT ----

// Wire is the exact contract the driver uses against the UART.
type Wire interface {
	// SendBreak holds the line dominant long enough for a break field.
	SendBreak() error

	// WriteByte shifts one byte and blocks until it left the shifter.
	WriteByte(b byte) error

	Close() error
}

// wakeupDetector is implemented by wires that can latch a bus wake-up
// event.
type wakeupDetector interface {
	WakeupPending() bool
}

const (
	syncByte  = 0x55
	sleepID   = 0x3C
	wakeupReq = 0x80
)

// ---- DRIVER ----

// Driver owns one wire and one state per channel.
type Driver struct {
	wires []Wire
	state []Status
}

// New creates a driver with one wire per channel. Channels boot asleep;
// the master wakes the bus before the first schedule.
func New(wires []Wire) (*Driver, error) {
	if len(wires) == 0 {
		return nil, errors.New("lin: at least one channel required")
	}

	state := make([]Status, len(wires))
	for i := range state {
		state[i] = StatusSleep
	}
	return &Driver{
		wires: wires,
		state: state,
	}, nil
}

// SendFrame transmits one complete master frame: break, sync, protected
// identifier, data, checksum. Blocking; returns after the checksum byte
// left the shifter.
func (d *Driver) SendFrame(ch uint8, f *Frame) error {
	if f == nil || f.Data == nil {
		return ErrNilFrame
	}
	if len(f.Data) > 8 {
		return ErrFrameTooLong
	}
	w, err := d.wire(ch)
	if err != nil {
		return err
	}

	if err := w.SendBreak(); err != nil {
		return fmt.Errorf("lin: break on channel %d: %w", ch, err)
	}
	if err := w.WriteByte(syncByte); err != nil {
		return fmt.Errorf("lin: sync on channel %d: %w", ch, err)
	}

	pid := ProtectedID(f.ID)
	if err := w.WriteByte(pid); err != nil {
		return fmt.Errorf("lin: pid on channel %d: %w", ch, err)
	}

	for i, b := range f.Data {
		if err := w.WriteByte(b); err != nil {
			return fmt.Errorf("lin: data byte %d on channel %d: %w", i, ch, err)
		}
	}

	sum := Checksum(f.Checksum, pid, f.Data)
	if err := w.WriteByte(sum); err != nil {
		return fmt.Errorf("lin: checksum on channel %d: %w", ch, err)
	}
	return nil
}

// GoToSleep sends the go-to-sleep command on the channel and moves it to
// sleep state.
func (d *Driver) GoToSleep(ch uint8) error {
	w, err := d.wire(ch)
	if err != nil {
		return err
	}

	if err := w.SendBreak(); err != nil {
		return fmt.Errorf("lin: sleep break on channel %d: %w", ch, err)
	}
	if err := w.WriteByte(sleepID); err != nil {
		return fmt.Errorf("lin: sleep command on channel %d: %w", ch, err)
	}

	d.state[ch] = StatusSleep
	return nil
}

// GoToSleepInternal moves the channel to sleep state after signaling a
// break, without the full sleep command frame. Wake-up detection stays
// with the wire.
func (d *Driver) GoToSleepInternal(ch uint8) error {
	w, err := d.wire(ch)
	if err != nil {
		return err
	}

	if err := w.SendBreak(); err != nil {
		return fmt.Errorf("lin: sleep break on channel %d: %w", ch, err)
	}

	d.state[ch] = StatusSleep
	return nil
}

// Wakeup sends a dominant wake-up pulse. The channel must be asleep.
func (d *Driver) Wakeup(ch uint8) error {
	w, err := d.wire(ch)
	if err != nil {
		return err
	}
	if d.state[ch] != StatusSleep {
		return ErrNotAsleep
	}

	if err := w.WriteByte(wakeupReq); err != nil {
		return fmt.Errorf("lin: wake-up pulse on channel %d: %w", ch, err)
	}

	d.state[ch] = StatusOperational
	return nil
}

// CheckWakeup reports whether a bus wake-up event is pending on the
// channel. Wires that cannot latch wake-up events always report none.
func (d *Driver) CheckWakeup(ch uint8) error {
	w, err := d.wire(ch)
	if err != nil {
		return err
	}

	if det, ok := w.(wakeupDetector); ok && det.WakeupPending() {
		return nil
	}
	return ErrNoWakeup
}

// GetStatus returns the channel state.
func (d *Driver) GetStatus(ch uint8) (Status, error) {
	if int(ch) >= len(d.state) {
		return StatusOperational, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	return d.state[ch], nil
}

// Version returns the driver identification block.
func (d *Driver) Version() VersionInfo {
	return VersionInfo{
		VendorID:     1810,
		ModuleID:     82,
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

func (d *Driver) wire(ch uint8) (Wire, error) {
	if int(ch) >= len(d.wires) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	return d.wires[ch], nil
}

// ---- FRAME MATH ----

// ProtectedID computes the protected identifier: the 6-bit id plus two
// parity bits. P0 = id0^id1^id2^id4, P1 = !(id1^id3^id4^id5).
func ProtectedID(id uint8) uint8 {
	id &= 0x3F

	bit := func(n uint8) uint8 { return (id >> n) & 1 }
	p0 := bit(0) ^ bit(1) ^ bit(2) ^ bit(4)
	p1 := (bit(1) ^ bit(3) ^ bit(4) ^ bit(5) ^ 1) & 1

	return id | p0<<6 | p1<<7
}

// Checksum computes the frame checksum: an 8-bit sum where every carry is
// added back in, complemented. The classic model covers the data only; the
// enhanced model seeds the sum with the protected identifier.
func Checksum(model ChecksumModel, pid uint8, data []byte) uint8 {
	var sum uint16
	if model == ChecksumEnhanced {
		sum = uint16(pid)
	}

	for _, b := range data {
		sum += uint16(b)
		if sum > 0xFF {
			sum = (sum & 0xFF) + 1
		}
	}

	return ^uint8(sum)
}
