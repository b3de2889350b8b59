// internal/can/can.go

// Package can implements the CAN controller state machine: mode
// transitions, baud-rate selection, interrupt gating and error-state
// classification from the hardware error counters. Register access sits
// behind the Controller contract.
package can

import (
	"errors"
	"fmt"
)

// ---- ERRORS ----

var (
	ErrInvalidController = errors.New("can: invalid controller")
	ErrInvalidTransition = errors.New("can: invalid mode transition")
	ErrUnsupportedRate   = errors.New("can: unsupported baud rate id")
	ErrStarted           = errors.New("can: controller is started")
)

// ---- TYPES ----

// Mode is the operating mode of one controller.
type Mode uint8

const (
	ModeUninit Mode = iota
	ModeStarted
	ModeStopped
	ModeSleep
)

func (m Mode) String() string {
	switch m {
	case ModeUninit:
		return "UNINIT"
	case ModeStarted:
		return "STARTED"
	case ModeStopped:
		return "STOPPED"
	case ModeSleep:
		return "SLEEP"
	default:
		return "UNKNOWN"
	}
}

// ErrorState classifies a controller by its error counters.
type ErrorState uint8

const (
	ErrorActive ErrorState = iota
	ErrorPassive
	BusOff
)

func (s ErrorState) String() string {
	switch s {
	case ErrorActive:
		return "ACTIVE"
	case ErrorPassive:
		return "PASSIVE"
	case BusOff:
		return "BUSOFF"
	default:
		return "UNKNOWN"
	}
}

// BitTiming holds the nominal bit timing for one baud rate.
type BitTiming struct {
	Prescaler uint16
	BS1       uint8 // time quanta before the sample point
	BS2       uint8 // time quanta after the sample point
	SJW       uint8
}

// Named baud-rate configuration ids.
const (
	Rate125K uint16 = iota
	Rate250K
	Rate500K
	Rate1M
)

// bitTimings assumes a 36 MHz peripheral clock and an 18-quanta bit.
var bitTimings = map[uint16]BitTiming{
	Rate125K: {Prescaler: 16, BS1: 14, BS2: 3, SJW: 1},
	Rate250K: {Prescaler: 8, BS1: 14, BS2: 3, SJW: 1},
	Rate500K: {Prescaler: 4, BS1: 14, BS2: 3, SJW: 1},
	Rate1M:   {Prescaler: 2, BS1: 14, BS2: 3, SJW: 1},
}

// ---- CONTROLLER CONTRACT ----

// Controller is the exact contract the driver uses against one hardware
// controller.
type Controller interface {
	// Request performs the hardware side of a mode transition and blocks
	// until the controller acknowledged it.
	Request(mode Mode) error

	// SetBitTiming programs the nominal bit timing. Only legal outside
	// STARTED mode.
	SetBitTiming(t BitTiming) error

	// SetInterrupts enables or disables the controller's interrupt
	// sources as a group.
	SetInterrupts(enabled bool) error

	// ErrorCounters returns the transmit and receive error counters.
	ErrorCounters() (tx, rx uint8, err error)

	// WakeupPending reports and clears a latched wake-up event.
	WakeupPending() (bool, error)
}

// ---- DRIVER ----

// Driver owns the mode and interrupt bookkeeping for a set of
// controllers.
type Driver struct {
	ctrls []Controller
	mode  []Mode

	// irqDisable counts nested interrupt-disable requests per
	// controller; interrupts are re-enabled only when it drains to zero.
	irqDisable []int
}

// New creates a driver. Controllers boot UNINIT.
func New(ctrls []Controller) (*Driver, error) {
	if len(ctrls) == 0 {
		return nil, errors.New("can: at least one controller required")
	}
	return &Driver{
		ctrls:      ctrls,
		mode:       make([]Mode, len(ctrls)),
		irqDisable: make([]int, len(ctrls)),
	}, nil
}

// Init moves every controller into STOPPED mode.
func (d *Driver) Init() error {
	for i, c := range d.ctrls {
		if err := c.Request(ModeStopped); err != nil {
			return fmt.Errorf("can: init controller %d: %w", i, err)
		}
		d.mode[i] = ModeStopped
	}
	return nil
}

// DeInit resets every controller to UNINIT and masks its interrupts.
func (d *Driver) DeInit() error {
	var failed bool
	for i, c := range d.ctrls {
		if err := c.SetInterrupts(false); err != nil {
			failed = true
		}
		if err := c.Request(ModeUninit); err != nil {
			failed = true
		}
		d.mode[i] = ModeUninit
		d.irqDisable[i] = 0
	}
	if failed {
		return errors.New("can: de-initialization failed")
	}
	return nil
}

// SetBaudrate programs a named bit timing. The controller must not be
// STARTED.
func (d *Driver) SetBaudrate(ctrl uint8, rateID uint16) error {
	c, err := d.controller(ctrl)
	if err != nil {
		return err
	}
	if d.mode[ctrl] == ModeStarted {
		return ErrStarted
	}

	t, ok := bitTimings[rateID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedRate, rateID)
	}
	if err := c.SetBitTiming(t); err != nil {
		return fmt.Errorf("can: controller %d bit timing: %w", ctrl, err)
	}
	return nil
}

// SetControllerMode performs a mode transition. Legal transitions:
// STOPPED<->STARTED, STOPPED<->SLEEP, and any mode to UNINIT.
func (d *Driver) SetControllerMode(ctrl uint8, target Mode) error {
	c, err := d.controller(ctrl)
	if err != nil {
		return err
	}

	cur := d.mode[ctrl]
	legal := false
	switch target {
	case ModeStarted, ModeSleep:
		legal = cur == ModeStopped
	case ModeStopped:
		legal = cur == ModeStarted || cur == ModeSleep
	case ModeUninit:
		legal = true
	}
	if !legal {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, cur, target)
	}

	if err := c.Request(target); err != nil {
		return fmt.Errorf("can: controller %d transition to %v: %w", ctrl, target, err)
	}
	d.mode[ctrl] = target
	return nil
}

// DisableControllerInterrupts masks the controller's interrupts. Calls
// nest.
func (d *Driver) DisableControllerInterrupts(ctrl uint8) error {
	c, err := d.controller(ctrl)
	if err != nil {
		return err
	}

	d.irqDisable[ctrl]++
	if d.irqDisable[ctrl] == 1 {
		return c.SetInterrupts(false)
	}
	return nil
}

// EnableControllerInterrupts unmasks the controller's interrupts once
// every nested disable has been balanced. Unbalanced enables are ignored.
func (d *Driver) EnableControllerInterrupts(ctrl uint8) error {
	c, err := d.controller(ctrl)
	if err != nil {
		return err
	}

	if d.irqDisable[ctrl] == 0 {
		return nil
	}
	d.irqDisable[ctrl]--
	if d.irqDisable[ctrl] == 0 {
		return c.SetInterrupts(true)
	}
	return nil
}

// CheckWakeup reports whether a wake-up event is pending on the
// controller.
func (d *Driver) CheckWakeup(ctrl uint8) (bool, error) {
	c, err := d.controller(ctrl)
	if err != nil {
		return false, err
	}
	return c.WakeupPending()
}

// GetControllerMode returns the tracked mode.
func (d *Driver) GetControllerMode(ctrl uint8) (Mode, error) {
	if _, err := d.controller(ctrl); err != nil {
		return ModeUninit, err
	}
	return d.mode[ctrl], nil
}

// GetControllerErrorState classifies the controller from its error
// counters: a saturated transmit counter means BUSOFF, either counter
// past 127 means PASSIVE, anything else ACTIVE.
func (d *Driver) GetControllerErrorState(ctrl uint8) (ErrorState, error) {
	c, err := d.controller(ctrl)
	if err != nil {
		return ErrorActive, err
	}

	tx, rx, err := c.ErrorCounters()
	if err != nil {
		return ErrorActive, fmt.Errorf("can: controller %d error counters: %w", ctrl, err)
	}

	switch {
	case tx == 0xFF:
		return BusOff, nil
	case tx > 127 || rx > 127:
		return ErrorPassive, nil
	default:
		return ErrorActive, nil
	}
}

// GetControllerTxErrorCounter returns the transmit error counter.
func (d *Driver) GetControllerTxErrorCounter(ctrl uint8) (uint8, error) {
	c, err := d.controller(ctrl)
	if err != nil {
		return 0, err
	}
	tx, _, err := c.ErrorCounters()
	return tx, err
}

// GetControllerRxErrorCounter returns the receive error counter.
func (d *Driver) GetControllerRxErrorCounter(ctrl uint8) (uint8, error) {
	c, err := d.controller(ctrl)
	if err != nil {
		return 0, err
	}
	_, rx, err := c.ErrorCounters()
	return rx, err
}

// Version returns the driver identification block.
func (d *Driver) Version() VersionInfo {
	return VersionInfo{
		VendorID:     1810,
		ModuleID:     80,
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

func (d *Driver) controller(ctrl uint8) (Controller, error) {
	if int(ctrl) >= len(d.ctrls) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidController, ctrl)
	}
	return d.ctrls[ctrl], nil
}
