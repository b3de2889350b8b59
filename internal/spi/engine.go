// internal/spi/engine.go
package spi

import (
	"errors"
	"fmt"
)

// ---- ERRORS ----

var (
	ErrNotInitialized  = errors.New("spi: no channel is initialized")
	ErrInvalidSequence = errors.New("spi: invalid sequence id")
	ErrInvalidChannel  = errors.New("spi: invalid channel id")
	ErrNilBuffer       = errors.New("spi: nil data buffer")
	ErrBusy            = errors.New("spi: a sequence transmission is in flight")
	ErrCanceled        = errors.New("spi: sequence canceled")
	ErrDeInit          = errors.New("spi: de-initialization failed")
)

// ---- CONFIGURATION ----

// ChannelConfig identifies one physical bus instance. The ID selects which
// hardware transport the engine addresses for Jobs bound to this channel.
type ChannelConfig struct {
	ID ChannelID
}

// JobConfig binds one channel to one application data buffer.
// Buffers are owned by the configuration and referenced, not copied.
type JobConfig struct {
	Channel ChannelID

	// Tx holds the data units to shift out, one transport call each.
	Tx []byte

	// Rx, when non-nil, receives the data units shifted in. It may be
	// shorter than Tx; extra received units are discarded.
	Rx []byte
}

// SequenceConfig is an ordered, fixed list of Job identifiers.
type SequenceConfig struct {
	Jobs []JobID
}

// Config is the static table set the engine runs against. All tables are
// populated once at startup and are read-only in structure afterward; only
// status values mutate, and only from the engine's transmission path.
type Config struct {
	Channels  []ChannelConfig
	Jobs      []JobConfig
	Sequences []SequenceConfig
}

// Options tunes engine behavior that differs between deployed revisions.
type Options struct {
	// StrictSequenceRange bounds transmit sequence ids by the sequence
	// count. When false (the default), sequence ids are bounded by the
	// channel count instead, matching the shipped driver's range check.
	StrictSequenceRange bool
}

// ---- ENGINE ----

// Engine is the SPI Handler/Driver core: it groups channel transfers (Jobs)
// into ordered Sequences, tracks per-job and per-sequence completion state
// and owns the per-channel status table.
//
// The engine is single-threaded and non-reentrant. Callers running it from
// multiple goroutines must serialize every call externally.
type Engine struct {
	cfg        Config
	opts       Options
	transports map[ChannelID]Transport

	chanStatus []Status
	jobStatus  []JobResult
	seqStatus  []SeqResult

	transmitting bool
}

// New creates an engine with immutable configuration. Sequences must
// reference configured Jobs and must not list more Jobs than are
// configured. Job channel references are deliberately not checked here:
// a Job bound to an unknown channel fails at dispatch time.
func New(cfg Config, transports map[ChannelID]Transport, opts Options) (*Engine, error) {
	if len(cfg.Channels) == 0 {
		return nil, errors.New("spi: at least one channel required")
	}

	// Channel ids double as table indices.
	for i, ch := range cfg.Channels {
		if int(ch.ID) != i {
			return nil, fmt.Errorf(
				"spi: channel ids must be dense from 0, got %d at position %d",
				ch.ID, i,
			)
		}
	}

	for si, s := range cfg.Sequences {
		if len(s.Jobs) > len(cfg.Jobs) {
			return nil, fmt.Errorf(
				"spi: sequence %d lists %d jobs, only %d configured",
				si, len(s.Jobs), len(cfg.Jobs),
			)
		}
		for _, j := range s.Jobs {
			if int(j) >= len(cfg.Jobs) {
				return nil, fmt.Errorf(
					"spi: sequence %d references unknown job %d",
					si, j,
				)
			}
		}
	}

	if transports == nil {
		transports = map[ChannelID]Transport{}
	}

	e := &Engine{
		cfg:        cfg,
		opts:       opts,
		transports: transports,
		chanStatus: make([]Status, len(cfg.Channels)),
		jobStatus:  make([]JobResult, len(cfg.Jobs)),
		seqStatus:  make([]SeqResult, len(cfg.Sequences)),
	}

	// Jobs and sequences boot as PENDING, channels as UNINIT.
	for i := range e.jobStatus {
		e.jobStatus[i] = JobPending
	}
	for i := range e.seqStatus {
		e.seqStatus[i] = SeqPending
	}

	return e, nil
}

// Init marks every channel that has a transport bound as IDLE.
// Channels without a transport stay UNINIT.
func (e *Engine) Init() {
	for i, ch := range e.cfg.Channels {
		if _, ok := e.transports[ch.ID]; ok {
			e.chanStatus[i] = StatusIdle
		}
	}
}

// DeInit resets every channel to UNINIT and closes the underlying
// transports. It succeeds only if every transport reports itself disabled.
func (e *Engine) DeInit() error {
	for i := range e.chanStatus {
		e.chanStatus[i] = StatusUninit
	}

	var failed bool
	for _, tr := range e.transports {
		if err := tr.Close(); err != nil {
			failed = true
		}
	}
	if failed {
		return ErrDeInit
	}
	return nil
}

// ---- IMMEDIATE TRANSFERS ----

// WriteIB shifts the first data unit of buf out on the given channel,
// bypassing job and sequence bookkeeping.
func (e *Engine) WriteIB(ch ChannelID, buf []byte) error {
	if buf == nil {
		return ErrNilBuffer
	}

	tr, err := e.transport(ch)
	if err != nil {
		return err
	}

	if _, err := tr.Transfer(buf[0]); err != nil {
		return fmt.Errorf("spi: write on channel %d: %w", ch, err)
	}
	return nil
}

// ReadIB shifts one filler unit out on the given channel and returns the
// data unit received.
func (e *Engine) ReadIB(ch ChannelID) (byte, error) {
	tr, err := e.transport(ch)
	if err != nil {
		return 0, err
	}

	b, err := tr.Transfer(0x00)
	if err != nil {
		return 0, fmt.Errorf("spi: read on channel %d: %w", ch, err)
	}
	return b, nil
}

func (e *Engine) transport(ch ChannelID) (Transport, error) {
	if int(ch) >= len(e.cfg.Channels) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	tr, ok := e.transports[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	return tr, nil
}

// ---- SEQUENCE TRANSMISSION ----

// SyncTransmit runs every Job in the sequence to completion, in list
// order, before returning. The first failing Job poisons the whole
// sequence: its status and the sequence's status become FAILED and no
// further Jobs run.
func (e *Engine) SyncTransmit(seq SequenceID) error {
	return e.transmit(seq)
}

// AsyncTransmit has the same sequencing semantics as SyncTransmit and,
// like it, runs every Job to completion before returning. It exists as a
// distinct entry point for parity with interrupt-driven transmission; a
// deferred execution path would attach here.
func (e *Engine) AsyncTransmit(seq SequenceID) error {
	return e.transmit(seq)
}

func (e *Engine) transmit(seq SequenceID) error {
	// Precondition checks happen before any status table is touched.
	if e.allUninit() {
		return ErrNotInitialized
	}

	bound := len(e.cfg.Channels)
	if e.opts.StrictSequenceRange {
		bound = len(e.cfg.Sequences)
	}
	if int(seq) >= bound || int(seq) >= len(e.cfg.Sequences) {
		return fmt.Errorf("%w: %d", ErrInvalidSequence, seq)
	}

	if e.transmitting {
		return ErrBusy
	}
	e.transmitting = true
	defer func() { e.transmitting = false }()

	e.seqStatus[seq] = SeqPending
	sc := e.cfg.Sequences[seq]

	for _, jobID := range sc.Jobs {
		// A cancel halts further dispatch without failing jobs that
		// already completed.
		if e.seqStatus[seq] == SeqCanceled {
			return ErrCanceled
		}

		jc := e.cfg.Jobs[jobID]
		e.jobStatus[jobID] = JobPending

		tr, ok := e.transports[jc.Channel]
		if !ok || int(jc.Channel) >= len(e.cfg.Channels) {
			e.jobStatus[jobID] = JobFailed
			e.seqStatus[seq] = SeqFailed
			return fmt.Errorf("spi: job %d: %w: %d", jobID, ErrInvalidChannel, jc.Channel)
		}

		if err := e.shiftJob(jc, tr); err != nil {
			e.jobStatus[jobID] = JobFailed
			e.seqStatus[seq] = SeqFailed
			return fmt.Errorf("spi: job %d on channel %d: %w", jobID, jc.Channel, err)
		}

		e.jobStatus[jobID] = JobOK
	}

	e.seqStatus[seq] = SeqOK
	return nil
}

// shiftJob moves the job's buffer through the transport one unit at a
// time. The owning channel is BUSY for the duration of the shift.
func (e *Engine) shiftJob(jc JobConfig, tr Transport) error {
	e.chanStatus[jc.Channel] = StatusBusy
	defer func() { e.chanStatus[jc.Channel] = StatusIdle }()

	for i, b := range jc.Tx {
		in, err := tr.Transfer(b)
		if err != nil {
			return err
		}
		if jc.Rx != nil && i < len(jc.Rx) {
			jc.Rx[i] = in
		}
	}
	return nil
}

// Cancel marks the sequence CANCELED and stops further job dispatch for
// it. Jobs that already completed keep their results. Out-of-range ids
// are ignored.
func (e *Engine) Cancel(seq SequenceID) {
	if int(seq) >= len(e.seqStatus) {
		return
	}
	e.seqStatus[seq] = SeqCanceled
}

// ---- QUERIES ----

// GetJobResult returns the stored status of a Job, or FAILED if the id is
// out of the configured range. Pure read, no side effects.
func (e *Engine) GetJobResult(job JobID) JobResult {
	if int(job) >= len(e.jobStatus) {
		return JobFailed
	}
	return e.jobStatus[job]
}

// GetSequenceResult returns the stored status of a Sequence, or FAILED if
// the id is out of the configured range. Pure read, no side effects.
func (e *Engine) GetSequenceResult(seq SequenceID) SeqResult {
	if int(seq) >= len(e.seqStatus) {
		return SeqFailed
	}
	return e.seqStatus[seq]
}

// GetStatus reports the overall module state: BUSY if any channel is
// busy, IDLE if any channel is initialized, UNINIT otherwise.
func (e *Engine) GetStatus() Status {
	for _, s := range e.chanStatus {
		if s == StatusBusy {
			return StatusBusy
		}
	}
	for _, s := range e.chanStatus {
		if s != StatusUninit {
			return StatusIdle
		}
	}
	return StatusUninit
}

// GetHWUnitStatus reports the state of a single channel. Out-of-range ids
// report UNINIT.
func (e *Engine) GetHWUnitStatus(ch ChannelID) Status {
	if int(ch) >= len(e.chanStatus) {
		return StatusUninit
	}
	return e.chanStatus[ch]
}

func (e *Engine) allUninit() bool {
	for _, s := range e.chanStatus {
		if s != StatusUninit {
			return false
		}
	}
	return true
}

// Version returns the driver identification block.
func (e *Engine) Version() VersionInfo {
	return VersionInfo{
		VendorID:     vendorID,
		ModuleID:     moduleID,
		MajorVersion: swMajor,
		MinorVersion: swMinor,
		PatchVersion: swPatch,
	}
}
