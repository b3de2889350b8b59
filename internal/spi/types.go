// internal/spi/types.go
package spi

// ---- IDENTIFIERS ----

// ChannelID identifies one physical SPI bus instance.
type ChannelID uint8

// JobID identifies one configured Job.
type JobID uint16

// SequenceID identifies one configured Sequence.
type SequenceID uint8

// ---- MODULE / CHANNEL STATUS ----

// Status is the per-channel (and module-wide) driver state.
type Status uint8

const (
	// StatusUninit means the channel is not initialized or not usable.
	StatusUninit Status = iota

	// StatusIdle means the channel is initialized and not shifting a Job.
	StatusIdle

	// StatusBusy means a Job is currently shifting on the channel.
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusUninit:
		return "UNINIT"
	case StatusIdle:
		return "IDLE"
	case StatusBusy:
		return "BUSY"
	default:
		return "UNKNOWN"
	}
}

// ---- JOB RESULT ----

// JobResult is the completion state of one Job.
type JobResult uint8

const (
	// JobOK means the last transmission of the Job finished successfully.
	JobOK JobResult = iota

	// JobPending means the Job is being performed or has not run yet.
	JobPending

	// JobFailed means the last transmission of the Job failed.
	JobFailed

	// JobQueued means an asynchronous Job has been accepted but not started.
	JobQueued
)

func (r JobResult) String() string {
	switch r {
	case JobOK:
		return "OK"
	case JobPending:
		return "PENDING"
	case JobFailed:
		return "FAILED"
	case JobQueued:
		return "QUEUED"
	default:
		return "UNKNOWN"
	}
}

// ---- SEQUENCE RESULT ----

// SeqResult is the completion state of one Sequence.
type SeqResult uint8

const (
	// SeqOK means the last transmission of the Sequence finished successfully.
	SeqOK SeqResult = iota

	// SeqPending means the Sequence is being performed or has not run yet.
	SeqPending

	// SeqFailed means the last transmission of the Sequence failed.
	SeqFailed

	// SeqCanceled means the last transmission of the Sequence was canceled.
	SeqCanceled
)

func (r SeqResult) String() string {
	switch r {
	case SeqOK:
		return "OK"
	case SeqPending:
		return "PENDING"
	case SeqFailed:
		return "FAILED"
	case SeqCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// ---- VERSION ----

// VersionInfo identifies the driver build, AUTOSAR-style.
type VersionInfo struct {
	VendorID     uint16
	ModuleID     uint16
	MajorVersion uint8
	MinorVersion uint8
	PatchVersion uint8
}

const (
	vendorID = 1810
	moduleID = 83

	swMajor = 1
	swMinor = 0
	swPatch = 0
)
