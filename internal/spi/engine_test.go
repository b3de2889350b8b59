// internal/spi/engine_test.go
package spi

import (
	"errors"
	"fmt"
	"testing"
)

// fakeTransport records every transfer and can be told to fail after a
// number of accepted units.
type fakeTransport struct {
	name string
	log  *[]string

	failAfter int // fail once this many units have been accepted; -1 = never
	accepted  int

	rx     byte
	closed bool

	closeErr   error
	onTransfer func(b byte)
}

func newFakeTransport(name string, log *[]string) *fakeTransport {
	return &fakeTransport{name: name, log: log, failAfter: -1, rx: 0xA5}
}

func (f *fakeTransport) Transfer(b byte) (byte, error) {
	if f.log != nil {
		*f.log = append(*f.log, fmt.Sprintf("%s:%02X", f.name, b))
	}
	if f.onTransfer != nil {
		f.onTransfer(b)
	}
	if f.failAfter >= 0 && f.accepted >= f.failAfter {
		return 0, errors.New("transport not ready")
	}
	f.accepted++
	return f.rx, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return f.closeErr
}

func twoChannelConfig() Config {
	return Config{
		Channels: []ChannelConfig{{ID: 0}, {ID: 1}},
		Jobs: []JobConfig{
			{Channel: 0, Tx: []byte{0xA5}},
			{Channel: 1, Tx: []byte{0x10}},
		},
		Sequences: []SequenceConfig{
			{Jobs: []JobID{0, 1}},
		},
	}
}

func buildEngine(t *testing.T, cfg Config, opts Options, log *[]string) (*Engine, *fakeTransport, *fakeTransport) {
	t.Helper()

	t0 := newFakeTransport("ch0", log)
	t1 := newFakeTransport("ch1", log)

	e, err := New(cfg, map[ChannelID]Transport{0: t0, 1: t1}, opts)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return e, t0, t1
}

func TestSyncTransmit_Success(t *testing.T) {
	var log []string
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, &log)
	e.Init()

	if err := e.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit err=%v", err)
	}
	if got := e.GetSequenceResult(0); got != SeqOK {
		t.Fatalf("sequence result=%v, want OK", got)
	}
	if got := e.GetJobResult(0); got != JobOK {
		t.Fatalf("job 0 result=%v, want OK", got)
	}
	if got := e.GetJobResult(1); got != JobOK {
		t.Fatalf("job 1 result=%v, want OK", got)
	}
}

func TestSyncTransmit_Order(t *testing.T) {
	var log []string
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, &log)
	e.Init()

	if err := e.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit err=%v", err)
	}

	want := []string{"ch0:A5", "ch1:10"}
	if len(log) != len(want) {
		t.Fatalf("transfer log=%v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("transfer log=%v, want %v", log, want)
		}
	}
}

func TestSyncTransmit_TransportFailure(t *testing.T) {
	var log []string
	e, _, t1 := buildEngine(t, twoChannelConfig(), Options{}, &log)
	t1.failAfter = 0 // channel 1 never becomes ready
	e.Init()

	if err := e.SyncTransmit(0); err == nil {
		t.Fatalf("expected error, got nil")
	}
	if got := e.GetSequenceResult(0); got != SeqFailed {
		t.Fatalf("sequence result=%v, want FAILED", got)
	}
	if got := e.GetJobResult(0); got != JobOK {
		t.Fatalf("job 0 result=%v, want OK", got)
	}
	if got := e.GetJobResult(1); got != JobFailed {
		t.Fatalf("job 1 result=%v, want FAILED", got)
	}
}

func TestSyncTransmit_FailFast(t *testing.T) {
	cfg := Config{
		Channels: []ChannelConfig{{ID: 0}, {ID: 1}},
		Jobs: []JobConfig{
			{Channel: 0, Tx: []byte{0x01}},
			{Channel: 1, Tx: []byte{0x02}},
			{Channel: 0, Tx: []byte{0x03}},
		},
		Sequences: []SequenceConfig{
			{Jobs: []JobID{0, 1, 2}},
		},
	}

	var log []string
	e, _, t1 := buildEngine(t, cfg, Options{}, &log)
	t1.failAfter = 0
	e.Init()

	if err := e.SyncTransmit(0); err == nil {
		t.Fatalf("expected error, got nil")
	}

	// The job after the failure never leaves its pre-dispatch state and
	// its transport is never called.
	if got := e.GetJobResult(2); got != JobPending {
		t.Fatalf("job 2 result=%v, want PENDING", got)
	}
	for _, entry := range log {
		if entry == "ch0:03" {
			t.Fatalf("job after failure was dispatched: log=%v", log)
		}
	}
}

func TestSyncTransmit_Uninitialized(t *testing.T) {
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)
	// No Init: every channel stays UNINIT.

	err := e.SyncTransmit(0)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err=%v, want ErrNotInitialized", err)
	}

	// No status table entry changed.
	if got := e.GetSequenceResult(0); got != SeqPending {
		t.Fatalf("sequence result=%v, want PENDING", got)
	}
	if got := e.GetJobResult(0); got != JobPending {
		t.Fatalf("job 0 result=%v, want PENDING", got)
	}
}

func TestSyncTransmit_InvalidJobChannel(t *testing.T) {
	cfg := twoChannelConfig()
	cfg.Jobs[1].Channel = 7 // not a configured channel

	e, _, _ := buildEngine(t, cfg, Options{}, nil)
	e.Init()

	err := e.SyncTransmit(0)
	if !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("err=%v, want ErrInvalidChannel", err)
	}
	if got := e.GetJobResult(1); got != JobFailed {
		t.Fatalf("job 1 result=%v, want FAILED", got)
	}
	if got := e.GetSequenceResult(0); got != SeqFailed {
		t.Fatalf("sequence result=%v, want FAILED", got)
	}
}

func TestSequenceRange_LegacyBoundsByChannelCount(t *testing.T) {
	// One channel, two sequences: the legacy check rejects sequence 1
	// even though it is configured.
	cfg := Config{
		Channels: []ChannelConfig{{ID: 0}},
		Jobs: []JobConfig{
			{Channel: 0, Tx: []byte{0xA5}},
		},
		Sequences: []SequenceConfig{
			{Jobs: []JobID{0}},
			{Jobs: []JobID{0}},
		},
	}

	tr := newFakeTransport("ch0", nil)
	e, err := New(cfg, map[ChannelID]Transport{0: tr}, Options{})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	e.Init()

	if err := e.SyncTransmit(1); !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("err=%v, want ErrInvalidSequence", err)
	}
	if got := e.GetSequenceResult(1); got != SeqPending {
		t.Fatalf("sequence 1 result=%v, want PENDING (untouched)", got)
	}

	if err := e.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit(0) err=%v", err)
	}
}

func TestSequenceRange_Strict(t *testing.T) {
	cfg := Config{
		Channels: []ChannelConfig{{ID: 0}},
		Jobs: []JobConfig{
			{Channel: 0, Tx: []byte{0xA5}},
		},
		Sequences: []SequenceConfig{
			{Jobs: []JobID{0}},
			{Jobs: []JobID{0}},
		},
	}

	tr := newFakeTransport("ch0", nil)
	e, err := New(cfg, map[ChannelID]Transport{0: tr}, Options{StrictSequenceRange: true})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	e.Init()

	if err := e.SyncTransmit(1); err != nil {
		t.Fatalf("SyncTransmit(1) err=%v", err)
	}
	if err := e.SyncTransmit(2); !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("err=%v, want ErrInvalidSequence", err)
	}
}

func TestSequenceRange_OutOfRangeNeverMutates(t *testing.T) {
	// Two channels, one sequence: the legacy bound admits id 1, but
	// there is no sequence 1 to run, so it is rejected before any
	// status mutates.
	e, _, _ := buildEngine(t, Config{
		Channels: []ChannelConfig{{ID: 0}, {ID: 1}},
		Jobs: []JobConfig{
			{Channel: 0, Tx: []byte{0xA5}},
		},
		Sequences: []SequenceConfig{
			{Jobs: []JobID{0}},
		},
	}, Options{}, nil)
	e.Init()

	if err := e.SyncTransmit(1); !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("err=%v, want ErrInvalidSequence", err)
	}
	if got := e.GetJobResult(0); got != JobPending {
		t.Fatalf("job 0 result=%v, want PENDING", got)
	}
}

func TestAsyncTransmit_RunsToCompletion(t *testing.T) {
	var log []string
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, &log)
	e.Init()

	if err := e.AsyncTransmit(0); err != nil {
		t.Fatalf("AsyncTransmit err=%v", err)
	}
	if got := e.GetSequenceResult(0); got != SeqOK {
		t.Fatalf("sequence result=%v, want OK", got)
	}
	if len(log) != 2 {
		t.Fatalf("expected both jobs shifted before return, log=%v", log)
	}
}

func TestQueries_InvalidID(t *testing.T) {
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)

	if got := e.GetJobResult(99); got != JobFailed {
		t.Fatalf("job result=%v, want FAILED", got)
	}
	if got := e.GetSequenceResult(99); got != SeqFailed {
		t.Fatalf("sequence result=%v, want FAILED", got)
	}
}

func TestQueries_Idempotent(t *testing.T) {
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)
	e.Init()

	if err := e.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit err=%v", err)
	}

	first := e.GetJobResult(0)
	second := e.GetJobResult(0)
	if first != second {
		t.Fatalf("job result changed between reads: %v then %v", first, second)
	}

	firstSeq := e.GetSequenceResult(0)
	secondSeq := e.GetSequenceResult(0)
	if firstSeq != secondSeq {
		t.Fatalf("sequence result changed between reads: %v then %v", firstSeq, secondSeq)
	}
}

func TestCancel_HaltsDispatch(t *testing.T) {
	var log []string
	e, t0, _ := buildEngine(t, twoChannelConfig(), Options{}, &log)
	e.Init()

	// Cancel arrives from a transport callback while job 0 shifts.
	t0.onTransfer = func(byte) { e.Cancel(0) }

	err := e.SyncTransmit(0)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err=%v, want ErrCanceled", err)
	}
	if got := e.GetSequenceResult(0); got != SeqCanceled {
		t.Fatalf("sequence result=%v, want CANCELED", got)
	}

	// Job 0 completed before the cancel took effect, job 1 never ran.
	if got := e.GetJobResult(0); got != JobOK {
		t.Fatalf("job 0 result=%v, want OK", got)
	}
	if got := e.GetJobResult(1); got != JobPending {
		t.Fatalf("job 1 result=%v, want PENDING", got)
	}
}

func TestCancel_OutOfRangeIgnored(t *testing.T) {
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)
	e.Cancel(42) // must not panic
}

func TestTransmit_RejectedWhileInFlight(t *testing.T) {
	e, t0, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)
	e.Init()

	var reentrant error
	t0.onTransfer = func(byte) {
		reentrant = e.SyncTransmit(0)
	}

	if err := e.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit err=%v", err)
	}
	if !errors.Is(reentrant, ErrBusy) {
		t.Fatalf("reentrant err=%v, want ErrBusy", reentrant)
	}
}

func TestGetStatus_ObservesBusy(t *testing.T) {
	e, t0, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)
	e.Init()

	var during Status
	t0.onTransfer = func(byte) { during = e.GetStatus() }

	if err := e.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit err=%v", err)
	}
	if during != StatusBusy {
		t.Fatalf("status during shift=%v, want BUSY", during)
	}
	if got := e.GetStatus(); got != StatusIdle {
		t.Fatalf("status after shift=%v, want IDLE", got)
	}
}

func TestGetStatus_Lifecycle(t *testing.T) {
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)

	if got := e.GetStatus(); got != StatusUninit {
		t.Fatalf("status before init=%v, want UNINIT", got)
	}

	e.Init()
	if got := e.GetStatus(); got != StatusIdle {
		t.Fatalf("status after init=%v, want IDLE", got)
	}

	if err := e.DeInit(); err != nil {
		t.Fatalf("DeInit err=%v", err)
	}
	if got := e.GetStatus(); got != StatusUninit {
		t.Fatalf("status after deinit=%v, want UNINIT", got)
	}
}

func TestDeInit_ReportsFailure(t *testing.T) {
	e, t0, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)
	e.Init()

	t0.closeErr = errors.New("still enabled")
	if err := e.DeInit(); !errors.Is(err, ErrDeInit) {
		t.Fatalf("err=%v, want ErrDeInit", err)
	}
}

func TestWriteIB(t *testing.T) {
	var log []string
	e, _, _ := buildEngine(t, twoChannelConfig(), Options{}, &log)
	e.Init()

	if err := e.WriteIB(0, nil); !errors.Is(err, ErrNilBuffer) {
		t.Fatalf("err=%v, want ErrNilBuffer", err)
	}
	if err := e.WriteIB(9, []byte{0x42}); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("err=%v, want ErrInvalidChannel", err)
	}
	if err := e.WriteIB(1, []byte{0x42}); err != nil {
		t.Fatalf("WriteIB err=%v", err)
	}
	if len(log) != 1 || log[0] != "ch1:42" {
		t.Fatalf("transfer log=%v", log)
	}
}

func TestReadIB(t *testing.T) {
	e, t0, _ := buildEngine(t, twoChannelConfig(), Options{}, nil)
	t0.rx = 0x5A
	e.Init()

	if _, err := e.ReadIB(9); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("err=%v, want ErrInvalidChannel", err)
	}

	b, err := e.ReadIB(0)
	if err != nil {
		t.Fatalf("ReadIB err=%v", err)
	}
	if b != 0x5A {
		t.Fatalf("ReadIB=%02X, want 5A", b)
	}
}

func TestJob_ReceiveBuffer(t *testing.T) {
	rx := make([]byte, 2)
	cfg := Config{
		Channels: []ChannelConfig{{ID: 0}},
		Jobs: []JobConfig{
			{Channel: 0, Tx: []byte{0x01, 0x02}, Rx: rx},
		},
		Sequences: []SequenceConfig{
			{Jobs: []JobID{0}},
		},
	}

	tr := newFakeTransport("ch0", nil)
	tr.rx = 0x77
	e, err := New(cfg, map[ChannelID]Transport{0: tr}, Options{})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	e.Init()

	if err := e.SyncTransmit(0); err != nil {
		t.Fatalf("SyncTransmit err=%v", err)
	}
	if rx[0] != 0x77 || rx[1] != 0x77 {
		t.Fatalf("rx=%v, want both 0x77", rx)
	}
}

func TestNew_Validation(t *testing.T) {
	base := twoChannelConfig()

	bad := base
	bad.Sequences = []SequenceConfig{{Jobs: []JobID{0, 5}}}
	if _, err := New(bad, nil, Options{}); err == nil {
		t.Fatalf("expected error for unknown job reference")
	}

	bad = base
	bad.Sequences = []SequenceConfig{{Jobs: []JobID{0, 1, 0}}}
	if _, err := New(bad, nil, Options{}); err == nil {
		t.Fatalf("expected error for job count over bound")
	}

	bad = base
	bad.Channels = []ChannelConfig{{ID: 1}, {ID: 0}}
	if _, err := New(bad, nil, Options{}); err == nil {
		t.Fatalf("expected error for non-dense channel ids")
	}

	bad = base
	bad.Channels = nil
	if _, err := New(bad, nil, Options{}); err == nil {
		t.Fatalf("expected error for missing channels")
	}
}
