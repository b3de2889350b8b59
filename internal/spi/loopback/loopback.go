// internal/spi/loopback/loopback.go

// Package loopback provides an in-memory SPI transport: every unit shifted
// out is shifted back in. It backs the daemon's dry-run mode and tests that
// need a bus without hardware.
package loopback

import "errors"

// Transport echoes transmitted units back to the receiver.
type Transport struct {
	closed bool

	// FailAfter, when >= 0, makes every transfer past that many accepted
	// units fail. Default -1: never fail.
	FailAfter int

	accepted int
}

// New creates an open loopback transport.
func New() *Transport {
	return &Transport{FailAfter: -1}
}

// Transfer echoes b. It fails once the configured failure point is reached
// or after Close.
func (t *Transport) Transfer(b byte) (byte, error) {
	if t.closed {
		return 0, errors.New("loopback: transport closed")
	}
	if t.FailAfter >= 0 && t.accepted >= t.FailAfter {
		return 0, errors.New("loopback: transfer failure injected")
	}
	t.accepted++
	return b, nil
}

// Close disables the transport.
func (t *Transport) Close() error {
	t.closed = true
	return nil
}
