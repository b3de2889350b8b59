// internal/spi/transport.go
package spi

// Transport shifts data units through one physical bus instance.
// This is the exact contract the engine uses; implementations own their
// readiness polling and deadline handling. One Transport per channel.
type Transport interface {
	// Transfer shifts one byte out and returns the byte shifted in.
	// It must not accept a new byte before the previous transfer's
	// transmit-ready condition holds. A single failed readiness check
	// is reported as an error immediately; no retry.
	Transfer(b byte) (byte, error)

	// Close releases the underlying bus. After Close, the transport
	// must report itself disabled.
	Close() error
}
