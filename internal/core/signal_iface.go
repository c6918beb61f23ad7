package core

import "time"

// Frame is one encoded protocol message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking.
	TrySend(Frame) error
	// Close flushes queued frames and closes the transport. Safe to call twice.
	Close()
	// CloseAfter schedules Close. The pending close is cancelled when the
	// connection closes on its own first.
	CloseAfter(time.Duration)
}
