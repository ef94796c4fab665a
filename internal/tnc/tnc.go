// Package tnc defines the uniform TNC backend capability interface
// (spec §4.4) implemented by KISS-over-TCP, KISS-over-serial, and a
// test loopback; the VARA modem backend (internal/vara) bypasses this
// interface entirely below the session layer, per spec §4.7, and is
// not one of these implementations.
//
// Grounded on the teacher's three parallel KISS transports
// (src/kissnet.go for TCP, src/kissserial.go for serial, src/kiss.go
// for a pty loopback) which all funnel through the same
// encapsulate/unwrap pair in src/kiss_frame.go — generalized here into
// one Go interface instead of three files each reimplementing
// attach/detach plumbing, per §9's "do not leak backend-specific types
// above §4.4."
package tnc

import (
	"context"
	"time"
)

// Backend is the capability interface every non-VARA transport
// implements: send/receive one AX.25 frame at a time, transparently
// KISS-encoding/decoding. PTT control is not part of it; a backend that
// exposes PTT does so through the separate PTTSetter interface below.
type Backend interface {
	// Connect establishes the underlying transport (TCP dial, serial
	// port open, ...). Calling Connect on an already-connected backend
	// is a no-op.
	Connect(ctx context.Context) error

	// Disconnect tears down the transport. Idempotent.
	Disconnect() error

	// SendFrame pushes one AX.25 frame through the link, KISS-encoding
	// it for the wire. Returns only after the backend reports the
	// bytes have left the software queue (spec §4.4) — for a TCP/serial
	// backend that is "after the Write syscall returns", since the
	// kernel socket/tty buffer is the next queue downstream and this
	// core has no visibility into it.
	SendFrame(frame []byte) error

	// ReceiveFrame returns the next validated AX.25 frame, or
	// linkerr.ErrTimeout if none arrives within timeout.
	ReceiveFrame(timeout time.Duration) ([]byte, error)
}

// PTTSetter is implemented by backends where PTT is asserted
// externally by the scheduler (§4.8) rather than owned by the modem
// itself. Neither KISS-over-TCP nor KISS-over-serial implements it
// today: both leave PTT to the separate ptt.Backend the scheduler
// drives independently of the TNC connection. The VARA adapter must
// never implement it, since §4.7 forbids it from asserting PTT
// directly.
type PTTSetter interface {
	SetPTT(on bool) error
}
