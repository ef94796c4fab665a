// Package loopback is an in-memory TNC backend satisfying tnc.Backend
// without any socket or pty, for fast unit tests of the segmentation
// and session layers (spec §8 properties) — a supplemented feature
// grounded on the teacher's layered backend design (kissnet.go,
// kissserial.go and kiss.go all implementing the same send/receive
// shape over different transports; this is a fourth transport, a Go
// channel pair).
package loopback

import (
	"context"
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/tnc"
)

// Pair returns two connected loopback backends: frames sent on one
// are received on the other.
func Pair() (a, b *Backend) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a = &Backend{out: ab, in: ba, connected: true}
	b = &Backend{out: ba, in: ab, connected: true}
	return a, b
}

// Backend is one end of an in-memory loopback link.
type Backend struct {
	out       chan []byte
	in        chan []byte
	connected bool
	pttOn     bool
	dropNext  bool
}

func (b *Backend) Connect(ctx context.Context) error {
	b.connected = true
	return nil
}

func (b *Backend) Disconnect() error {
	b.connected = false
	return nil
}

func (b *Backend) SendFrame(frame []byte) error {
	if !b.connected {
		return linkerr.ErrTransportClosed
	}
	if b.dropNext {
		b.dropNext = false
		return nil
	}
	cp := append([]byte(nil), frame...)
	select {
	case b.out <- cp:
		return nil
	default:
		return linkerr.ErrWriteRefused
	}
}

func (b *Backend) ReceiveFrame(timeout time.Duration) ([]byte, error) {
	if !b.connected {
		return nil, linkerr.ErrTransportClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-b.in:
		return f, nil
	case <-timer.C:
		return nil, linkerr.ErrTimeout
	}
}

// SetPTT records the requested state for test assertions (spec §8
// invariant 5, half-duplex discipline) without touching any hardware.
func (b *Backend) SetPTT(on bool) error {
	b.pttOn = on
	return nil
}

// PTTOn reports the last SetPTT state, for test assertions.
func (b *Backend) PTTOn() bool {
	return b.pttOn
}

// DropNext causes the next frame sent through this end to be silently
// discarded instead of delivered, simulating the lossy radio channel
// for scenarios S2/S3 in spec §8.
func (b *Backend) DropNext() {
	b.dropNext = true
}

var (
	_ tnc.Backend   = (*Backend)(nil)
	_ tnc.PTTSetter = (*Backend)(nil)
)
