package tnc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/kiss"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

// KISSTCP is the KISS-over-TCP backend (spec §4.4a), dialing a TNC's
// KISS TCP port (the teacher's default 8001, src/kissnet.go) and
// running a background reader task feeding a bounded SPSC queue, per
// spec §5's "a backend-reader task may run in parallel to feed an
// internal frame queue... the reader never mutates session state
// directly."
type KISSTCP struct {
	addr string

	conn    net.Conn
	dec     *kiss.Decoder
	frames  chan []byte
	readErr chan error
	done    chan struct{}
}

// NewKISSTCP returns an unconnected backend dialing host:port on Connect.
func NewKISSTCP(host string, port int) *KISSTCP {
	return &KISSTCP{addr: net.JoinHostPort(host, fmt.Sprint(port))}
}

const kissFrameQueueDepth = 64

func (k *KISSTCP) Connect(ctx context.Context) error {
	if k.conn != nil {
		return nil
	}
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", k.addr)
	if err != nil {
		return linkerr.NewBackendError(fmt.Errorf("kiss-tcp: dial %s: %w", k.addr, err))
	}
	k.conn = conn
	k.dec = kiss.NewDecoder()
	k.frames = make(chan []byte, kissFrameQueueDepth)
	k.readErr = make(chan error, 1)
	k.done = make(chan struct{})

	go k.readLoop()
	return nil
}

func (k *KISSTCP) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := k.conn.Read(buf)
		if n > 0 {
			frames, ferr := k.dec.Feed(buf[:n])
			for _, f := range frames {
				select {
				case k.frames <- f:
				case <-k.done:
					return
				}
			}
			if ferr != nil {
				// Malformed escape: Feed stops at the bad frame, so the
				// bytes after it in this read are dropped with it; the
				// decoder stays in its collecting state and reading goes on.
				continue
			}
		}
		if err != nil {
			select {
			case k.readErr <- err:
			default:
			}
			return
		}
	}
}

func (k *KISSTCP) Disconnect() error {
	if k.conn == nil {
		return nil
	}
	close(k.done)
	err := k.conn.Close()
	k.conn = nil
	return err
}

func (k *KISSTCP) SendFrame(frame []byte) error {
	if k.conn == nil {
		return linkerr.ErrTransportClosed
	}
	encoded := kiss.Encode(0, frame)
	if _, err := k.conn.Write(encoded); err != nil {
		return linkerr.NewBackendError(fmt.Errorf("kiss-tcp: write: %w", err))
	}
	return nil
}

func (k *KISSTCP) ReceiveFrame(timeout time.Duration) ([]byte, error) {
	if k.conn == nil {
		return nil, linkerr.ErrTransportClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-k.frames:
		return f, nil
	case err := <-k.readErr:
		return nil, linkerr.NewBackendError(fmt.Errorf("kiss-tcp: read: %w", err))
	case <-timer.C:
		return nil, linkerr.ErrTimeout
	}
}

var _ Backend = (*KISSTCP)(nil)
