package tnc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/term"

	"github.com/hamstr-radio/hamstr-link/internal/kiss"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

// KISSSerial is the KISS-over-serial backend (spec §4.4b), grounded
// on the teacher's src/kissserial.go + src/serial_port.go pairing of
// github.com/pkg/term for the tty and a background read thread.
type KISSSerial struct {
	device string
	speed  int

	fd      *term.Term
	dec     *kiss.Decoder
	frames  chan []byte
	readErr chan error
	done    chan struct{}
}

// NewKISSSerial returns an unconnected backend for the given device
// (e.g. "/dev/ttyUSB0") and baud rate.
func NewKISSSerial(device string, speed int) *KISSSerial {
	return &KISSSerial{device: device, speed: speed}
}

func (k *KISSSerial) Connect(ctx context.Context) error {
	if k.fd != nil {
		return nil
	}
	fd, err := term.Open(k.device, term.RawMode)
	if err != nil {
		return linkerr.NewBackendError(fmt.Errorf("kiss-serial: open %s: %w", k.device, err))
	}
	if k.speed > 0 {
		if err := fd.SetSpeed(k.speed); err != nil {
			_ = fd.Close()
			return linkerr.NewBackendError(fmt.Errorf("kiss-serial: set speed: %w", err))
		}
	}
	k.fd = fd
	k.dec = kiss.NewDecoder()
	k.frames = make(chan []byte, kissFrameQueueDepth)
	k.readErr = make(chan error, 1)
	k.done = make(chan struct{})

	go k.readLoop()
	return nil
}

func (k *KISSSerial) readLoop() {
	buf := make([]byte, 512)
	for {
		n, err := k.fd.Read(buf)
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

func (k *KISSSerial) Disconnect() error {
	if k.fd == nil {
		return nil
	}
	close(k.done)
	err := k.fd.Close()
	k.fd = nil
	return err
}

func (k *KISSSerial) SendFrame(frame []byte) error {
	if k.fd == nil {
		return linkerr.ErrTransportClosed
	}
	encoded := kiss.Encode(0, frame)
	if _, err := k.fd.Write(encoded); err != nil {
		return linkerr.NewBackendError(fmt.Errorf("kiss-serial: write: %w", err))
	}
	return nil
}

func (k *KISSSerial) ReceiveFrame(timeout time.Duration) ([]byte, error) {
	if k.fd == nil {
		return nil, linkerr.ErrTransportClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-k.frames:
		return f, nil
	case err := <-k.readErr:
		return nil, linkerr.NewBackendError(fmt.Errorf("kiss-serial: read: %w", err))
	case <-timer.C:
		return nil, linkerr.ErrTimeout
	}
}

// Fd exposes the underlying descriptor so an RTS/DTR PTT backend
// (internal/ptt.SerialBackend) can share this same serial port for
// keying, the way the teacher's src/ptt.go RTS_ON/RTS_OFF operate on
// the same fd src/kissserial.go opened for data.
func (k *KISSSerial) Fd() uintptr {
	if k.fd == nil {
		return 0
	}
	return k.fd.Fd()
}

var _ Backend = (*KISSSerial)(nil)
