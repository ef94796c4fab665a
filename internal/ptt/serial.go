package ptt

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Line selects which serial control line keys the radio, mirroring
// the teacher's PTT_LINE_RTS / PTT_LINE_DTR choice in src/ptt.go.
type Line int

const (
	LineRTS Line = iota
	LineDTR
)

// SerialBackend asserts PTT by toggling the RTS or DTR modem control
// line of an already-open serial file descriptor, grounded directly
// on src/ptt.go's _TIOCM/RTS_ON/RTS_OFF/DTR_ON/DTR_OFF helpers (a
// TIOCMGET/TIOCMSET ioctl pair via golang.org/x/sys/unix). Often the
// same fd as the KISS-over-serial data backend, since many TNCs are
// actually a bare serial-to-radio interface with no independent PTT
// line.
type SerialBackend struct {
	fd      uintptr
	line    Line
	invert  bool // some interfaces wire PTT active-low
}

// NewSerialBackend drives PTT via fd's RTS or DTR line. invert
// reverses the on/off sense, matching src/ptt.go's handling of
// "invert RTS" interfaces.
func NewSerialBackend(fd uintptr, line Line, invert bool) *SerialBackend {
	return &SerialBackend{fd: fd, line: line, invert: invert}
}

func (s *SerialBackend) Assert(on bool) error {
	want := on != s.invert

	var bit int
	switch s.line {
	case LineRTS:
		bit = unix.TIOCM_RTS
	case LineDTR:
		bit = unix.TIOCM_DTR
	default:
		return fmt.Errorf("ptt: unknown serial line %d", s.line)
	}

	status, err := unix.IoctlGetInt(int(s.fd), unix.TIOCMGET)
	if err != nil {
		return fmt.Errorf("ptt: TIOCMGET: %w", err)
	}
	if want {
		status |= bit
	} else {
		status &^= bit
	}
	if err := unix.IoctlSetInt(int(s.fd), unix.TIOCMSET, status); err != nil {
		return fmt.Errorf("ptt: TIOCMSET: %w", err)
	}
	return nil
}

var _ Backend = (*SerialBackend)(nil)
