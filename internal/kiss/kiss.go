// Package kiss implements the KISS framing protocol (spec §4.1,
// §6): FEND/FESC byte-stuffing over a byte stream, carrying raw AX.25
// frames between the session core and a TNC.
//
// Grounded on the teacher's src/kiss_frame.go (kiss_encapsulate /
// kiss_unwrap and the KS_SEARCHING/KS_COLLECTING decoder state
// machine), rewritten without the cgo C.uchar/C.int buffer types the
// teacher's literal port of kiss_frame.c used, as a resumable decoder
// over arbitrary chunk boundaries from a stream.
package kiss

import (
	"bytes"

	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

// Special bytes per the KISS spec (http://www.ka9q.net/papers/kiss.html),
// unchanged from the teacher's src/kiss_frame.go constants.
const (
	FEND  = 0xC0
	FESC  = 0xDB
	TFEND = 0xDC
	TFESC = 0xDD
)

// CmdDataFrame is the only KISS command byte this core emits or
// expects; TXDELAY/Persistence/SlotTime/TXtail/FullDuplex/SetHardware
// are TNC tuning commands out of scope for the link core (they would
// be issued once at startup by a higher layer, not per-frame).
const CmdDataFrame = 0x00

// MaxFrameLen bounds a single decoded KISS frame, matching the
// teacher's MAX_KISS_LEN guard against a runaway stream that never
// produces a FEND.
const MaxFrameLen = 2048

// Encode wraps a raw AX.25 frame into a KISS frame: FEND, then the
// command byte (channel<<4 | CmdDataFrame, built here from channel)
// and the payload, both byte-stuffed, then FEND.
func Encode(channel byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(FEND)

	cmd := (channel << 4) | CmdDataFrame
	writeStuffed(&buf, cmd)
	for _, b := range payload {
		writeStuffed(&buf, b)
	}

	buf.WriteByte(FEND)
	return buf.Bytes()
}

func writeStuffed(buf *bytes.Buffer, b byte) {
	switch b {
	case FEND:
		buf.WriteByte(FESC)
		buf.WriteByte(TFEND)
	case FESC:
		buf.WriteByte(FESC)
		buf.WriteByte(TFESC)
	default:
		buf.WriteByte(b)
	}
}

// state is the decoder's resumability state, mirroring the teacher's
// kiss_state_e (KS_SEARCHING / KS_COLLECTING); zero value is
// "searching for a FEND", as the teacher's comment requires for the
// all-zero initial struct.
type state int

const (
	searching state = iota
	collecting
)

// Decoder is a resumable KISS frame decoder: feed it bytes as they
// arrive from the transport in any chunking, and it yields one
// decoded AX.25 frame per FEND-delimited non-empty segment. Empty or
// malformed segments are silently dropped, per spec §4.1.
type Decoder struct {
	st  state
	buf []byte
}

// NewDecoder returns a decoder ready to scan from a clean state.
func NewDecoder() *Decoder {
	return &Decoder{st: searching}
}

// Feed appends newData to the decoder and returns every complete
// frame (command byte plus unescaped AX.25 payload) found within it.
// An FESC followed by anything other than TFEND/TFESC fails the whole
// Feed call with linkerr.InvalidEscapeError; frames already decoded
// before the failing byte are still returned.
func (d *Decoder) Feed(newData []byte) (frames [][]byte, err error) {
	for _, b := range newData {
		switch d.st {
		case searching:
			if b == FEND {
				d.st = collecting
				d.buf = d.buf[:0]
			}
			// Anything else before the first FEND is noise; drop it.
		case collecting:
			if b == FEND {
				if len(d.buf) > 0 {
					frame, ferr := unstuff(d.buf)
					d.buf = d.buf[:0]
					if ferr != nil {
						return frames, ferr
					}
					frames = append(frames, frame)
				}
				// Consecutive FENDs (empty segment) are dropped silently
				// and we stay in collecting, ready for the next frame.
				continue
			}
			if len(d.buf) >= MaxFrameLen {
				// Runaway frame with no FEND in sight; drop it and
				// resume searching, matching the teacher's overflow
				// handling in kiss_frame.c rather than growing forever.
				d.st = searching
				d.buf = d.buf[:0]
				continue
			}
			d.buf = append(d.buf, b)
		}
	}
	return frames, nil
}

// unstuff reverses byte-stuffing over one FEND-delimited segment.
func unstuff(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		b := in[i]
		if b != FESC {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(in) {
			return nil, &linkerr.InvalidEscapeError{Got: 0}
		}
		switch in[i] {
		case TFEND:
			out = append(out, FEND)
		case TFESC:
			out = append(out, FESC)
		default:
			return nil, &linkerr.InvalidEscapeError{Got: in[i]}
		}
	}
	return out, nil
}
