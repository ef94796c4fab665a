package ax25

import (
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

// Control and PID octets for a UI frame carrying no layer-3 protocol,
// unchanged from spec §4.2/§6 and from src/ax25_pad.go's
// AX25_UI_FRAME / AX25_PID_NO_LAYER_3 constants.
const (
	ControlUI    = 0x03
	PIDNoLayer3  = 0xF0
	headerLen    = addrFieldLen*2 + 2 // dest + src + control + pid
	minFrameLen  = headerLen + 2      // + 2-byte FCS trailer
)

// Frame is a parsed AX.25 UI frame: addressing plus opaque payload
// (the HAMSTR packet bytes, from the layer above).
type Frame struct {
	Dest    Callsign
	Src     Callsign
	Payload []byte
}

// Encode builds the on-air byte sequence: destination address, source
// address (command/response bits per spec §4.2: command set on
// destination, cleared-then-end-of-address on source since there are
// no digipeaters), control=0x03, PID=0xF0, payload, FCS trailer.
func Encode(f Frame) ([]byte, error) {
	dest, err := encodeAddr(f.Dest, true, false)
	if err != nil {
		return nil, err
	}
	src, err := encodeAddr(f.Src, false, true)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerLen+len(f.Payload)+2)
	out = append(out, dest[:]...)
	out = append(out, src[:]...)
	out = append(out, ControlUI, PIDNoLayer3)
	out = append(out, f.Payload...)
	return AppendFCS(out), nil
}

// Decode parses an on-air byte sequence into a Frame, validating the
// FCS trailer. Returns linkerr.ErrTruncated for frames shorter than
// the minimum header+FCS length, and linkerr.ErrBadFCS on checksum
// mismatch, per spec §4.2.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < minFrameLen {
		return Frame{}, linkerr.ErrTruncated
	}
	if !VerifyFCS(raw) {
		return Frame{}, linkerr.ErrBadFCS
	}

	body := raw[:len(raw)-2]

	dest, _, err := decodeAddr(body[0:addrFieldLen])
	if err != nil {
		return Frame{}, err
	}
	src, _, err := decodeAddr(body[addrFieldLen : 2*addrFieldLen])
	if err != nil {
		return Frame{}, err
	}

	rest := body[2*addrFieldLen:]
	if len(rest) < 2 {
		return Frame{}, linkerr.ErrTruncated
	}
	// control/PID values are not otherwise validated: this core only
	// ever emits UI/no-layer-3 frames, but a peer TNC forwarding other
	// traffic on a shared channel should not crash the decoder.
	payload := rest[2:]

	return Frame{Dest: dest, Src: src, Payload: payload}, nil
}
