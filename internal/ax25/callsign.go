// Package ax25 implements AX.25 unnumbered-information (UI) frame
// encode/decode (spec §4.2, §6): the addressing header, the FCS
// trailer, and nothing of connected-mode AX.25 — this core never
// builds SABM/DISC/I/S frames.
//
// Grounded on the teacher's src/ax25_pad.go address field encoding
// (callsign bytes shifted left one bit, SSID byte with the AX.25
// reserved bits and end-of-address flag) and src/ax25_pad2.go's
// general-purpose address handling, rewritten without the cgo
// C.packet_t/C.uchar buffer-of-raw-bytes representation the teacher's
// literal port used, in favor of a small Callsign value type and an
// explicit Frame struct.
package ax25

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

// Callsign is a station address: 1-6 uppercase alphanumerics plus an
// SSID in 0..15, per spec §3.
type Callsign struct {
	Call string
	SSID int
}

func (c Callsign) String() string {
	if c.SSID == 0 {
		return c.Call
	}
	return fmt.Sprintf("%s-%d", c.Call, c.SSID)
}

// ParseCallsign parses "CALL" or "CALL-SSID" text, the form used in
// configuration and in log lines like "[SESSION] CONNECTED to
// CALL1-1" (spec §6).
func ParseCallsign(s string) (Callsign, error) {
	call, ssidText, hasSSID := strings.Cut(strings.ToUpper(strings.TrimSpace(s)), "-")
	call = strings.TrimSpace(call)
	if len(call) == 0 || len(call) > 6 {
		return Callsign{}, fmt.Errorf("ax25: callsign %q must be 1-6 characters", s)
	}
	for _, r := range call {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return Callsign{}, fmt.Errorf("ax25: callsign %q has non-alphanumeric character %q", s, r)
		}
	}
	ssid := 0
	if hasSSID {
		n, err := strconv.Atoi(ssidText)
		if err != nil {
			return Callsign{}, fmt.Errorf("ax25: bad ssid in %q: %w", s, err)
		}
		ssid = n
	}
	if ssid < 0 || ssid > 15 {
		return Callsign{}, fmt.Errorf("ax25: ssid %d out of range 0..15", ssid)
	}
	return Callsign{Call: call, SSID: ssid}, nil
}

// addrFieldLen is the fixed 7-octet AX.25 address field: 6 shifted
// callsign bytes plus one SSID/control octet.
const addrFieldLen = 7

// encodeAddr writes one 7-byte address field. endOfAddress sets the
// low bit of the final octet (set on the source address of a 2-address
// UI frame, since there are no digipeaters in this core — spec's
// Non-goals exclude multi-peer routing). command sets the high "C"
// bit, conventionally 1 on the destination and 0 on the source for a
// command frame, mirroring src/ax25_pad.go's address-octet layout.
func encodeAddr(c Callsign, command, endOfAddress bool) ([addrFieldLen]byte, error) {
	var out [addrFieldLen]byte
	if len(c.Call) == 0 || len(c.Call) > 6 {
		return out, fmt.Errorf("ax25: callsign %q must be 1-6 characters", c.Call)
	}
	if c.SSID < 0 || c.SSID > 15 {
		return out, fmt.Errorf("ax25: ssid %d out of range 0..15", c.SSID)
	}
	padded := c.Call + strings.Repeat(" ", 6-len(c.Call))
	for i := 0; i < 6; i++ {
		out[i] = padded[i] << 1
	}

	ssidByte := byte(0x60) | byte(c.SSID<<1) // reserved bits (R R) = 1 1
	if command {
		ssidByte |= 0x80
	}
	if endOfAddress {
		ssidByte |= 0x01
	}
	out[6] = ssidByte
	return out, nil
}

func decodeAddr(b []byte) (Callsign, bool, error) {
	if len(b) < addrFieldLen {
		return Callsign{}, false, linkerr.ErrTruncated
	}
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		ch := (b[i] >> 1) & 0x7f
		sb.WriteByte(ch)
	}
	call := strings.TrimRight(sb.String(), " ")
	ssid := int((b[6] >> 1) & 0x0f)
	endOfAddress := b[6]&0x01 != 0
	return Callsign{Call: call, SSID: ssid}, endOfAddress, nil
}
