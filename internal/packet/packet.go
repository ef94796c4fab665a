// Package packet implements the HAMSTR packet header (spec §3, §4.3,
// §6): the frame embedded inside an AX.25 UI payload, independent of
// the AX.25 FCS ("belt-and-braces against TNC-level corruption").
//
// Grounded on the teacher's layered framing approach in
// src/ax25_pad2.go (a fixed header ahead of an opaque info field) and
// on the CRC16 bit-manipulation style in
// _examples/other_examples/2ef70d6e_amken3d-gopper__protocol-transport.go.go,
// which trails its own messages with a CRC16 the same way this
// packet's body is trailed by crc16(body).
package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

// Type is the one-byte message type enumerated in spec §3.
type Type byte

const (
	TypeConnect Type = iota + 1
	TypeConnectAck
	TypeReady
	TypeDataRequest
	TypeNote
	TypeResponse
	TypeAck
	TypeDone
	TypeDoneAck
	TypeDisconnect
	TypeDisconnectAck
	TypePktMissing
	TypeRetry
	TypeZapKind9734Request
	TypeNWCPaymentRequest
	TypeZapSuccessConfirm
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeConnect:
		return "CONNECT"
	case TypeConnectAck:
		return "CONNECT_ACK"
	case TypeReady:
		return "READY"
	case TypeDataRequest:
		return "DATA_REQUEST"
	case TypeNote:
		return "NOTE"
	case TypeResponse:
		return "RESPONSE"
	case TypeAck:
		return "ACK"
	case TypeDone:
		return "DONE"
	case TypeDoneAck:
		return "DONE_ACK"
	case TypeDisconnect:
		return "DISCONNECT"
	case TypeDisconnectAck:
		return "DISCONNECT_ACK"
	case TypePktMissing:
		return "PKT_MISSING"
	case TypeRetry:
		return "RETRY"
	case TypeZapKind9734Request:
		return "ZAP_KIND9734_REQUEST"
	case TypeNWCPaymentRequest:
		return "NWC_PAYMENT_REQUEST"
	case TypeZapSuccessConfirm:
		return "ZAP_SUCCESS_CONFIRM"
	case TypeError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// SessionIDLen is the fixed 8-hex-char session id length from spec §3/§6.
const SessionIDLen = 8

// headerLen is session_id(8) + type(1) + seq(2 BE) + total(2 BE).
const headerLen = SessionIDLen + 1 + 2 + 2

// crcLen is the trailing crc16(body).
const crcLen = 2

// Packet is one on-air HAMSTR packet: { session_id, type, seq, total,
// body, crc } per spec §3.
type Packet struct {
	SessionID string // exactly SessionIDLen ASCII bytes
	Type      Type
	Seq       uint16 // 1-based
	Total     uint16 // fixed at first transmission of the message; 1 for control messages
	Body      []byte
}

// Marshal serializes a Packet into its wire form: header, body, then
// crc16 of the body alone (independent of any AX.25-level FCS).
func Marshal(p Packet) ([]byte, error) {
	if len(p.SessionID) != SessionIDLen {
		return nil, fmt.Errorf("packet: session id %q must be %d bytes", p.SessionID, SessionIDLen)
	}
	out := make([]byte, 0, headerLen+len(p.Body)+crcLen)
	out = append(out, []byte(p.SessionID)...)
	out = append(out, byte(p.Type))

	var seqBuf, totalBuf [2]byte
	binary.BigEndian.PutUint16(seqBuf[:], p.Seq)
	binary.BigEndian.PutUint16(totalBuf[:], p.Total)
	out = append(out, seqBuf[:]...)
	out = append(out, totalBuf[:]...)
	out = append(out, p.Body...)

	crc := bodyCRC(p.Body)
	var crcBuf [2]byte
	binary.BigEndian.PutUint16(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	return out, nil
}

// Unmarshal parses a wire-form packet, validating the body CRC. A CRC
// mismatch is reported via linkerr.ErrBadFCS's packet-layer sibling:
// per spec §4.5, CRC failures are silently discarded by receivers, so
// callers should treat this error as "drop, do not ACK, do not error
// the session" rather than a protocol violation.
func Unmarshal(raw []byte) (Packet, error) {
	if len(raw) < headerLen+crcLen {
		return Packet{}, linkerr.ErrTruncated
	}

	sessionID := string(raw[0:SessionIDLen])
	typ := Type(raw[SessionIDLen])
	seq := binary.BigEndian.Uint16(raw[SessionIDLen+1 : SessionIDLen+3])
	total := binary.BigEndian.Uint16(raw[SessionIDLen+3 : SessionIDLen+5])

	body := raw[headerLen : len(raw)-crcLen]
	wantCRC := binary.BigEndian.Uint16(raw[len(raw)-crcLen:])

	if bodyCRC(body) != wantCRC {
		return Packet{}, errBadBodyCRC
	}

	return Packet{
		SessionID: sessionID,
		Type:      typ,
		Seq:       seq,
		Total:     total,
		Body:      append([]byte{}, body...),
	}, nil
}

var errBadBodyCRC = fmt.Errorf("packet: body crc mismatch")

// IsBadCRC reports whether err is the body-CRC-mismatch error from
// Unmarshal, indistinguishable to upper layers from an AX.25 FCS
// failure per spec §4.5 ("both silently discarded; no NACK").
func IsBadCRC(err error) bool {
	return err == errBadBodyCRC
}

// bodyCRC is CRC-16/CCITT-FALSE over the body bytes alone, matching
// the big-endian encoding style of the CRC16 trailer in
// _examples/other_examples's gopper transport.go ("actualCRC :=
// CRC16(...)" compared against a big-endian two-byte trailer), kept
// independent of the AX.25-layer FCS polynomial so a TNC-level bit
// error and a HAMSTR-layer bit error are each caught once.
func bodyCRC(body []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range body {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
