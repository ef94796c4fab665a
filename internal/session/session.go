// Package session implements the session state machine (spec §4.6):
// connect / data-request / ready / transfer / done / disconnect,
// role-aware (initiator vs. responder), built on top of
// internal/segment's reliable delivery and internal/sched's PTT-gated
// transport.
//
// Grounded on the teacher's dlq/frame_queue state handling in
// src/dlq.go and src/ax25_link.go's connected-mode state names
// (CONNECTED, DISCONNECTED, ...), redesigned per spec §9's "sum type
// for state plus pure transition function" note: Phase is a small
// closed enum and every transition is a named method, not a web of
// boolean flags.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/ax25"
	"github.com/hamstr-radio/hamstr-link/internal/config"
	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
	"github.com/hamstr-radio/hamstr-link/internal/segment"
)

// Phase is one state of the session state machine (spec §4.6 table).
type Phase string

const (
	PhaseIdle          Phase = "IDLE"
	PhaseConnecting    Phase = "CONNECTING"
	PhaseConnected     Phase = "CONNECTED"
	PhaseRequesting    Phase = "REQUESTING"
	PhaseReadyTX       Phase = "READY_TX"
	PhaseReceiving     Phase = "RECEIVING"
	PhaseDelivered     Phase = "DELIVERED"
	PhaseDisconnecting Phase = "DISCONNECTING"
	PhaseClosed        Phase = "CLOSED"
	PhaseFailed        Phase = "FAILED"
)

// Role distinguishes the initiator (opens the session, drives
// request/response) from the responder (accepts, serves payloads).
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Session is the single mutable state object (spec §3 "Session" data
// model), mutated only by the goroutine calling its methods — per
// spec §5 there is one session active per TNC, driven by one caller,
// so no internal locking is needed beyond the cancellation flag.
type Session struct {
	role   Role
	local  ax25.Callsign
	remote ax25.Callsign
	id     string

	transport segment.Transport
	cfg       config.Config
	log       *eventlog.Bus

	phase Phase

	cancelled atomic.Bool
	cancelCh  chan struct{}

	disconnectSent bool
}

// NewInitiator creates a session that will open a connection to
// remote and drive request/response exchanges.
func NewInitiator(transport segment.Transport, local, remote ax25.Callsign, cfg config.Config, log *eventlog.Bus) *Session {
	return &Session{
		role: RoleInitiator, local: local, remote: remote,
		transport: transport, cfg: cfg, log: log,
		phase: PhaseIdle, cancelCh: make(chan struct{}),
	}
}

// NewResponder creates a session bound to an already-known session id
// (assigned by the remote initiator's CONNECT), ready to Serve.
func NewResponder(transport segment.Transport, local, remote ax25.Callsign, id string, cfg config.Config, log *eventlog.Bus) *Session {
	return &Session{
		role: RoleResponder, local: local, remote: remote, id: id,
		transport: transport, cfg: cfg, log: log,
		phase: PhaseConnected, cancelCh: make(chan struct{}),
	}
}

// Phase reports the session's current state.
func (s *Session) Phase() Phase { return s.phase }

// ID reports the assigned session id (empty before CONNECT completes
// on the initiator side).
func (s *Session) ID() string { return s.id }

func newSessionID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Cancel is the cooperative-abort primitive (spec §4.8, §5): it is
// safe to call from another goroutine while a session method is
// blocked in a segment.Transport wait. Idempotent.
func (s *Session) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	close(s.cancelCh)
}

func (s *Session) checkCancelled() error {
	if s.cancelled.Load() {
		return linkerr.ErrCancelled
	}
	return nil
}

// Connect runs the initiator's CONNECT/CONNECT_ACK handshake (spec
// §4.6 IDLE→CONNECTING→CONNECTED), retrying up to cfg.DisconnectRetry
// times per the state table's "timeout (≤DISCONNECT_RETRY)" bound.
func (s *Session) Connect(ctx context.Context) error {
	if s.role != RoleInitiator {
		return linkerr.NewProtocolViolation("Connect called on a responder session")
	}
	if s.phase != PhaseIdle {
		return linkerr.NewProtocolViolation(fmt.Sprintf("Connect called in phase %s", s.phase))
	}

	id, err := newSessionID()
	if err != nil {
		return err
	}
	s.id = id
	s.phase = PhaseConnecting

	for attempt := 0; attempt <= s.cfg.DisconnectRetry; attempt++ {
		if err := s.checkCancelled(); err != nil {
			return s.fail(err)
		}
		if err := s.transport.SendPacket(packet.Packet{
			SessionID: s.id, Type: packet.TypeConnect, Seq: 1, Total: 1,
			Body: []byte(s.remote.String()),
		}); err != nil {
			return s.fail(err)
		}
		s.log.Emitf(eventlog.Session, "CONNECT sent to %s (session %s)", s.remote, s.id)

		p, err := s.transport.ReceivePacket(s.cfg.ConnectAckTimeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return s.fail(linkerr.ErrCancelled)
			}
			continue // retransmit CONNECT
		}
		if p.SessionID != s.id || p.Type != packet.TypeConnectAck {
			continue
		}

		s.phase = PhaseConnected
		s.log.Emitf(eventlog.Session, "CONNECTED to %s", s.remote)
		return nil
	}

	return s.fail(linkerr.NewTimeout(linkerr.PhaseConnect))
}

// RequestPayload drives REQUESTING→READY_TX→RECEIVING→DELIVERED: send
// DATA_REQUEST, exchange the READY handshake pair, then receive the
// responder's RESPONSE message via internal/segment.
func (s *Session) RequestPayload(requestKind byte, params []byte) ([]byte, error) {
	if s.phase != PhaseConnected {
		return nil, linkerr.NewProtocolViolation(fmt.Sprintf("RequestPayload called in phase %s", s.phase))
	}
	if err := s.checkCancelled(); err != nil {
		return nil, s.fail(err)
	}

	s.phase = PhaseRequesting
	if err := s.transport.SendPacket(packet.Packet{
		SessionID: s.id, Type: packet.TypeDataRequest, Seq: 1, Total: 1,
		Body: packet.DataRequestBody(requestKind, params),
	}); err != nil {
		return nil, s.fail(err)
	}

	if _, err := s.waitForType(s.cfg.ReadyTimeout, packet.TypeReady); err != nil {
		return nil, s.fail(err)
	}

	s.phase = PhaseReadyTX
	if err := s.transport.SendPacket(packet.Packet{
		SessionID: s.id, Type: packet.TypeReady, Seq: 1, Total: 1,
	}); err != nil {
		return nil, s.fail(err)
	}

	s.phase = PhaseReceiving
	segCfg := s.segmentConfig()
	payload, err := segment.Receive(s.transport, s.log, s.id, packet.TypeResponse, segCfg)
	if err != nil {
		return nil, s.fail(err)
	}

	s.phase = PhaseDelivered
	return payload, nil
}

// SendPayload drives the symmetric send path used for NOTE and the
// zap sub-exchange messages (ZAP_KIND9734_REQUEST, NWC_PAYMENT_REQUEST,
// ZAP_SUCCESS_CONFIRM): segment.Send the payload under kind, then wait
// for the responder's own DONE_ACK to settle (segment.Send already
// performs that wait internally).
func (s *Session) SendPayload(kind packet.Type, payload []byte) error {
	if s.phase != PhaseConnected {
		return linkerr.NewProtocolViolation(fmt.Sprintf("SendPayload called in phase %s", s.phase))
	}
	if err := s.checkCancelled(); err != nil {
		return s.fail(err)
	}

	bodies := chunk(payload, s.maxBodyLen())
	segCfg := s.segmentConfig()
	if err := segment.Send(s.transport, s.log, s.id, kind, bodies, segCfg); err != nil {
		return s.fail(err)
	}
	return nil
}

// Close runs DISCONNECTING→CLOSED (spec §8 invariant 6: idempotent,
// a second call is a no-op success).
func (s *Session) Close() error {
	if s.phase == PhaseClosed {
		return nil
	}
	if s.disconnectSent {
		s.phase = PhaseClosed
		return nil
	}

	s.phase = PhaseDisconnecting
	s.disconnectSent = true

	for attempt := 0; attempt <= s.cfg.DisconnectRetry; attempt++ {
		if err := s.transport.SendPacket(packet.Packet{
			SessionID: s.id, Type: packet.TypeDisconnect, Seq: 1, Total: 1,
		}); err != nil {
			s.phase = PhaseClosed
			return nil // best-effort; DISCONNECT is never retried past the handle's lifetime
		}
		p, err := s.transport.ReceivePacket(s.cfg.DisconnectTimeout)
		if err == nil && p.SessionID == s.id && p.Type == packet.TypeDisconnectAck {
			break
		}
	}

	s.phase = PhaseClosed
	s.log.Emitf(eventlog.Session, "Client disconnect complete")
	return nil
}

// fail transitions to FAILED, performs a best-effort DISCONNECT (spec
// §4.6 "any non-terminal | fatal error | FAILED | attempt best-effort
// DISCONNECT"), and returns the original error unchanged.
func (s *Session) fail(cause error) error {
	if s.phase == PhaseFailed || s.phase == PhaseClosed {
		return cause
	}
	s.phase = PhaseFailed
	s.log.Emitf(eventlog.Error, "session %s failed: %v", s.id, cause)

	if !s.disconnectSent && s.id != "" {
		s.disconnectSent = true
		_ = s.transport.SendPacket(packet.Packet{
			SessionID: s.id, Type: packet.TypeDisconnect, Seq: 1, Total: 1,
		})
	}
	return cause
}

func (s *Session) waitForType(timeout time.Duration, want packet.Type) (packet.Packet, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return packet.Packet{}, linkerr.NewTimeout(phaseFor(want))
		}
		p, err := s.transport.ReceivePacket(remaining)
		if err != nil {
			if errIsTimeout(err) {
				return packet.Packet{}, linkerr.NewTimeout(phaseFor(want))
			}
			return packet.Packet{}, err
		}
		if p.SessionID != s.id {
			s.log.Emitf(eventlog.Warning, "discarding packet with foreign session id %q", p.SessionID)
			continue
		}
		if p.Type != want {
			continue
		}
		return p, nil
	}
}

func errIsTimeout(err error) bool {
	return err == linkerr.ErrTimeout
}

func phaseFor(t packet.Type) linkerr.Phase {
	switch t {
	case packet.TypeConnectAck:
		return linkerr.PhaseConnect
	case packet.TypeReady:
		return linkerr.PhaseReady
	case packet.TypeDoneAck:
		return linkerr.PhaseDone
	case packet.TypeDisconnectAck:
		return linkerr.PhaseDisconnect
	default:
		return linkerr.PhaseData
	}
}

// maxBodyLen is the body budget per packet after the HAMSTR header
// and CRC trailer, derived from cfg.MaxPacketSize (spec §3 "Max on-air
// size ≤ MAX_PACKET_SIZE ... default 200 bytes of packet header+body").
func (s *Session) maxBodyLen() int {
	const headerPlusCRC = packet.SessionIDLen + 1 + 2 + 2 + 2
	n := s.cfg.MaxPacketSize - headerPlusCRC
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Session) segmentConfig() segment.Config {
	return segment.Config{
		AckTimeout:            s.cfg.AckTimeout,
		SendRetries:           s.cfg.SendRetries,
		MissingCycles:         s.cfg.MissingCycles,
		MissingPacketsTimeout: s.cfg.MissingPacketsTimeout,
		MissingReissueLimit:   s.cfg.MissingReissues,
		NoPacketTimeout:       s.cfg.NoPacketTimeout,
		BaudRate:              s.cfg.BaudRate,
	}
}

// chunk splits payload into bodies of at most max bytes each, at
// least one body even for an empty payload (a zero-length message is
// still one packet, total=1).
func chunk(payload []byte, max int) [][]byte {
	if len(payload) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for len(payload) > 0 {
		n := max
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	return out
}
