package session

import (
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/ax25"
	"github.com/hamstr-radio/hamstr-link/internal/config"
	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
	"github.com/hamstr-radio/hamstr-link/internal/segment"
)

// Handler produces a response payload for a DATA_REQUEST of the given
// kind, invoked by Session.Serve on the responder side. An error fails
// the request; the responder still attempts its own best-effort
// DISCONNECT via Session.fail.
type Handler func(requestKind byte, params []byte) (response []byte, err error)

// Accept waits for an incoming CONNECT from remote, acknowledges it
// with the initiator's own session id, and returns a responder
// session ready for Serve — spec §4.6 "Responder mirrors it: after
// CONNECT, emits CONNECT_ACK and session_id."
func Accept(transport segment.Transport, local, remote ax25.Callsign, cfg config.Config, log *eventlog.Bus) (*Session, error) {
	deadline := time.Now().Add(cfg.ConnectionAttemptTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, linkerr.NewTimeout(linkerr.PhaseConnect)
		}
		p, err := transport.ReceivePacket(remaining)
		if err != nil {
			if err == linkerr.ErrTimeout {
				return nil, linkerr.NewTimeout(linkerr.PhaseConnect)
			}
			return nil, err
		}
		if p.Type != packet.TypeConnect {
			continue
		}

		if err := transport.SendPacket(packet.Packet{
			SessionID: p.SessionID, Type: packet.TypeConnectAck, Seq: 1, Total: 1,
		}); err != nil {
			return nil, err
		}
		log.Emitf(eventlog.Session, "CONNECTED to %s", remote)

		return NewResponder(transport, local, remote, p.SessionID, cfg, log), nil
	}
}

// Serve runs one request/response cycle: wait for DATA_REQUEST, invoke
// handle to produce the answer, exchange READY, send the RESPONSE
// message via internal/segment, then DONE (performed inside
// segment.Send), per spec §4.6 "on DATA_REQUEST, after producing the
// payload, sends READY (inviting READY echo) then RESPONSE packets,
// then DONE; awaits DONE_ACK then expects DISCONNECT."
func (s *Session) Serve(handle Handler) error {
	if s.role != RoleResponder {
		return linkerr.NewProtocolViolation("Serve called on an initiator session")
	}
	if s.phase != PhaseConnected {
		return linkerr.NewProtocolViolation("Serve called outside CONNECTED phase")
	}

	req, err := s.waitForType(s.cfg.ConnectionTimeout, packet.TypeDataRequest)
	if err != nil {
		return s.fail(err)
	}
	kind, params, err := packet.ParseDataRequestBody(req.Body)
	if err != nil {
		return s.fail(linkerr.NewProtocolViolation(err.Error()))
	}

	response, herr := handle(kind, params)
	if herr != nil {
		return s.fail(herr)
	}

	s.phase = PhaseRequesting
	if err := s.transport.SendPacket(packet.Packet{
		SessionID: s.id, Type: packet.TypeReady, Seq: 1, Total: 1,
	}); err != nil {
		return s.fail(err)
	}
	if _, err := s.waitForType(s.cfg.ReadyTimeout, packet.TypeReady); err != nil {
		return s.fail(err)
	}

	s.phase = PhaseReadyTX
	bodies := chunk(response, s.maxBodyLen())
	if err := segment.Send(s.transport, s.log, s.id, packet.TypeResponse, bodies, s.segmentConfig()); err != nil {
		return s.fail(err)
	}

	s.phase = PhaseDelivered
	if err := s.awaitDisconnect(); err != nil {
		return s.fail(err)
	}
	s.phase = PhaseClosed
	s.log.Emitf(eventlog.Session, "Client disconnect complete")
	return nil
}

// awaitDisconnect blocks for the initiator's DISCONNECT and answers
// with DISCONNECT_ACK, completing the handshake from the responder
// side.
func (s *Session) awaitDisconnect() error {
	if _, err := s.waitForType(s.cfg.DisconnectTimeout, packet.TypeDisconnect); err != nil {
		return err
	}
	return s.transport.SendPacket(packet.Packet{
		SessionID: s.id, Type: packet.TypeDisconnectAck, Seq: 1, Total: 1,
	})
}
