// Package sched implements the single-threaded cooperative scheduler
// and PTT gate (spec §4.8): the one place that actually keys the
// radio, because the channel is strictly half-duplex and concurrent
// writers would corrupt the air. It turns internal/packet values into
// AX.25-over-KISS frames on a tnc.Backend and back, satisfying
// internal/segment.Transport so the reliability protocol above never
// touches PTT or framing directly.
//
// Grounded on the teacher's single transmit queue per channel
// (src/tq.go, src/xmit.go: one transmit thread per radio channel,
// serialized key-up/key-down around each frame) generalized from "one
// thread per channel" to "one Scheduler per session," since this core
// only ever drives one session at a time per TNC (spec §5).
package sched

import (
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/ax25"
	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
	"github.com/hamstr-radio/hamstr-link/internal/ptt"
	"github.com/hamstr-radio/hamstr-link/internal/tnc"
)

// Timing is the subset of config.Config the scheduler consults, kept
// as its own small struct so this package does not import
// internal/config; cmd/hamstr-link fills it from the loaded config.
type Timing struct {
	PTTTxDelay      time.Duration
	PTTTail         time.Duration
	PTTRxDelay      time.Duration
	PacketSendDelay time.Duration
}

// Scheduler owns a tnc.Backend exclusively for the lifetime of one
// session (spec §5 "the TNC backend handle is exclusively owned by
// the scheduler while a session is active") and implements
// segment.Transport over it.
type Scheduler struct {
	backend tnc.Backend
	ptt     ptt.Backend // nil if the backend has no PTT line to assert
	local   ax25.Callsign
	remote  ax25.Callsign
	timing  Timing
	log     *eventlog.Bus

	lastSend time.Time
}

// New builds a Scheduler. ptt may be nil for backends with no
// externally-asserted PTT line (the loopback backend in tests).
func New(backend tnc.Backend, pttBackend ptt.Backend, local, remote ax25.Callsign, timing Timing, log *eventlog.Bus) *Scheduler {
	return &Scheduler{backend: backend, ptt: pttBackend, local: local, remote: remote, timing: timing, log: log}
}

// SendPacket implements segment.Transport. It marshals p, wraps it in
// an AX.25 UI frame addressed local→remote, enforces the PTT gate
// (spec §4.8 steps 1-3) around the transmission, and enforces
// PACKET_SEND_DELAY inter-frame spacing (step "Inter-frame spacing ≥
// PACKET_SEND_DELAY").
func (s *Scheduler) SendPacket(p packet.Packet) error {
	body, err := packet.Marshal(p)
	if err != nil {
		return err
	}
	frame, err := ax25.Encode(ax25.Frame{Dest: s.remote, Src: s.local, Payload: body})
	if err != nil {
		return err
	}

	if wait := s.timing.PacketSendDelay - time.Since(s.lastSend); !s.lastSend.IsZero() && wait > 0 {
		time.Sleep(wait)
	}

	if s.ptt != nil {
		if err := s.ptt.Assert(true); err != nil {
			return linkerr.NewBackendError(err)
		}
	}
	time.Sleep(s.timing.PTTTxDelay)

	if err := s.backend.SendFrame(frame); err != nil {
		if s.ptt != nil {
			_ = s.ptt.Assert(false)
		}
		return err
	}
	s.lastSend = time.Now()

	time.Sleep(s.timing.PTTTail)
	if s.ptt != nil {
		if err := s.ptt.Assert(false); err != nil {
			return linkerr.NewBackendError(err)
		}
	}
	time.Sleep(s.timing.PTTRxDelay)

	s.log.Emit(eventlog.Event{Category: eventlog.Packet, Text: "frame transmitted"})
	return nil
}

// ReceivePacket implements segment.Transport: pull the next AX.25
// frame within timeout, strip addressing, and unmarshal the HAMSTR
// packet. A bad FCS or bad body CRC is silently dropped and reported
// as a timeout to the caller (spec §8 invariant 4, §7 "CRC failures"
// recovered locally) rather than surfaced as an error — the caller's
// retry loop naturally re-polls.
func (s *Scheduler) ReceivePacket(timeout time.Duration) (packet.Packet, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return packet.Packet{}, linkerr.ErrTimeout
		}
		raw, err := s.backend.ReceiveFrame(remaining)
		if err != nil {
			return packet.Packet{}, err
		}

		if len(raw) < 1 {
			s.log.Emitf(eventlog.Warning, "dropping empty frame from backend")
			continue
		}
		// raw[0] is the KISS command/channel byte kiss.Encode
		// prepends on the wire (kiss.go:45); the decoder hands it
		// back as part of the frame, but it was never part of the
		// FCS the sender computed, so it must come off before
		// ax25.Decode sees the frame.
		frame, err := ax25.Decode(raw[1:])
		if err != nil {
			s.log.Emitf(eventlog.Warning, "dropping frame with bad FCS: %v", err)
			continue
		}
		if frame.Dest.Call != s.local.Call || frame.Dest.SSID != s.local.SSID {
			continue // not addressed to us
		}

		p, err := packet.Unmarshal(frame.Payload)
		if err != nil {
			if packet.IsBadCRC(err) {
				s.log.Emitf(eventlog.Warning, "dropping packet with bad body crc")
				continue
			}
			return packet.Packet{}, err
		}
		return p, nil
	}
}

// SetPTT forwards a direct key/unkey request to the PTT backend,
// without any of SendPacket's delays. It is a no-op when no PTT backend
// is set.
func (s *Scheduler) SetPTT(on bool) error {
	if s.ptt == nil {
		return nil
	}
	return s.ptt.Assert(on)
}
