package segment

import (
	"errors"
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
)

// Receive reassembles one logical message of type typ under
// sessionID, running the §4.5 receiver algorithm: ACK every validated
// data packet (even duplicates, to keep driving the sender forward),
// track per-sequence gaps, and on DONE either deliver the reassembled
// payload or request the missing set and keep waiting.
//
// Returns linkerr.ReceiveIncompleteError if the PKT_MISSING reissue
// budget is exhausted with packets still missing.
func Receive(t Transport, log *eventlog.Bus, sessionID string, typ packet.Type, cfg Config) ([]byte, error) {
	received := map[int][]byte{}
	var total uint16
	var seenDone bool
	reissues := 0

	timeout := cfg.AckTimeout
	silenceDeadline := time.Now().Add(cfg.NoPacketTimeout)
	for {
		remaining := time.Until(silenceDeadline)
		if remaining <= 0 {
			if seenDone {
				return nil, &linkerr.ReceiveIncompleteError{Missing: sortedInts(missingSet(total, received))}
			}
			return nil, linkerr.NewTimeout(linkerr.PhaseData)
		}
		if timeout < remaining {
			remaining = timeout
		}

		p, err := t.ReceivePacket(remaining)
		if err != nil {
			if !errors.Is(err, linkerr.ErrTimeout) {
				return nil, err
			}
			if !seenDone {
				// No DONE yet; nothing to reissue, keep listening
				// until silenceDeadline fires above.
				continue
			}
			missing := missingSet(total, received)
			if len(missing) == 0 {
				continue
			}
			reissues++
			if reissues > cfg.MissingReissueLimit {
				return nil, &linkerr.ReceiveIncompleteError{Missing: sortedInts(missing)}
			}
			if err := t.SendPacket(packet.Packet{
				SessionID: sessionID, Type: packet.TypePktMissing, Seq: 1, Total: 1,
				Body: packet.PktMissingBody(missing),
			}); err != nil {
				return nil, err
			}
			timeout = cfg.MissingPacketsTimeout
			continue
		}

		if p.SessionID != sessionID {
			log.Emitf(eventlog.Warning, "dropping packet with foreign session id %q (active %q)", p.SessionID, sessionID)
			continue
		}
		silenceDeadline = time.Now().Add(cfg.NoPacketTimeout)

		switch {
		case p.Type == typ:
			total = p.Total
			if _, dup := received[int(p.Seq)]; !dup {
				received[int(p.Seq)] = p.Body
			}
			if err := t.SendPacket(packet.Packet{
				SessionID: sessionID, Type: packet.TypeAck, Seq: 1, Total: 1,
				Body: packet.AckBody(p.Seq),
			}); err != nil {
				return nil, err
			}
			log.Emitf(eventlog.Control, "Received data: Type=%s, Seq=%d/%d", typ, p.Seq, p.Total)

		case p.Type == packet.TypeDone:
			seenDone = true
			// total is still 0 if every data packet was lost; treat
			// that as "everything missing" rather than an accidental
			// empty delivery (p.Total is DONE's own framing total, not
			// the message's, so it cannot be used here instead).
			if total == 0 {
				total = 1
			}
			missing := missingSet(total, received)
			if len(missing) == 0 {
				if err := t.SendPacket(packet.Packet{
					SessionID: sessionID, Type: packet.TypeDoneAck, Seq: 1, Total: 1,
				}); err != nil {
					return nil, err
				}
				log.Emitf(eventlog.Progress, "100.00%% complete")
				return reassemble(total, received), nil
			}
			log.Emitf(eventlog.Control, "Received control: Type=DONE, missing=%v", missing)
			if err := t.SendPacket(packet.Packet{
				SessionID: sessionID, Type: packet.TypePktMissing, Seq: 1, Total: 1,
				Body: packet.PktMissingBody(missing),
			}); err != nil {
				return nil, err
			}
			timeout = cfg.MissingPacketsTimeout
			reissues = 0

		default:
			// Anything else (stray ACK, RETRY, ...) while in this
			// exchange is ignored rather than surfaced as an error.
		}
	}
}
