package segment

import (
	"errors"
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
)

// ackWaiter tracks ACKs received out of the order a stop-and-wait
// sender asked for them — spec §8 scenario S3: ACKs can arrive
// 1,3,2,4,5 while the sender only ever waits on "ACK|<next-expected>".
// A higher-numbered ACK received early is buffered so the sender does
// not re-wait for it once it actually reaches that sequence; a
// lower-numbered ACK is honored silently and never penalizes the
// current wait, per spec §4.5's ordering/tie-break rule and §9's Open
// Question ("late ACKs... accept them without penalty").
type ackWaiter struct {
	buffered map[uint16]bool
}

func newAckWaiter() *ackWaiter {
	return &ackWaiter{buffered: map[uint16]bool{}}
}

// Send transmits one logical message (spec §3) as N packets of type
// typ under sessionID, running the full §4.5 sender algorithm
// including the DONE/PKT_MISSING recovery cycles. bodies[i] becomes
// packet seq=i+1; total is fixed at len(bodies) for the whole message.
//
// Returns linkerr.IncompleteTransmissionError if MISSING_CYCLES is
// exhausted with packets still unacknowledged.
func Send(t Transport, log *eventlog.Bus, sessionID string, typ packet.Type, bodies [][]byte, cfg Config) error {
	total := uint16(len(bodies))
	aw := newAckWaiter()
	deferred := map[int]bool{}

	for i, body := range bodies {
		seq := uint16(i + 1)
		ok, err := sendOneWithRetry(t, log, sessionID, typ, seq, total, body, cfg, aw)
		if err != nil {
			return err
		}
		if !ok {
			deferred[int(seq)] = true
		}
	}

	for cycle := 0; cycle < cfg.MissingCycles; cycle++ {
		if err := sendControl(t, sessionID, packet.TypeDone); err != nil {
			return err
		}
		log.Emitf(eventlog.Control, "Sending DONE for session %s", sessionID)

		resp, err := waitDoneResponse(t, cfg.AckTimeout)
		if err != nil {
			if errors.Is(err, linkerr.ErrTimeout) {
				continue // no response this cycle; resend DONE
			}
			return err
		}

		switch resp.Type {
		case packet.TypeDoneAck:
			log.Emitf(eventlog.Progress, "100.00%% complete")
			return nil
		case packet.TypePktMissing:
			missing, perr := packet.ParsePktMissingBody(resp.Body)
			if perr != nil {
				return linkerr.NewProtocolViolation(perr.Error())
			}
			log.Emitf(eventlog.Control, "Received control: Type=PKT_MISSING, Content=%s", string(resp.Body))
			for _, seq := range missing {
				if seq < 1 || seq > int(total) {
					continue
				}
				ok, err := sendOneWithRetry(t, log, sessionID, typ, uint16(seq), total, bodies[seq-1], cfg, aw)
				if err != nil {
					return err
				}
				if ok {
					delete(deferred, seq)
				} else {
					deferred[seq] = true
				}
			}
		}
	}

	if len(deferred) == 0 {
		return nil
	}
	missing := make([]int, 0, len(deferred))
	for s := range deferred {
		missing = append(missing, s)
	}
	return &linkerr.IncompleteTransmissionError{Missing: sortedInts(missing)}
}

// sendOneWithRetry transmits one data packet and waits for its ACK,
// retrying up to cfg.SendRetries times. Returns ok=false (never an
// error) once the retry budget is exhausted, so the caller can
// "proceed under poor conditions" to the next sequence per spec §4.5
// step 3 and §8 invariant 8.
func sendOneWithRetry(t Transport, log *eventlog.Bus, sessionID string, typ packet.Type, seq, total uint16, body []byte, cfg Config, aw *ackWaiter) (ok bool, err error) {
	if aw.buffered[seq] {
		delete(aw.buffered, seq)
		return true, nil
	}

	for attempt := 0; attempt <= cfg.SendRetries; attempt++ {
		p := packet.Packet{SessionID: sessionID, Type: typ, Seq: seq, Total: total, Body: body}
		if err := t.SendPacket(p); err != nil {
			return false, err
		}
		log.Emitf(eventlog.Control, "Sending packet: Type=%s, Seq=%d/%d, Estimated transmission time: %.2f seconds",
			typ, seq, total, estimatedTransmissionSeconds(p, cfg.BaudRate))

		acked, err := waitForAck(t, cfg.AckTimeout, seq, aw)
		if err != nil {
			if errors.Is(err, linkerr.ErrTimeout) {
				continue
			}
			return false, err
		}
		if acked {
			return true, nil
		}
	}
	return false, nil
}

// waitForAck waits up to timeout for "ACK|seq". Any ACK for a smaller
// sequence is accepted idempotently and does not reset or break the
// wait; any ACK for a larger sequence is buffered in aw for a future
// call instead of being dropped, per spec §8 scenario S3.
func waitForAck(t Transport, timeout time.Duration, seq uint16, aw *ackWaiter) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, linkerr.ErrTimeout
		}
		p, err := t.ReceivePacket(remaining)
		if err != nil {
			if errors.Is(err, linkerr.ErrTimeout) {
				return false, linkerr.ErrTimeout
			}
			return false, err
		}
		if p.Type != packet.TypeAck {
			continue
		}
		gotSeq, perr := packet.ParseAckBody(p.Body)
		if perr != nil {
			continue
		}
		switch {
		case gotSeq == seq:
			return true, nil
		case gotSeq < seq:
			continue // late ack, accepted idempotently, no penalty
		default:
			aw.buffered[gotSeq] = true
			continue
		}
	}
}

// waitDoneResponse waits for DONE_ACK or PKT_MISSING after a DONE.
func waitDoneResponse(t Transport, timeout time.Duration) (packet.Packet, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return packet.Packet{}, linkerr.ErrTimeout
		}
		p, err := t.ReceivePacket(remaining)
		if err != nil {
			return packet.Packet{}, err
		}
		if p.Type == packet.TypeDoneAck || p.Type == packet.TypePktMissing {
			return p, nil
		}
		if p.Type == packet.TypeAck {
			continue // late ACK after DONE sent; honored silently, superseded by the receiver's next PKT_MISSING
		}
	}
}

func sendControl(t Transport, sessionID string, ctrlType packet.Type) error {
	return t.SendPacket(packet.Packet{SessionID: sessionID, Type: ctrlType, Seq: 1, Total: 1})
}

// estimatedTransmissionSeconds annotates the "Sending packet" log line
// per spec §6; it marshals p to get its on-the-wire length and divides
// by baudRate bits/sec. Returns 0 if baudRate is unset rather than
// dividing by zero.
func estimatedTransmissionSeconds(p packet.Packet, baudRate int) float64 {
	if baudRate <= 0 {
		return 0
	}
	wire, err := packet.Marshal(p)
	if err != nil {
		return 0
	}
	return float64(len(wire)*8) / float64(baudRate)
}
