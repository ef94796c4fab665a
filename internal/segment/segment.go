// Package segment implements the reliable segmentation protocol (spec
// §4.5): a stop-and-wait sender with no flow-control window, and a
// reassembling receiver with per-sequence gap tracking, missing-packet
// recovery, and bounded retries.
//
// Grounded on the teacher's layered framing (src/ax25_pad2.go builds a
// frame from parts; src/kiss_frame.go drives a resumable
// encode/decode loop) generalized into a send/receive pair operating
// on packet.Packet values instead of raw AX.25 frames — the
// scheduler (internal/sched) is what turns a Packet into bytes on the
// air and back, this package only knows sequence/ack/missing-set
// bookkeeping.
package segment

import (
	"sort"
	"time"

	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
)

// Transport is everything the segmentation protocol needs from the
// layer below: send one packet (blocking until the scheduler reports
// it left the software queue, spec §4.5 "measured from the instant the
// last byte leaves send_frame") and receive the next one within a
// deadline.
type Transport interface {
	SendPacket(p packet.Packet) error
	ReceivePacket(timeout time.Duration) (packet.Packet, error)
}

// Config carries the timers and retry budgets from spec §6 that this
// protocol consults. Fields are a frozen snapshot, never mutated
// (spec §9 "Global mutable state").
type Config struct {
	AckTimeout            time.Duration
	SendRetries           int // RETRY_COUNT
	MissingCycles         int // MISSING_CYCLES
	MissingPacketsTimeout time.Duration
	MissingReissueLimit   int // bounded number of PKT_MISSING reissues before ReceiveIncomplete

	// NoPacketTimeout bounds total silence on the wire during Receive
	// (spec §5 "every wait has an explicit deadline"): it is pushed out
	// every time any packet arrives, data or control, and firing it
	// fails the receive outright rather than looping forever waiting
	// for a DONE that will never come.
	NoPacketTimeout time.Duration

	// BaudRate is only consulted to annotate the "Sending packet" log
	// line with an estimated transmission time (spec §6); it plays no
	// part in pacing, which PACKET_SEND_DELAY/PTT timers already own.
	BaudRate int
}

func missingSet(total uint16, received map[int][]byte) []int {
	var missing []int
	for seq := 1; seq <= int(total); seq++ {
		if _, ok := received[seq]; !ok {
			missing = append(missing, seq)
		}
	}
	return missing
}

func reassemble(total uint16, received map[int][]byte) []byte {
	var out []byte
	for seq := 1; seq <= int(total); seq++ {
		out = append(out, received[seq]...)
	}
	return out
}

func sortedInts(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}
